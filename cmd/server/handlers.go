package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/dreamware/remotestore/internal/auth"
	"github.com/dreamware/remotestore/internal/client"
	"github.com/dreamware/remotestore/internal/database"
	"github.com/dreamware/remotestore/internal/storage"
)

// maxDocumentSize bounds the body of a PUT.
const maxDocumentSize = 32 << 20

// server binds the HTTP API to a Database.
type server struct {
	db        *database.Database
	authority *auth.Authority
}

func newServer(db *database.Database, authority *auth.Authority) *server {
	return &server{db: db, authority: authority}
}

// routes returns the full handler tree, access logging included.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.Handle("/storage/", s.requireToken(http.HandlerFunc(s.handleStorage)))
	return requestLog(mux)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, "application/json", s.db.Info())
}

// storagePath extracts the item path from a /storage/ request.
func storagePath(r *http.Request) storage.ItemPath {
	return storage.ParsePath(strings.TrimPrefix(r.URL.Path, "/storage/"))
}

// requireToken rejects requests without a valid bearer token. Reading a
// document under public/ needs no token.
func (s *server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := storagePath(r)
		read := r.Method == http.MethodGet || r.Method == http.MethodHead
		if read && p.IsPublic() && !p.IsFolder() {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.authority.VerifyRequest(r); err != nil {
			glog.V(1).Infof("rejected %s %s: %v", r.Method, r.URL.Path, err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="remotestore"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleStorage(w http.ResponseWriter, r *http.Request) {
	p := storagePath(r)
	ifMatch := parseEtag(r.Header.Get("If-Match"))
	ifNoneMatch := parseEtagList(r.Header.Get("If-None-Match"))

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		item, err := s.db.Get(p, ifMatch, ifNoneMatch, true)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeItem(w, r, item)

	case http.MethodPut:
		if r.Header.Get("Content-Range") != "" {
			http.Error(w, "partial updates are not supported", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if len(body) > maxDocumentSize {
			http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		res, err := s.db.Put(p, ifMatch, ifNoneMatch, &storage.Document{Content: body, ContentType: contentType})
		if err != nil {
			var serr *storage.Error
			if errors.Is(err, storage.ErrContentNotChanged) && errors.As(err, &serr) {
				setEtag(w, serr.Found)
				w.WriteHeader(http.StatusOK)
				return
			}
			writeError(w, r, err)
			return
		}
		setEtag(w, res.Etag)
		if res.Status == storage.Created {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		etag, err := s.db.Delete(p, ifMatch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		setEtag(w, etag)
		w.WriteHeader(http.StatusOK)

	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func newListing(f *storage.Folder) client.Listing {
	l := client.Listing{Context: client.FolderContext, Items: make(map[string]client.ListingItem, len(f.Content))}
	for _, name := range f.Names() {
		switch child := f.Content[name].(type) {
		case *storage.Folder:
			l.Items[name+"/"] = client.ListingItem{Etag: child.Etag.String()}
		case *storage.Document:
			size := len(child.Content)
			entry := client.ListingItem{
				Etag:          child.Etag.String(),
				ContentType:   child.ContentType,
				ContentLength: &size,
			}
			if !child.LastModified.IsZero() {
				entry.LastModified = child.LastModified.UTC().Format(http.TimeFormat)
			}
			l.Items[name] = entry
		}
	}
	return l
}

func writeItem(w http.ResponseWriter, r *http.Request, item storage.Item) {
	setEtag(w, item.Tag())
	w.Header().Set("Cache-Control", "no-cache")
	switch v := item.(type) {
	case *storage.Folder:
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/ld+json")
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, "application/ld+json", newListing(v))
	case *storage.Document:
		w.Header().Set("Content-Type", v.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(v.Content)))
		if !v.LastModified.IsZero() {
			w.Header().Set("Last-Modified", v.LastModified.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(v.Content)
		}
	}
}

// statusOf maps a storage error to its HTTP status.
func statusOf(method string, err error) int {
	switch storage.KindOf(err) {
	case storage.NotFound:
		return http.StatusNotFound
	case storage.Conflict:
		return http.StatusConflict
	case storage.CanNotBeListed:
		return http.StatusForbidden
	case storage.IncorrectItemName:
		return http.StatusBadRequest
	case storage.NoIfMatch:
		return http.StatusPreconditionFailed
	case storage.IfNoneMatch:
		if method == http.MethodGet || method == http.MethodHead {
			return http.StatusNotModified
		}
		return http.StatusPreconditionFailed
	case storage.ContentNotChanged:
		return http.StatusOK
	case storage.DoesNotWorkForFolders:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(r.Method, err)
	var serr *storage.Error
	if errors.As(err, &serr) && !serr.Found.IsEmpty() {
		setEtag(w, serr.Found)
	}
	if status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	if status == http.StatusInternalServerError {
		glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func setEtag(w http.ResponseWriter, etag storage.Etag) {
	if etag.IsEmpty() {
		return
	}
	w.Header().Set("ETag", `"`+etag.String()+`"`)
}

// parseEtag strips quotes and a weak prefix from a single header value.
func parseEtag(raw string) storage.Etag {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "W/")
	return storage.Etag(strings.Trim(raw, `"`))
}

// parseEtagList splits a comma-separated If-None-Match value.
func parseEtagList(raw string) []storage.Etag {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []storage.Etag
	for _, part := range strings.Split(raw, ",") {
		if etag := parseEtag(part); !etag.IsEmpty() {
			out = append(out, etag)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("encode response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// requestLog writes one access line per request.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		glog.Infof("%s %s %d %dB %s", r.Method, r.URL.Path, rec.status, rec.bytes, time.Since(start))
	})
}
