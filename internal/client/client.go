// Package client talks to a remotestore server over HTTP.
//
// Responses that describe a storage outcome (404, 409, 412 and friends) come
// back as *storage.Error, so callers switch on storage.KindOf exactly as they
// would against a local DataSource.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/remotestore/internal/storage"
)

// FolderContext is the JSON-LD context of every folder listing.
const FolderContext = "http://remotestorage.io/spec/folder-description"

// Listing is the body of a folder GET.
type Listing struct {
	Context string                 `json:"@context"`
	Items   map[string]ListingItem `json:"items"`
}

// ListingItem describes one child of a listed folder. Folder names end with
// "/" and only carry an ETag.
type ListingItem struct {
	Etag          string `json:"ETag"`
	ContentType   string `json:"Content-Type,omitempty"`
	ContentLength *int   `json:"Content-Length,omitempty"`
	LastModified  string `json:"Last-Modified,omitempty"`
}

// Response is a successful storage response.
type Response struct {
	Status      int
	Etag        storage.Etag
	ContentType string
	Body        []byte
}

// NotModified reports whether a conditional GET matched.
func (r *Response) NotModified() bool {
	return r.Status == http.StatusNotModified
}

// StatusError is an HTTP failure without a storage meaning.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %s %s: %d", e.Method, e.URL, e.Code)
}

// Client sends storage requests with a bearer token.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a Client for the server at baseURL. An empty token sends
// anonymous requests, which only succeed for public documents.
func New(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimSuffix(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) url(path string) string {
	return c.base + "/storage/" + strings.TrimPrefix(path, "/")
}

func quote(etag storage.Etag) string {
	if etag.IsWildcard() {
		return etag.String()
	}
	return `"` + etag.String() + `"`
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	etag := storage.Etag(strings.Trim(resp.Header.Get("ETag"), `"`))
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotModified {
		return nil, statusError(method, req.URL.String(), path, resp.StatusCode, etag, header)
	}
	return &Response{
		Status:      resp.StatusCode,
		Etag:        etag,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// statusError turns a failed response back into the storage error the
// server reported.
func statusError(method, url, path string, code int, found storage.Etag, header http.Header) error {
	p := storage.ParsePath(path)
	var kind storage.ErrorKind
	switch code {
	case http.StatusNotFound:
		kind = storage.NotFound
	case http.StatusConflict:
		kind = storage.Conflict
	case http.StatusForbidden:
		kind = storage.CanNotBeListed
	case http.StatusBadRequest:
		kind = storage.IncorrectItemName
	case http.StatusMethodNotAllowed:
		kind = storage.DoesNotWorkForFolders
	case http.StatusPreconditionFailed:
		kind = storage.NoIfMatch
		if header.Get("If-None-Match") != "" {
			kind = storage.IfNoneMatch
		}
	default:
		return &StatusError{Method: method, URL: url, Code: code}
	}
	return &storage.Error{Kind: kind, Path: p, Found: found}
}

// Get fetches a document. When ifNoneMatch is set and still current the
// response is NotModified and carries no body.
func (c *Client) Get(ctx context.Context, path string, ifNoneMatch storage.Etag) (*Response, error) {
	header := http.Header{}
	if !ifNoneMatch.IsEmpty() {
		header.Set("If-None-Match", quote(ifNoneMatch))
	}
	return c.do(ctx, http.MethodGet, path, nil, header)
}

// List fetches and decodes a folder listing.
func (c *Client) List(ctx context.Context, path string) (Listing, storage.Etag, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return Listing{}, "", err
	}
	var l Listing
	if err := json.Unmarshal(resp.Body, &l); err != nil {
		return Listing{}, "", fmt.Errorf("decode listing %s: %w", path, err)
	}
	return l, resp.Etag, nil
}

// Put stores a document. ifMatch and ifNoneMatch are sent when set; use
// storage.Wildcard as ifNoneMatch to create only.
func (c *Client) Put(ctx context.Context, path string, body []byte, contentType string, ifMatch, ifNoneMatch storage.Etag) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	if !ifMatch.IsEmpty() {
		header.Set("If-Match", quote(ifMatch))
	}
	if !ifNoneMatch.IsEmpty() {
		header.Set("If-None-Match", quote(ifNoneMatch))
	}
	if body == nil {
		body = []byte{}
	}
	return c.do(ctx, http.MethodPut, path, body, header)
}

// Delete removes a document, optionally only if its etag is ifMatch.
func (c *Client) Delete(ctx context.Context, path string, ifMatch storage.Etag) (*Response, error) {
	header := http.Header{}
	if !ifMatch.IsEmpty() {
		header.Set("If-Match", quote(ifMatch))
	}
	return c.do(ctx, http.MethodDelete, path, nil, header)
}
