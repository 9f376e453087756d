package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/remotestore/internal/storage"
)

func TestPutSendsHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"new"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(server.URL+"/", "tok")
	resp, err := c.Put(context.Background(), "/notes/todo", []byte("milk"), "text/plain", "old", storage.Wildcard)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/storage/notes/todo", got.URL.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))
	assert.Equal(t, `"old"`, got.Header.Get("If-Match"))
	assert.Equal(t, "*", got.Header.Get("If-None-Match"))
	assert.Equal(t, "milk", string(body))

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, storage.Etag("new"), resp.Etag)
}

func TestAnonymousRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("public"))
	}))
	defer server.Close()

	resp, err := New(server.URL, "").Get(context.Background(), "public/photo", "")
	require.NoError(t, err)
	assert.Equal(t, "public", string(resp.Body))
	assert.False(t, resp.NotModified())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		header string
		kind   storage.ErrorKind
	}{
		{"not found", http.StatusNotFound, "", storage.NotFound},
		{"conflict", http.StatusConflict, "", storage.Conflict},
		{"forbidden", http.StatusForbidden, "", storage.CanNotBeListed},
		{"bad request", http.StatusBadRequest, "", storage.IncorrectItemName},
		{"method not allowed", http.StatusMethodNotAllowed, "", storage.DoesNotWorkForFolders},
		{"if-match failed", http.StatusPreconditionFailed, "If-Match", storage.NoIfMatch},
		{"if-none-match failed", http.StatusPreconditionFailed, "If-None-Match", storage.IfNoneMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("ETag", `"current"`)
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			c := New(server.URL, "tok")
			var err error
			switch tt.header {
			case "If-Match":
				_, err = c.Delete(context.Background(), "a/b", "stale")
			case "If-None-Match":
				_, err = c.Put(context.Background(), "a/b", nil, "text/plain", "", storage.Wildcard)
			default:
				_, err = c.Get(context.Background(), "a/b", "")
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, storage.KindOf(err))

			var serr *storage.Error
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, "a/b", serr.Path.String())
			assert.Equal(t, storage.Etag("current"), serr.Found)
		})
	}

	t.Run("other status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := New(server.URL, "").Get(context.Background(), "a", "")
		var serr *StatusError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, http.StatusUnauthorized, serr.Code)
		assert.Equal(t, storage.ErrorKind(0), storage.KindOf(err))
	})
}

func TestGetNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	c := New(server.URL, "tok")
	resp, err := c.Get(context.Background(), "doc", "v1")
	require.NoError(t, err)
	assert.True(t, resp.NotModified())
	assert.Empty(t, resp.Body)

	resp, err = c.Get(context.Background(), "doc", "v0")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))
}

func TestList(t *testing.T) {
	size := 4
	want := Listing{
		Context: FolderContext,
		Items: map[string]ListingItem{
			"todo":     {Etag: "e1", ContentType: "text/plain", ContentLength: &size},
			"archive/": {Etag: "e2"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/notes/", r.URL.Path)
		w.Header().Set("ETag", `"folder"`)
		w.Header().Set("Content-Type", "application/ld+json")
		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	got, etag, err := New(server.URL, "tok").List(context.Background(), "notes/")
	require.NoError(t, err)
	assert.Equal(t, storage.Etag("folder"), etag)
	assert.Equal(t, want, got)

	t.Run("invalid body", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer bad.Close()

		_, _, err := New(bad.URL, "tok").List(context.Background(), "notes/")
		assert.Error(t, err)
	})
}
