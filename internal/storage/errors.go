package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a DataSource can report.
type ErrorKind uint8

const (
	// NotFound means no item exists at the path.
	NotFound ErrorKind = iota + 1
	// Conflict means a document exists where a folder was expected, or the reverse.
	Conflict
	// CanNotBeListed means a folder listing was requested in the public namespace.
	CanNotBeListed
	// IncorrectItemName means a path part is structurally invalid.
	IncorrectItemName
	// NoIfMatch means the If-Match condition failed.
	NoIfMatch
	// IfNoneMatch means the If-None-Match condition failed.
	IfNoneMatch
	// ContentNotChanged means a Put carried the stored content and content type.
	ContentNotChanged
	// DoesNotWorkForFolders means a document operation was given a folder path.
	DoesNotWorkForFolders
	// NoContentInside means a folder's children were needed but not loaded.
	NoContentInside
	// BackendFailure wraps an I/O or (de)serialization failure of the backing store.
	BackendFailure
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	case CanNotBeListed:
		return "can not be listed"
	case IncorrectItemName:
		return "incorrect item name"
	case NoIfMatch:
		return "if-match does not match"
	case IfNoneMatch:
		return "if-none-match matches"
	case ContentNotChanged:
		return "content not changed"
	case DoesNotWorkForFolders:
		return "does not work for folders"
	case NoContentInside:
		return "no content inside"
	case BackendFailure:
		return "backend failure"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrContentNotChanged = &Error{Kind: ContentNotChanged}
	ErrBackendFailure    = &Error{Kind: BackendFailure}
)

// Error is the single error type returned by storage operations.
//
// Search and Found are set for the conditional kinds (NoIfMatch, IfNoneMatch)
// and Found alone for ContentNotChanged. Cause is set for BackendFailure.
type Error struct {
	Kind   ErrorKind
	Path   ItemPath
	Search Etag
	Found  Etag
	Reason string
	Cause  error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e == nil {
		return "(*storage.Error)(nil)"
	}
	msg := e.Kind.String()
	if len(e.Path.parts) > 0 {
		msg += fmt.Sprintf(" at %q", e.Path.String())
	}
	switch e.Kind {
	case NoIfMatch, IfNoneMatch:
		msg += fmt.Sprintf(" (search %q, found %q)", e.Search, e.Found)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is regardless of path or payload.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e != nil && t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a storage error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) && se != nil {
		return se.Kind
	}
	return 0
}

// BackendError wraps cause as a BackendFailure at p. Backends use it for
// every I/O and (de)serialization failure.
func BackendError(p ItemPath, reason string, cause error) error {
	return &Error{Kind: BackendFailure, Path: p, Reason: reason, Cause: cause}
}

// wrapBackend passes storage errors through untouched and wraps anything
// else as a BackendFailure.
func wrapBackend(p ItemPath, reason string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != 0 {
		return err
	}
	return BackendError(p, reason, err)
}
