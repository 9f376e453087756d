package storage

import (
	"github.com/oklog/ulid/v2"
)

// Wildcard is the conditional-header value that matches any existing item.
const Wildcard Etag = "*"

// Etag is an opaque entity tag. A fresh one is generated for every created
// or mutated item, and for every ancestor folder of that item.
type Etag string

// NewEtag returns a fresh entity tag.
// ULIDs are monotonic within a process, so two etags generated in the same
// millisecond still differ.
func NewEtag() Etag {
	return Etag(ulid.Make().String())
}

// IsEmpty reports whether e carries no value, which in a conditional header
// means "no condition".
func (e Etag) IsEmpty() bool {
	return e == ""
}

// IsWildcard reports whether e is "*".
func (e Etag) IsWildcard() bool {
	return e == Wildcard
}

// String returns the raw etag value.
func (e Etag) String() string {
	return string(e)
}

// checkIfMatch fails with NoIfMatch when ifMatch is set, is not the wildcard
// and differs from found. Comparison is exact.
func checkIfMatch(p ItemPath, ifMatch, found Etag) error {
	if ifMatch.IsEmpty() || ifMatch.IsWildcard() || ifMatch == found {
		return nil
	}
	return &Error{Kind: NoIfMatch, Path: p, Search: ifMatch, Found: found}
}

// checkIfNoneMatch fails with IfNoneMatch when any excluded etag is the
// wildcard or equals found.
func checkIfNoneMatch(p ItemPath, ifNoneMatch []Etag, found Etag) error {
	for _, e := range ifNoneMatch {
		if e.IsWildcard() || e == found {
			return &Error{Kind: IfNoneMatch, Path: p, Search: e, Found: found}
		}
	}
	return nil
}
