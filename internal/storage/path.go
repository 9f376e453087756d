package storage

import (
	"strings"
)

// Metadata sidecar naming used by the on-disk backend. Item names matching
// these patterns are reserved and rejected by every backend.
const (
	folderMetadataName = ".folder.itemdata.toml"
	metadataSuffix     = ".itemdata.toml"
)

// ItemPath is a parsed, slash-delimited item path.
//
// A path is an ordered list of parts. Only the last part may be empty, which
// marks a folder path (the raw string ended with "/"). The root folder is the
// single empty part.
//
// Examples:
//
//	""        → [""]             root folder
//	"a/b/"    → ["a", "b", ""]   folder
//	"a/b/c"   → ["a", "b", "c"]  document
//
// ItemPath is an immutable value; methods never modify the receiver.
type ItemPath struct {
	parts []string
}

// ParsePath splits raw into an ItemPath. It never fails: validity of the
// individual parts is checked separately by Validate.
// A single leading slash is ignored, so "/a/b" and "a/b" are the same path.
func ParsePath(raw string) ItemPath {
	raw = strings.TrimPrefix(raw, "/")
	return ItemPath{parts: strings.Split(raw, "/")}
}

// RootPath returns the path of the root folder.
func RootPath() ItemPath {
	return ItemPath{parts: []string{""}}
}

func (p ItemPath) list() []string {
	if len(p.parts) == 0 {
		return []string{""}
	}
	return p.parts
}

// String returns the raw form of the path, with a trailing slash for folders.
func (p ItemPath) String() string {
	return strings.Join(p.list(), "/")
}

// IsFolder reports whether p names a folder.
func (p ItemPath) IsFolder() bool {
	parts := p.list()
	return parts[len(parts)-1] == ""
}

// IsRoot reports whether p is the root folder.
func (p ItemPath) IsRoot() bool {
	parts := p.list()
	return len(parts) == 1 && parts[0] == ""
}

// IsPublic reports whether p lies in the public namespace.
func (p ItemPath) IsPublic() bool {
	parts := p.list()
	return len(parts) > 1 && parts[0] == "public"
}

// Names returns the item names along p, root excluded.
// For "a/b/" and "a/b" alike it returns ["a", "b"].
func (p ItemPath) Names() []string {
	parts := p.list()
	if p.IsFolder() {
		parts = parts[:len(parts)-1]
	}
	names := make([]string, len(parts))
	copy(names, parts)
	return names
}

// Name returns the last name of p, or "" for the root.
func (p ItemPath) Name() string {
	names := p.Names()
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

// Prefix returns the path made of the first n names of p, as a folder path
// when folder is true and as a document path otherwise.
func (p ItemPath) Prefix(n int, folder bool) ItemPath {
	names := p.Names()
	if n > len(names) {
		n = len(names)
	}
	parts := append([]string(nil), names[:n]...)
	if folder || n == 0 {
		parts = append(parts, "")
	}
	return ItemPath{parts: parts}
}

// Parent returns the folder containing p. The root is its own parent.
func (p ItemPath) Parent() ItemPath {
	names := p.Names()
	if len(names) == 0 {
		return RootPath()
	}
	return p.Prefix(len(names)-1, true)
}

// Child returns the path of name inside folder p.
func (p ItemPath) Child(name string, folder bool) ItemPath {
	names := append(p.Names(), name)
	if folder {
		names = append(names, "")
	}
	return ItemPath{parts: names}
}

// Ancestors returns every folder containing p, from the root down to the
// immediate parent. The root has no ancestors.
func (p ItemPath) Ancestors() []ItemPath {
	names := p.Names()
	if len(names) == 0 {
		return nil
	}
	out := make([]ItemPath, 0, len(names))
	for i := 0; i < len(names); i++ {
		out = append(out, p.Prefix(i, true))
	}
	return out
}

// Validate checks every part of p and returns an IncorrectItemName error
// naming the path up to the first offending part.
func (p ItemPath) Validate() error {
	parts := p.list()
	for i, part := range parts {
		last := i == len(parts)-1
		if part == "" && last {
			continue
		}
		if reason := checkName(part); reason != "" {
			return &Error{
				Kind:   IncorrectItemName,
				Path:   ItemPath{parts: append(append([]string(nil), parts[:i]...), part)},
				Reason: reason,
			}
		}
	}
	return nil
}

// checkMetadata rejects paths that name a metadata sidecar.
func (p ItemPath) checkMetadata() error {
	parts := p.list()
	for i, part := range parts {
		if IsMetadataName(part) {
			return &Error{
				Kind:   IncorrectItemName,
				Path:   ItemPath{parts: append(append([]string(nil), parts[:i]...), part)},
				Reason: "reserved metadata file name",
			}
		}
	}
	return nil
}

// IsMetadataName reports whether name follows the metadata sidecar convention
// (".folder.itemdata.toml" or ".{name}.itemdata.toml").
func IsMetadataName(name string) bool {
	if name == folderMetadataName {
		return true
	}
	return len(name) > len(metadataSuffix)+1 &&
		strings.HasPrefix(name, ".") &&
		strings.HasSuffix(name, metadataSuffix)
}

// DocumentMetadataName returns the sidecar name of the document called name.
func DocumentMetadataName(name string) string {
	return "." + name + metadataSuffix
}

// FolderMetadataName returns the sidecar name stored inside every folder.
func FolderMetadataName() string {
	return folderMetadataName
}

func checkName(name string) string {
	switch {
	case name == "":
		return "empty name"
	case name == "." || name == "..":
		return "reserved name"
	case strings.ContainsRune(name, 0):
		return "contains a null byte"
	case IsMetadataName(name):
		return "reserved metadata file name"
	}
	return ""
}
