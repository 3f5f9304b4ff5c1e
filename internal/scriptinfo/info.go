// Package scriptinfo provides the registry of source files known to the
// project service.
//
// An Info is one file identified by its normalized path. It is either open
// (content owned by the client) or closed (content read from disk on demand).
// The Registry also owns the relation table recording which projects each
// file is attached to; projects never hold back-references to each other
// through files.
//
// The registry is not safe for concurrent use. The service serializes every
// mutation and query on one goroutine.
package scriptinfo

import (
	"errors"
	"time"
)

// Errors returned by registry operations.
var (
	// ErrNotOpen indicates an edit was applied to a file the client has not opened.
	ErrNotOpen = errors.New("script not open")

	// ErrInvalidEditRange is returned when an edit receives invalid offsets.
	ErrInvalidEditRange = errors.New("invalid edit range")
)

// ProjectID identifies a project in the relation table.
type ProjectID uint64

// Info is a unit of source content identified by a normalized path.
type Info struct {
	path       string
	open       bool
	version    int64
	content    []byte
	modifiedAt time.Time
	registry   *Registry
}

// Path returns the normalized path.
func (i *Info) Path() string { return i.path }

// IsOpen returns true if the client has the file open.
func (i *Info) IsOpen() bool { return i.open }

// Version is incremented on every content change, including open and close.
func (i *Info) Version() int64 { return i.version }

// ModifiedAt returns when the content last changed.
func (i *Info) ModifiedAt() time.Time { return i.modifiedAt }

// Snapshot returns the current text. Closed files are read from disk through
// the registry's cache; a missing file yields an empty snapshot.
func (i *Info) Snapshot() Snapshot {
	if i.open {
		return Snapshot{text: i.content}
	}
	return Snapshot{text: i.registry.diskContent(i.path)}
}

// Snapshot is an immutable view of a file's text.
type Snapshot struct {
	text []byte
}

// Len returns the snapshot length in bytes.
func (s Snapshot) Len() int { return len(s.text) }

// Text returns the text in the byte range [start, end), clamped to the snapshot.
func (s Snapshot) Text(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s.text) {
		end = len(s.text)
	}
	if start >= end {
		return ""
	}
	return string(s.text[start:end])
}

// Bytes returns a copy of the whole text.
func (s Snapshot) Bytes() []byte {
	out := make([]byte, len(s.text))
	copy(out, s.text)
	return out
}

// setContent replaces the client content and bumps the version.
func (i *Info) setContent(content []byte) {
	i.content = make([]byte, len(content))
	copy(i.content, content)
	i.version++
	i.modifiedAt = time.Now()
}

// applyEdit splices newText into [start, end) of the client content.
func (i *Info) applyEdit(start, end int, newText []byte) error {
	if start < 0 || end < 0 || start > len(i.content) || end > len(i.content) || start > end {
		return ErrInvalidEditRange
	}

	prefix := i.content[:start]
	suffix := i.content[end:]

	next := make([]byte, len(prefix)+len(newText)+len(suffix))
	copy(next, prefix)
	copy(next[len(prefix):], newText)
	copy(next[len(prefix)+len(newText):], suffix)

	i.content = next
	i.version++
	i.modifiedAt = time.Now()
	return nil
}
