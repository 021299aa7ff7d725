// Package blob provides immutable binary payloads and a store of
// dereferenceable handles ("blob:" URLs) pointing at them.
package blob

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URLPrefix prefixes every handle created by a Store.
const URLPrefix = "blob:"

// Blob is an immutable byte payload tagged with a mime type.
type Blob struct {
	data []byte
	Type string
}

// New concatenates parts in order into a single Blob.
func New(parts [][]byte, mimeType string) *Blob {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	data := make([]byte, 0, size)
	for _, p := range parts {
		data = append(data, p...)
	}
	return &Blob{data: data, Type: mimeType}
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int {
	return len(b.data)
}

// Bytes returns a copy of the payload.
func (b *Blob) Bytes() []byte {
	return bytes.Clone(b.data)
}

// NewReader returns a reader over the payload.
func (b *Blob) NewReader() *bytes.Reader {
	return bytes.NewReader(b.data)
}

// WriteTo writes the payload to w.
func (b *Blob) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// Store maps handles to blobs. It is safe for concurrent use.
//
// Handles stay valid until RevokeObjectURL is called; the store never
// expires them on its own.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Blob
}

// NewStore creates an empty handle store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Blob)}
}

// CreateObjectURL registers b and returns its handle.
func (s *Store) CreateObjectURL(b *Blob) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = b
	s.mu.Unlock()
	return URLPrefix + id
}

// Resolve returns the blob behind a handle. Both the full "blob:" URL and
// the bare id are accepted.
func (s *Store) Resolve(url string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[strings.TrimPrefix(url, URLPrefix)]
	return b, ok
}

// RevokeObjectURL drops a handle. Unknown handles are ignored.
func (s *Store) RevokeObjectURL(url string) {
	s.mu.Lock()
	delete(s.entries, strings.TrimPrefix(url, URLPrefix))
	s.mu.Unlock()
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ID returns the bare id of a handle.
func ID(url string) string {
	return strings.TrimPrefix(url, URLPrefix)
}
