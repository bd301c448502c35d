package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage implements ObjectStorage in process memory.
// URLs have the Cloudinary shape so PublicIDFromURL round-trips them.
type MemoryStorage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		baseURL: "https://storage.local/upload/",
		objects: make(map[string][]byte),
	}
}

// Upload stores r under path
func (s *MemoryStorage) Upload(_ context.Context, p string, r io.Reader) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	id := PublicIDFromPath(p)
	s.mu.Lock()
	s.objects[id] = buf.Bytes()
	s.mu.Unlock()
	return s.baseURL + strings.Trim(p, "/"), nil
}

// Delete removes the object served at url
func (s *MemoryStorage) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, PublicIDFromURL(url))
	return nil
}

// List returns the objects under prefix, sorted by public ID
func (s *MemoryStorage) List(_ context.Context, prefix string) ([]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix = strings.Trim(prefix, "/")
	var objects []Object
	for id := range s.objects {
		if strings.HasPrefix(id, prefix) {
			objects = append(objects, Object{PublicID: id, URL: s.baseURL + id})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].PublicID < objects[j].PublicID })
	return objects, nil
}

// Content returns the stored bytes of a public ID
func (s *MemoryStorage) Content(publicID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[publicID]
	return b, ok
}
