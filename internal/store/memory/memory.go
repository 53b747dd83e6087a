package memory

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"staffplan/internal/store"
)

// Store is a process-local DocumentStore and KeyValueStore.
type Store struct {
	mu   sync.Mutex
	docs map[string]store.Document
	kv   map[string][]byte
	now  func() time.Time
}

func New() *Store {
	return &Store{
		docs: map[string]store.Document{},
		kv:   map[string][]byte{},
		now:  time.Now,
	}
}

// NewFromFile returns a store whose default document is the content of
// path. A missing or empty file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return s, nil
	}
	if _, err := s.SaveDocument(context.Background(), store.DefaultDocumentID, data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) LoadDocument(_ context.Context, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	doc.Data = bytes.Clone(doc.Data)
	return doc, nil
}

func (s *Store) SaveDocument(_ context.Context, id string, data []byte) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := store.Document{
		ID:        id,
		Data:      bytes.Clone(data),
		Revision:  s.docs[id].Revision + 1,
		UpdatedAt: s.now().UTC(),
	}
	s.docs[id] = doc
	doc.Data = bytes.Clone(data)
	return doc, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.kv[key]), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = bytes.Clone(value)
	return nil
}
