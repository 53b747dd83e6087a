package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"staffplan/internal/log"
	"staffplan/internal/state"
	"staffplan/internal/store"
)

// Publisher announces stored revisions to other processes.
type Publisher interface {
	PublishStateSaved(ctx context.Context, documentID string, revision int64) error
}

// StateService owns the shared state document: it validates and stores
// snapshots and announces every saved revision.
type StateService struct {
	store     store.DocumentStore
	publisher Publisher

	mu        sync.RWMutex
	listeners []func(store.Document)
}

// NewStateService creates the service. publisher may be nil.
func NewStateService(st store.DocumentStore, publisher Publisher) *StateService {
	return &StateService{
		store:     st,
		publisher: publisher,
	}
}

// OnSaved registers fn to run after every successful save.
func (s *StateService) OnSaved(fn func(store.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// LoadRaw returns the stored document bytes, or nil when nothing is stored.
func (s *StateService) LoadRaw(ctx context.Context) ([]byte, error) {
	doc, err := s.store.LoadDocument(ctx, store.DefaultDocumentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return doc.Data, nil
}

// LoadSnapshot decodes the stored document. A missing document yields the
// seed state at revision 0.
func (s *StateService) LoadSnapshot(ctx context.Context) (*state.Snapshot, int64, error) {
	doc, err := s.store.LoadDocument(ctx, store.DefaultDocumentID)
	if errors.Is(err, store.ErrNotFound) {
		return state.Seed(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load state: %w", err)
	}
	snap, err := state.DecodeSnapshot(doc.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode stored state: %w", err)
	}
	if snap == nil {
		return state.Seed(), doc.Revision, nil
	}
	return snap, doc.Revision, nil
}

// Save validates data as a snapshot, stores its normalized form under the
// default id and publishes the new revision. A publish failure is logged
// and does not fail the save.
func (s *StateService) Save(ctx context.Context, data []byte) (store.Document, error) {
	snap, err := state.DecodeSnapshot(data)
	if err != nil {
		return store.Document{}, err
	}
	if snap == nil {
		return store.Document{}, fmt.Errorf("%w: document is empty", state.ErrInvalidSnapshot)
	}
	body, err := snap.Encode()
	if err != nil {
		return store.Document{}, fmt.Errorf("encode state: %w", err)
	}

	doc, err := s.store.SaveDocument(ctx, store.DefaultDocumentID, body)
	if err != nil {
		return store.Document{}, fmt.Errorf("save state: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogStateSaved(ctx, doc.ID, doc.Revision, len(snap.People), len(snap.Projects), len(snap.Assignments))

	if s.publisher != nil {
		if err := s.publisher.PublishStateSaved(ctx, doc.ID, doc.Revision); err != nil {
			slog.ErrorContext(ctx, "Failed to publish state saved message",
				"revision", doc.Revision, "error", err)
		}
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(doc)
	}

	return doc, nil
}

func (s *StateService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and the publisher when they hold resources.
func (s *StateService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close state service: %w", errors.Join(errs...))
	}

	return nil
}
