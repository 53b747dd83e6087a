// Package sync mirrors an AppState to a local key-value store and to the
// remote state document.
//
// Startup loads the local copy, then fetches the remote document once in
// the background. Until that fetch has finished (successfully or not) no
// push is made, so a stale local copy never overwrites the server. Edits
// made meanwhile are pushed once hydration ends, unless the remote document
// replaced them. After hydration every change is written to the local
// store at once and pushed to the server as a full snapshot after a quiet
// period.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"staffplan/internal/state"
)

// DefaultDebounce is the quiet period before a push.
const DefaultDebounce = 800 * time.Millisecond

const defaultPushTimeout = 15 * time.Second

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("syncer closed")

// LocalStore keeps one JSON value per key. Get returns nil and no error for
// a missing key.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RemoteStore reads and writes the shared state document. FetchSnapshot
// returns nil when the server has none.
type RemoteStore interface {
	FetchSnapshot(ctx context.Context) (*state.Snapshot, error)
	PushSnapshot(ctx context.Context, s *state.Snapshot) error
}

type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseHydrating
	PhaseHydrated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseHydrating:
		return "hydrating"
	case PhaseHydrated:
		return "hydrated"
	}
	return "unknown"
}

type Option func(*Syncer)

// WithDebounce sets the quiet period before a push.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithFetchTimeout bounds the remote fetch made during hydration. A fetch
// that times out counts as failed and the local copy is kept.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithPushTimeout bounds each push made by the debounce timer.
func WithPushTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

// Syncer connects an AppState to its stores.
type Syncer struct {
	state        *state.AppState
	local        LocalStore
	remote       RemoteStore
	debounce     time.Duration
	pushTimeout  time.Duration
	fetchTimeout time.Duration

	phase     atomic.Int32
	hydrated  chan struct{}
	started   atomic.Bool
	replacing atomic.Bool
	unsub     func()

	mu      gosync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	closed  bool
	// dirty is set by edits made before hydration ended.
	dirty bool

	pushMu   gosync.Mutex
	inflight gosync.WaitGroup
	pushes   atomic.Int64
}

func New(st *state.AppState, local LocalStore, remote RemoteStore, opts ...Option) *Syncer {
	s := &Syncer{
		state:       st,
		local:       local,
		remote:      remote,
		debounce:    DefaultDebounce,
		pushTimeout: defaultPushTimeout,
		hydrated:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the local copy into the state and begins the remote fetch.
// It returns once the local copy is loaded; use WaitHydrated to wait for
// the fetch. Only the first call has an effect.
func (s *Syncer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	s.phase.Store(int32(PhaseHydrating))
	s.loadLocal(ctx)
	unsub := s.state.Subscribe(s.onChange)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	go s.hydrate(context.WithoutCancel(ctx))
	return nil
}

func (s *Syncer) loadLocal(ctx context.Context) {
	snap := state.Seed()
	for _, f := range state.AllFields {
		data, err := s.local.Get(ctx, f.Key())
		if err != nil {
			slog.WarnContext(ctx, "Failed to read local state", "key", f.Key(), "error", err)
			continue
		}
		if data == nil {
			continue
		}
		if err := snap.DecodeField(f, data); err != nil {
			slog.WarnContext(ctx, "Discarding malformed local state", "key", f.Key(), "error", err)
		}
	}
	s.state.Replace(snap)
}

func (s *Syncer) hydrate(ctx context.Context) {
	defer s.finishHydration()

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	remote, err := s.remote.FetchSnapshot(fetchCtx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load remote state, using local copy", "error", err)
		return
	}
	if remote == nil {
		slog.InfoContext(ctx, "Remote state is empty, keeping local copy")
		return
	}

	// the remote document wins over edits made so far
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.replacing.Store(true)
	s.state.Replace(remote)
	s.replacing.Store(false)
	slog.InfoContext(ctx, "Hydrated from remote state",
		"people", len(remote.People),
		"projects", len(remote.Projects),
		"assignments", len(remote.Assignments))
}

func (s *Syncer) finishHydration() {
	s.mu.Lock()
	s.phase.Store(int32(PhaseHydrated))
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()
	close(s.hydrated)

	if dirty {
		slog.Debug("Pushing edits made while hydrating")
		s.schedule()
	}
}

// onChange writes changed fields to the local store and, once hydrated,
// re-arms the push timer. Before that it only remembers that an edit
// happened.
func (s *Syncer) onChange(changed []state.Field) {
	ctx := context.Background()
	snap := s.state.Snapshot()
	for _, f := range changed {
		data, err := snap.EncodeField(f)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to encode state field", "key", f.Key(), "error", err)
			continue
		}
		if err := s.local.Set(ctx, f.Key(), data); err != nil {
			slog.WarnContext(ctx, "Failed to write local state", "key", f.Key(), "error", err)
		}
	}

	s.mu.Lock()
	hydrated := s.Phase() == PhaseHydrated
	if !hydrated && !s.replacing.Load() {
		s.dirty = true
	}
	s.mu.Unlock()
	if hydrated {
		s.schedule()
	}
}

func (s *Syncer) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = true
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Syncer) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pending || s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
	defer cancel()
	if err := s.push(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to push state", "error", err)
	}
}

// push sends the whole current state. Pushes never overlap.
func (s *Syncer) push(ctx context.Context) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	snap := s.state.Snapshot()
	if err := s.remote.PushSnapshot(ctx, snap); err != nil {
		return err
	}
	s.pushes.Add(1)
	slog.DebugContext(ctx, "Pushed state", "assignments", len(snap.Assignments))
	return nil
}

// Phase reports the hydration phase.
func (s *Syncer) Phase() Phase {
	return Phase(s.phase.Load())
}

// WaitHydrated blocks until the remote fetch has finished or ctx is done.
func (s *Syncer) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pushes returns the number of successful pushes.
func (s *Syncer) Pushes() int64 {
	return s.pushes.Load()
}

// Close stops the timer and, when a push is pending, makes it now. It
// waits for a push already in flight. Changes after Close are neither
// stored nor pushed.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	pending := s.pending
	s.pending = false
	unsub := s.unsub
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.inflight.Wait()
	if pending && s.Phase() == PhaseHydrated {
		return s.push(ctx)
	}
	return nil
}
