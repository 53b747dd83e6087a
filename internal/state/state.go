package state

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"staffplan/internal/calendar"
)

// Observer is called after a mutation with the fields it changed. It runs
// outside the state lock and may read the state.
type Observer func(changed []Field)

// AppState is the in-memory application state. It is safe for concurrent
// use; every mutation notifies the registered observers.
type AppState struct {
	mu    sync.RWMutex
	snap  *Snapshot
	clock calendar.Clock
	newID func() string

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

type Option func(*AppState)

// WithClock sets the clock used for default dates.
func WithClock(c calendar.Clock) Option {
	return func(a *AppState) { a.clock = c }
}

// WithIDGenerator replaces the uuid generator for new entities.
func WithIDGenerator(fn func() string) Option {
	return func(a *AppState) { a.newID = fn }
}

// New returns a state holding a copy of initial, or the seed when nil.
func New(initial *Snapshot, opts ...Option) *AppState {
	a := &AppState{
		clock:     calendar.SystemClock{},
		newID:     uuid.NewString,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(a)
	}
	if initial == nil {
		a.snap = Seed()
	} else {
		a.snap = initial.Clone()
		a.snap.normalize()
	}
	reconcileTeamOrder(a.snap)
	return a
}

// Subscribe registers fn and returns a function removing it.
func (a *AppState) Subscribe(fn Observer) (unsubscribe func()) {
	a.obsMu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	a.obsMu.Unlock()
	return func() {
		a.obsMu.Lock()
		delete(a.observers, id)
		a.obsMu.Unlock()
	}
}

// Snapshot returns a deep copy of the current state.
func (a *AppState) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Clone()
}

// Read calls fn with the current state under the read lock. fn must not
// retain or modify s.
func (a *AppState) Read(fn func(s *Snapshot)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn(a.snap)
}

// Replace swaps every field for the content of s and reconciles the team
// order. Observers see all fields as changed.
func (a *AppState) Replace(s *Snapshot) {
	next := Seed()
	if s != nil {
		next = s.Clone()
		next.normalize()
	}
	reconcileTeamOrder(next)
	a.mu.Lock()
	a.snap = next
	a.mu.Unlock()
	a.notify(slices.Clone(AllFields))
}

// update runs fn under the write lock and notifies observers of the fields
// it reports as changed. On error nothing is notified; fn must not leave
// partial changes behind when it fails.
func (a *AppState) update(fn func(s *Snapshot) ([]Field, error)) error {
	a.mu.Lock()
	changed, err := fn(a.snap)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		a.notify(changed)
	}
	return nil
}

func (a *AppState) notify(changed []Field) {
	a.obsMu.Lock()
	keys := make([]int, 0, len(a.observers))
	for k := range a.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fns := make([]Observer, 0, len(keys))
	for _, k := range keys {
		fns = append(fns, a.observers[k])
	}
	a.obsMu.Unlock()
	for _, fn := range fns {
		fn(changed)
	}
}
