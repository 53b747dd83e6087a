package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/core"
	"staffplan/internal/state"
)

type memLocal struct {
	mu   gosync.Mutex
	data map[string][]byte
}

func newMemLocal() *memLocal { return &memLocal{data: map[string][]byte{}} }

func (m *memLocal) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memLocal) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type fakeRemote struct {
	snapshot *state.Snapshot
	fetchErr error
	gate     chan struct{}

	mu     gosync.Mutex
	pushed []*state.Snapshot
}

func (f *fakeRemote) FetchSnapshot(ctx context.Context) (*state.Snapshot, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.snapshot, f.fetchErr
}

func (f *fakeRemote) PushSnapshot(_ context.Context, s *state.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, s)
	return nil
}

func (f *fakeRemote) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func (f *fakeRemote) lastPush() *state.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushed[len(f.pushed)-1]
}

const debounce = 40 * time.Millisecond

func startSyncer(t *testing.T, st *state.AppState, local LocalStore, remote RemoteStore, opts ...Option) *Syncer {
	t.Helper()
	s := New(st, local, remote, append([]Option{WithDebounce(debounce)}, opts...)...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func waitHydrated(t *testing.T, s *Syncer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitHydrated(ctx))
	assert.Equal(t, PhaseHydrated, s.Phase())
}

func TestEditsWithinDebounceArePushedOnce(t *testing.T) {
	st := state.New(nil)
	remote := &fakeRemote{}
	s := startSyncer(t, st, newMemLocal(), remote)
	waitHydrated(t, s)

	require.NoError(t, st.AddRole("ops"))
	require.NoError(t, st.ToggleVacation("p1", "2024-03-04"))
	require.NoError(t, st.SetAssignmentCell("p2", "pr1", "2024-03-04", "16", core.KindPlan))

	require.Eventually(t, func() bool { return remote.pushCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * debounce)
	assert.Equal(t, 1, remote.pushCount())

	pushed := remote.lastPush()
	assert.Contains(t, pushed.Roles, "ops")
	assert.True(t, pushed.Vacations["p1"].Has("2024-03-04"))
	require.Len(t, pushed.Assignments, 1)
	assert.Equal(t, 0.4, pushed.Assignments[0].FTE)
	assert.EqualValues(t, 1, s.Pushes())
}

func TestFailedFetchFallsBackToLocal(t *testing.T) {
	local := newMemLocal()
	local.data[state.FieldRoles.Key()] = []byte(`["lead","other"]`)
	local.data[state.FieldPeople.Key()] = []byte(`{broken`)

	st := state.New(nil)
	remote := &fakeRemote{fetchErr: errors.New("connection refused")}
	s := startSyncer(t, st, local, remote)
	waitHydrated(t, s)

	snap := st.Snapshot()
	assert.Equal(t, []string{"lead", "other"}, snap.Roles)
	assert.Len(t, snap.People, 3, "malformed entry falls back to the seed")
	assert.Zero(t, remote.pushCount())

	require.NoError(t, st.AddRole("ops"))
	require.Eventually(t, func() bool { return remote.pushCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"lead", "other", "ops"}, remote.lastPush().Roles)
}

func TestRemoteIsAuthoritative(t *testing.T) {
	local := newMemLocal()
	local.data[state.FieldRoles.Key()] = []byte(`["local"]`)

	remoteSnap := state.Seed()
	remoteSnap.Roles = []string{"remote"}
	remote := &fakeRemote{snapshot: remoteSnap}

	st := state.New(nil)
	s := startSyncer(t, st, local, remote)
	waitHydrated(t, s)

	assert.Equal(t, []string{"remote"}, st.Snapshot().Roles)
	roles, _ := local.Get(context.Background(), state.FieldRoles.Key())
	assert.JSONEq(t, `["remote"]`, string(roles), "hydration refreshes the local copy")
	assert.Equal(t, []string{"p1", "p2", "p3"}, st.Snapshot().TeamOrder)

	time.Sleep(3 * debounce)
	assert.Zero(t, remote.pushCount(), "hydration alone does not push")
}

func TestNoPushBeforeHydration(t *testing.T) {
	local := newMemLocal()
	remoteSnap := state.Seed()
	remoteSnap.Roles = []string{"remote"}
	remote := &fakeRemote{snapshot: remoteSnap, gate: make(chan struct{})}
	st := state.New(nil)
	s := startSyncer(t, st, local, remote)

	assert.Equal(t, PhaseHydrating, s.Phase())
	require.NoError(t, st.AddRole("early"))
	stored, _ := local.Get(context.Background(), state.FieldRoles.Key())
	assert.Contains(t, string(stored), "early", "local copy is written while hydrating")

	time.Sleep(3 * debounce)
	assert.Zero(t, remote.pushCount())

	close(remote.gate)
	waitHydrated(t, s)
	assert.Equal(t, []string{"remote"}, st.Snapshot().Roles, "remote document replaces early edits")
	time.Sleep(3 * debounce)
	assert.Zero(t, remote.pushCount())
}

func TestEditsWhileHydratingArePushedAfterFailedFetch(t *testing.T) {
	remote := &fakeRemote{fetchErr: errors.New("bad gateway"), gate: make(chan struct{})}
	st := state.New(nil)
	s := startSyncer(t, st, newMemLocal(), remote)

	require.NoError(t, st.AddRole("early"))
	time.Sleep(3 * debounce)
	assert.Zero(t, remote.pushCount())

	close(remote.gate)
	waitHydrated(t, s)
	require.Eventually(t, func() bool { return remote.pushCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, remote.lastPush().Roles, "early")

	time.Sleep(3 * debounce)
	assert.Equal(t, 1, remote.pushCount())
}

func TestEditsWhileHydratingArePushedAfterEmptyFetch(t *testing.T) {
	remote := &fakeRemote{gate: make(chan struct{})}
	st := state.New(nil)
	s := startSyncer(t, st, newMemLocal(), remote)

	require.NoError(t, st.ToggleVacation("p1", "2024-03-04"))
	close(remote.gate)
	waitHydrated(t, s)

	require.Eventually(t, func() bool { return remote.pushCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, remote.lastPush().Vacations["p1"].Has("2024-03-04"))
}

func TestCloseFlushesEditsMadeWhileHydrating(t *testing.T) {
	remote := &fakeRemote{fetchErr: errors.New("connection reset"), gate: make(chan struct{})}
	st := state.New(nil)
	s := New(st, newMemLocal(), remote, WithDebounce(time.Hour))
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, st.AddRole("early"))
	close(remote.gate)
	waitHydrated(t, s)
	assert.Zero(t, remote.pushCount())

	require.NoError(t, s.Close(context.Background()))
	require.Equal(t, 1, remote.pushCount())
	assert.Contains(t, remote.lastPush().Roles, "early")
}

func TestFetchTimeoutKeepsLocalCopy(t *testing.T) {
	local := newMemLocal()
	local.data[state.FieldRoles.Key()] = []byte(`["lead"]`)
	remote := &fakeRemote{gate: make(chan struct{})}
	t.Cleanup(func() { close(remote.gate) })

	st := state.New(nil)
	s := startSyncer(t, st, local, remote, WithFetchTimeout(20*time.Millisecond))
	waitHydrated(t, s)

	assert.Equal(t, []string{"lead"}, st.Snapshot().Roles)
	assert.Zero(t, remote.pushCount())

	require.NoError(t, st.AddRole("ops"))
	require.Eventually(t, func() bool { return remote.pushCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"lead", "ops"}, remote.lastPush().Roles)
}

func TestCloseFlushesPendingPush(t *testing.T) {
	st := state.New(nil)
	remote := &fakeRemote{}
	s := New(st, newMemLocal(), remote, WithDebounce(time.Hour))
	require.NoError(t, s.Start(context.Background()))
	waitHydrated(t, s)

	require.NoError(t, st.AddRole("late"))
	assert.Zero(t, remote.pushCount())

	require.NoError(t, s.Close(context.Background()))
	require.Equal(t, 1, remote.pushCount())
	assert.Contains(t, remote.lastPush().Roles, "late")

	require.NoError(t, st.AddRole("after-close"))
	assert.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, remote.pushCount())
}

func TestCloseWithoutChangesDoesNotPush(t *testing.T) {
	remote := &fakeRemote{}
	s := New(state.New(nil), newMemLocal(), remote)
	require.NoError(t, s.Start(context.Background()))
	waitHydrated(t, s)
	require.NoError(t, s.Close(context.Background()))
	assert.Zero(t, remote.pushCount())
}

func TestStartAfterClose(t *testing.T) {
	s := New(state.New(nil), newMemLocal(), &fakeRemote{})
	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrClosed)
	assert.Equal(t, PhaseUninitialized, s.Phase())
}

func TestWaitHydratedHonoursContext(t *testing.T) {
	remote := &fakeRemote{gate: make(chan struct{})}
	s := startSyncer(t, state.New(nil), newMemLocal(), remote)
	defer close(remote.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitHydrated(ctx), context.DeadlineExceeded)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "hydrating", PhaseHydrating.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
