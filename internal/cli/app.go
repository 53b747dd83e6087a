package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staffplan/internal/calendar"
	"staffplan/internal/config"
	"staffplan/internal/remote"
	"staffplan/internal/services"
	"staffplan/internal/state"
	"staffplan/internal/storage"
	"staffplan/internal/sync"
)

// hydrateGrace is how much longer than the fetch itself OpenSession waits
// for hydration to finish.
const hydrateGrace = 5 * time.Second

// App holds what the commands work on. Mutations go to State; whoever
// built the App is responsible for syncing them.
type App struct {
	State   *state.AppState
	Reports *services.Reports
}

// NewApp wraps an existing state. A nil clock uses the system clock.
func NewApp(st *state.AppState, clock calendar.Clock) *App {
	return &App{State: st, Reports: services.NewReports(clock)}
}

// Session is an App backed by the local state file and the server.
type Session struct {
	*App
	syncer *sync.Syncer
	local  *storage.SQLiteRepository
}

// OpenSession loads the local copy, fetches the server state and keeps
// both in sync until Close. A server that fails or does not answer within
// cfg.SyncFetchTimeout leaves the session on the local copy.
func OpenSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	local, err := storage.NewSQLiteRepository(cfg.LocalStatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	client, err := remote.New(cfg.APIURL)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	st := state.New(nil)
	syncer := sync.New(st, local, client,
		sync.WithDebounce(cfg.SyncDebounce),
		sync.WithFetchTimeout(cfg.SyncFetchTimeout))
	if err := syncer.Start(ctx); err != nil {
		_ = local.Close()
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.SyncFetchTimeout+hydrateGrace)
	defer cancel()
	if err := syncer.WaitHydrated(waitCtx); err != nil {
		_ = syncer.Close(context.WithoutCancel(ctx))
		_ = local.Close()
		return nil, fmt.Errorf("wait for server state: %w", err)
	}

	return &Session{App: NewApp(st, nil), syncer: syncer, local: local}, nil
}

// Close pushes pending edits and closes the local store.
func (s *Session) Close(ctx context.Context) error {
	pushErr := s.syncer.Close(ctx)
	if pushErr != nil {
		pushErr = fmt.Errorf("push state (kept locally): %w", pushErr)
	}
	return errors.Join(pushErr, s.local.Close())
}
