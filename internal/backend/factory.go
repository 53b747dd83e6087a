package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"staffplan/internal/amqp"
	"staffplan/internal/services"
	"staffplan/internal/state"
	"staffplan/internal/storage"
	"staffplan/internal/storage/postgres"
	"staffplan/internal/store"
	"staffplan/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured store, seeds it when empty, connects
// the optional AMQP publisher and builds the state service on top.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.Type != MemoryBackend {
		if err := seedIfEmpty(ctx, st, config.SeedFile); err != nil {
			closeStore(st)
			return nil, err
		}
	}

	result := &BackendResult{Store: st}

	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			publisher = client
		}
	}

	result.Service = services.NewStateService(st, publisher)
	result.Cleanup = result.Service.Close

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", result.Publisher != nil)

	return result, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (store.DocumentStore, error) {
	switch config.Type {
	case MemoryBackend:
		st, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		f.logger.Info("Initialized memory store", "seed_file", config.SeedFile)
		return st, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		pg, err := postgres.Open(ctx, postgres.Config{DSN: config.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		f.logger.Info("Initialized postgres store", "dsn", postgres.MaskDSN(config.PostgresDSN))
		return pg, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

// seedIfEmpty stores the seed file as the first document when the store
// holds none. The seed must decode as a snapshot.
func seedIfEmpty(ctx context.Context, st store.DocumentStore, path string) error {
	if path == "" {
		return nil
	}
	if _, err := st.LoadDocument(ctx, store.DefaultDocumentID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check existing state: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	snap, err := state.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("seed file %s: %w", path, err)
	}
	if snap == nil {
		return nil
	}
	body, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	doc, err := st.SaveDocument(ctx, store.DefaultDocumentID, body)
	if err != nil {
		return fmt.Errorf("store seed: %w", err)
	}
	slog.InfoContext(ctx, "Seeded empty store", "seed_file", path, "revision", doc.Revision)
	return nil
}

func closeStore(st store.DocumentStore) {
	if c, ok := st.(io.Closer); ok {
		_ = c.Close()
	}
}
