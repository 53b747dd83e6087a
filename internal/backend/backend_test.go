package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/config"
	"staffplan/internal/store"
)

const seed = `{"people":[{"id":"x1","name":"Vera","role":"qa","capacityPerWeek":1,"active":true}]}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"postgres without dsn", Config{Type: PostgresBackend}, "PostgreSQL DSN is required"},
		{"unknown type", Config{Type: "sheets"}, "invalid backend type: sheets"},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, "AMQP exchange and queue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)
	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err, "unknown backends are rejected")

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "postgres",
		PostgresDSN:  "postgres://localhost/staffplan",
		SeedFile:     "seed.json",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "staffplan",
		AMQPQueue:    "state_saved",
	})
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.NotEmpty(t, cfg.PostgresDSN)
	assert.Equal(t, "seed.json", cfg.SeedFile)
	assert.Equal(t, "state_saved", cfg.AMQPQueue)
}

func TestBackendTypes(t *testing.T) {
	assert.Equal(t, config.Backends, GetBackendTypeStrings())
	for _, bt := range GetBackendTypes() {
		assert.True(t, bt.IsValid(), "%s is not valid", bt)
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: writeSeed(t, seed)})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Publisher, "publisher set without AMQP URL")
	snap, rev, err := res.Service.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rev)
	require.Len(t, snap.People, 1)
	assert.Equal(t, "Vera", snap.People[0].Name)
}

func TestCreateBackend_SQLiteSeedsOnce(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	cfg := Config{Type: SQLiteBackend, SQLiteDBPath: dbPath, SeedFile: writeSeed(t, seed)}

	res, err := NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	doc, err := res.Store.LoadDocument(ctx, store.DefaultDocumentID)
	require.NoError(t, err, "seed not stored")
	assert.EqualValues(t, 1, doc.Revision)
	_, err = res.Service.Save(ctx, []byte(`{"roles":["dev"]}`))
	require.NoError(t, err)
	require.NoError(t, res.Cleanup())

	res, err = NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	defer res.Cleanup()
	doc, err = res.Store.LoadDocument(ctx, store.DefaultDocumentID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Revision, "seed must not overwrite a stored document")
}

func TestCreateBackend_InvalidSeed(t *testing.T) {
	cfg := Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "state.db"),
		SeedFile:     writeSeed(t, `{"people": 42}`),
	}
	_, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}
