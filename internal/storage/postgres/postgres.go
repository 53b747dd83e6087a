// Package postgres stores state documents in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"staffplan/internal/store"
)

// StateDocument is the row of one state document.
type StateDocument struct {
	ID        string `gorm:"primaryKey;size:64"`
	Data      string `gorm:"type:jsonb;not null"`
	Revision  int64  `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

func (StateDocument) TableName() string { return "app_state" }

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Config controls the connection.
type Config struct {
	DSN      string
	Retries  int
	Interval time.Duration
	Debug    bool
}

// Open connects to PostgreSQL, retrying while the server starts, and
// migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < cfg.Retries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "Retrying postgres connection", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres after %d attempts: %w", cfg.Retries, err)
	}
	slog.InfoContext(ctx, "Connected to postgres", "dsn", MaskDSN(cfg.DSN))

	if err := db.WithContext(ctx).AutoMigrate(&StateDocument{}); err != nil {
		return nil, fmt.Errorf("migrate app_state: %w", err)
	}
	return New(db), nil
}

// New wraps an open gorm handle whose schema is already migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// LoadDocument implements store.DocumentStore
func (s *Store) LoadDocument(ctx context.Context, id string) (store.Document, error) {
	var row StateDocument
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	return toDocument(row), nil
}

// SaveDocument implements store.DocumentStore
func (s *Store) SaveDocument(ctx context.Context, id string, data []byte) (store.Document, error) {
	row := StateDocument{ID: id, Data: string(data), Revision: 1, UpdatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"data":       row.Data,
				"revision":   gorm.Expr("app_state.revision + 1"),
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.First(&row, "id = ?", id).Error
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("save document %s: %w", id, err)
	}
	return toDocument(row), nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDocument(row StateDocument) store.Document {
	return store.Document{
		ID:        row.ID,
		Data:      []byte(row.Data),
		Revision:  row.Revision,
		UpdatedAt: row.UpdatedAt,
	}
}

var (
	passwordKV  = regexp.MustCompile(`(password=)([^\s]+)`)
	passwordURL = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
)

// MaskDSN hides the password of a key/value or URL style DSN.
func MaskDSN(dsn string) string {
	dsn = passwordKV.ReplaceAllString(dsn, `${1}***`)
	return passwordURL.ReplaceAllString(dsn, `${1}***${3}`)
}
