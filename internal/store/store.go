// Package store defines the persistence ports of the server and the
// planner's local cache.
package store

import (
	"context"
	"errors"
	"time"

	"staffplan/internal/finance"
	"staffplan/internal/writeoff"
)

// DefaultDocumentID is the id of the single shared state document.
const DefaultDocumentID = "default"

var ErrNotFound = errors.New("document not found")

// Document is a stored state snapshot.
type Document struct {
	ID        string
	Data      []byte
	Revision  int64
	UpdatedAt time.Time
}

// Ports for persistence adapters.
type (
	// DocumentStore keeps whole state documents by id. Saving replaces the
	// previous document and bumps its revision.
	DocumentStore interface {
		LoadDocument(ctx context.Context, id string) (Document, error)
		SaveDocument(ctx context.Context, id string, data []byte) (Document, error)
		Ping(ctx context.Context) error
	}

	// KeyValueStore holds small JSON values for the planner's local cache.
	// Get returns nil and no error for a missing key.
	KeyValueStore interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte) error
	}
)

// ReportExporter publishes the year reports to an external destination.
type ReportExporter interface {
	ExportReports(ctx context.Context, fin finance.Report, wo writeoff.Report) error
}
