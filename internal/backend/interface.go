// Package backend builds the document store, publisher and state service
// selected by configuration.
package backend

import (
	"context"

	"staffplan/internal/amqp"
	"staffplan/internal/services"
	"staffplan/internal/store"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult is a ready state service together with the parts it was
// built from.
type BackendResult struct {
	Store   store.DocumentStore
	Service *services.StateService
	// Publisher is nil when AMQP is not configured or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
	// SeedFile is imported as the first document of an empty store.
	SeedFile string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
