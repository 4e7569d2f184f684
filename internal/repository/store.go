package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrRemoteUnavailable = errors.New("document store unavailable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidPath       = errors.New("invalid document path")
)

// Document is one stored record. Data holds JSON-compatible values only.
type Document struct {
	ID         string
	Path       string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Query selects every document of one collection. An empty OrderBy sorts by id.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
}

// Snapshot is the complete result set of a query at one moment.
type Snapshot struct {
	Docs []Document
	At   time.Time
}

// Store is a remote document database with live queries. Writes are
// last-write-wins; implementations never retry a failed call.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// Set creates or overwrites the document. With merge, existing fields
	// not present in data are kept.
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// Update merges fields into an existing document and fails with
	// ErrNotFound when it does not exist.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, q Query) ([]Document, error)
	// Subscribe delivers a full snapshot on activation and after every
	// change to the collection, until the subscription is closed or ctx ends.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	NewID() string
	HealthCheck(ctx context.Context) error
	Close()
}
