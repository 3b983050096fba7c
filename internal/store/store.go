// Package store defines the remote document store feedtriage persists its
// state to, and the Locator that finds (or creates) the single state document.
package store

import (
	"context"
	"errors"
)

const (
	// DocumentName is the name of the state document in the app-private area.
	DocumentName = "state.json"
	// MIMEType is the content type the state document is created with.
	MIMEType = "application/json"
)

var (
	// ErrResolve is returned when the state document can be neither found nor created.
	ErrResolve = errors.New("failed to resolve state document")
	// ErrDocumentNotFound is returned by stores when a document ID no longer exists.
	ErrDocumentNotFound = errors.New("document not found")
)

// File describes a document in the store.
type File struct {
	ID   string
	Name string
	Size int64
}

// DocumentStore is a flat, app-private document area with whole-document
// reads and writes. There is no partial update: Write replaces the content.
type DocumentStore interface {
	// List returns the documents in the application's private area.
	List(ctx context.Context) ([]File, error)
	// Create makes an empty document and returns its handle.
	Create(ctx context.Context, name, mimeType string) (File, error)
	// Read returns the full content. Empty content is valid.
	Read(ctx context.Context, id string) ([]byte, error)
	// Write overwrites the full content.
	Write(ctx context.Context, id string, data []byte) error
}
