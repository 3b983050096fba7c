package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultResolveTimeout bounds one shared lookup-or-create.
const DefaultResolveTimeout = 30 * time.Second

// Locator resolves the handle of the state document once per session and
// caches it. Concurrent first-time callers share a single resolution, so
// only one create can ever be issued for a session.
type Locator struct {
	store  DocumentStore
	name   string
	logger *slog.Logger

	group   singleflight.Group
	timeout time.Duration

	mu sync.RWMutex
	id string
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithDocumentName overrides the document name (default DocumentName).
func WithDocumentName(name string) LocatorOption {
	return func(l *Locator) {
		l.name = name
	}
}

// WithResolveTimeout bounds how long a shared resolution may run.
func WithResolveTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger used for resolution events.
func WithLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator creates a Locator over the given store.
func NewLocator(store DocumentStore, opts ...LocatorOption) *Locator {
	l := &Locator{
		store:   store,
		name:    DocumentName,
		timeout: DefaultResolveTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the state document's ID, listing the store and creating the
// document if needed. Failures are not cached.
func (l *Locator) Resolve(ctx context.Context) (string, error) {
	if id, ok := l.Resolved(); ok {
		return id, nil
	}

	// Callers sharing the resolution each wait on their own ctx; the shared
	// call runs detached from the first caller and is bounded by l.timeout.
	ch := l.group.DoChan(l.name, func() (interface{}, error) {
		// A concurrent Do may have finished between our check and this call.
		if id, ok := l.Resolved(); ok {
			return id, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		id, err := l.lookupOrCreate(rctx)
		if err != nil {
			return "", err
		}
		l.mu.Lock()
		l.id = id
		l.mu.Unlock()
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrResolve, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			l.logger.Debug("Shared in-flight document resolution", "document", l.name)
		}
		return res.Val.(string), nil
	}
}

func (l *Locator) lookupOrCreate(ctx context.Context) (string, error) {
	files, err := l.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: list: %w", ErrResolve, err)
	}

	var found []File
	for _, f := range files {
		if f.Name == l.name {
			found = append(found, f)
		}
	}
	if len(found) > 0 {
		if len(found) > 1 {
			l.logger.Warn("Multiple state documents found, using the first",
				"document", l.name,
				"count", len(found),
				"document_id", found[0].ID,
			)
		}
		l.logger.Info("Found state document", "document_id", found[0].ID, "size", found[0].Size)
		return found[0].ID, nil
	}

	l.logger.Info("State document not found, creating it", "document", l.name)
	f, err := l.store.Create(ctx, l.name, MIMEType)
	if err != nil {
		return "", fmt.Errorf("%w: create: %w", ErrResolve, err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("%w: create returned no id", ErrResolve)
	}
	l.logger.Info("Created state document", "document_id", f.ID)
	return f.ID, nil
}

// Resolved returns the cached handle, if there is one.
func (l *Locator) Resolved() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id, l.id != ""
}

// Reset forgets the cached handle so the next Resolve looks it up again.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.id = ""
	l.mu.Unlock()
	l.group.Forget(l.name)
}
