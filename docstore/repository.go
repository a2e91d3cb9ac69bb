package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"level-publish-system/logger"
	"level-publish-system/monitoring"

	"go.uber.org/zap"
)

// Repository serializes read-modify-write cycles over a Backend. Runs in
// this process take a mutex; other writers are caught by the backend's
// version check and the mutation is re-applied to a fresh copy.
type Repository struct {
	backend     Backend
	maxAttempts int
	mu          sync.Mutex
}

func NewRepository(backend Backend, maxAttempts int) *Repository {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Repository{backend: backend, maxAttempts: maxAttempts}
}

// Load returns the current document (empty if none was ever written).
func (r *Repository) Load(ctx context.Context) (Document, error) {
	doc, _, err := r.backend.Load(ctx)
	return doc, err
}

// Update loads the document, applies fn and saves the result. If fn returns
// an error nothing is written. fn may run more than once.
func (r *Repository) Update(ctx context.Context, fn func(Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		doc, version, err := r.backend.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}

		_, err = r.backend.Save(ctx, doc, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}

		lastErr = err
		monitoring.DocStoreConflicts.Inc()
		logger.Log.Warn("[DOCSTORE] version conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
		)
	}
	return fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, lastErr)
}
