package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/infra/artifactstore"
)

// DeletedEvent is published once a collection and its artifacts are gone.
type DeletedEvent struct {
	CollectionID uuid.UUID
	DeletedAt    time.Time
}

// ReadIndexNotifier is the read-side projection's inbound edge (spec.md §1
// places the projection itself out of scope). NoopReadIndexNotifier is the
// default: nothing downstream consumes the event within this core.
type ReadIndexNotifier interface {
	NotifyDeleted(ctx context.Context, event DeletedEvent) error
}

// NoopReadIndexNotifier discards every event.
type NoopReadIndexNotifier struct{}

func (NoopReadIndexNotifier) NotifyDeleted(ctx context.Context, event DeletedEvent) error {
	return nil
}

// Service hosts collection operations that span more than a single
// repository round trip.
type Service struct {
	repo     Repository
	store    artifactstore.Store
	notifier ReadIndexNotifier
}

// NewService constructs a Service. A nil notifier defaults to
// NoopReadIndexNotifier.
func NewService(repo Repository, store artifactstore.Store, notifier ReadIndexNotifier) *Service {
	if notifier == nil {
		notifier = NoopReadIndexNotifier{}
	}
	return &Service{repo: repo, store: store, notifier: notifier}
}

// Delete removes a collection: its thumbnail and cache artifact
// directories (C3), then its array-table rows and its own row in one
// transaction (C2), then notifies the read-side index. Artifacts are
// removed before the database row so a crash mid-delete leaves an
// orphaned row pointing at nothing worse than already-missing files,
// never live files a deleted row can no longer find.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("load collection %s: %w", id, err)
	}

	if err := s.store.DeleteCollection(ctx, artifactstore.KindThumbnail, id); err != nil {
		return fmt.Errorf("delete thumbnail artifacts for %s: %w", id, err)
	}
	if err := s.store.DeleteCollection(ctx, artifactstore.KindCache, id); err != nil {
		return fmt.Errorf("delete cache artifacts for %s: %w", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete collection %s: %w", id, err)
	}

	return s.notifier.NotifyDeleted(ctx, DeletedEvent{CollectionID: id, DeletedAt: time.Now()})
}
