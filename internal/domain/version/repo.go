package version

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only version store. Versions are inserted, never
// updated or deleted; listings are ordered newest-first by updated_at.
type Repository interface {
	Insert(ctx context.Context, v *EntryVersion) error
	GetByID(ctx context.Context, entryID, versionID uuid.UUID) (*EntryVersion, error)
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]*EntryVersion, error)
	GetLatest(ctx context.Context, entryID uuid.UUID) (*EntryVersion, error)
	CountByEntry(ctx context.Context, entryID uuid.UUID) (int, error)
}
