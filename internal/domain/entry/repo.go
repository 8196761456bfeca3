package entry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists entries across the base table, the variant sub-table
// and the diagnosis-code association table. Every method participates in a
// transaction carried by the context when one is present, so the version log
// and the live rows can be written atomically by the caller.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)

	// GetUpdatedAt loads the authoritative last-modified timestamp.
	GetUpdatedAt(ctx context.Context, id uuid.UUID) (time.Time, error)

	// UpdateConditional overwrites the live rows only if the entry's
	// updated_at still equals expectedUpdatedAt, folding the concurrency
	// check into the write itself. A stale expectation surfaces as a
	// version conflict. Returns the new authoritative updated_at.
	UpdateConditional(ctx context.Context, e *Entry, expectedUpdatedAt time.Time) (time.Time, error)

	// Overwrite replaces the live rows unconditionally. Used by the restore
	// orchestrator, which holds the enclosing transaction. Returns the new
	// authoritative updated_at.
	Overwrite(ctx context.Context, e *Entry) (time.Time, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
