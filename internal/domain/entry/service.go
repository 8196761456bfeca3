package entry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/platform/db"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// VersionRecorder appends version rows for entry mutations. Implemented by
// the version package's Service; declared here so the entry service does not
// depend on the version package.
type VersionRecorder interface {
	RecordCreate(ctx context.Context, e *Entry, editorID, changeReason string) error
	RecordUpdate(ctx context.Context, e *Entry, editorID, changeReason string) error
}

// Service provides entry CRUD. Every mutation normalizes its input, writes
// the live rows and the version log in one transaction, and runs the
// optimistic concurrency protocol on updates.
type Service struct {
	repo     Repository
	versions VersionRecorder
	runner   db.Runner
}

// NewService creates an entry Service.
func NewService(repo Repository, versions VersionRecorder, runner db.Runner) *Service {
	return &Service{repo: repo, versions: versions, runner: runner}
}

// CreateInput carries a new entry and its audit metadata. ChangeReason is
// optional for the implicit CREATE version.
type CreateInput struct {
	Entry        *Entry
	EditorID     string
	ChangeReason string
}

// Create persists a new entry and records its implicit CREATE version
// atomically.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Entry, error) {
	if in.EditorID == "" {
		return nil, errs.Validation("editorId", "is required")
	}
	normalized, err := Normalize(in.Entry)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, normalized); err != nil {
			return err
		}
		return s.versions.RecordCreate(ctx, normalized, in.EditorID, in.ChangeReason)
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// UpdateInput carries an entry update. LastSeenUpdatedAt is the updatedAt
// the client read before editing; the write is rejected with a version
// conflict if anyone committed after that instant.
type UpdateInput struct {
	Entry             *Entry
	EditorID          string
	ChangeReason      string
	LastSeenUpdatedAt time.Time
}

// Update overwrites the entry's live rows and appends an UPDATE version in
// one transaction. The freshness check is folded into the live write's WHERE
// clause, so the whole operation is atomic with respect to concurrent
// editors; a stale client gets a VERSION_CONFLICT and nothing is written.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Entry, error) {
	if in.EditorID == "" {
		return nil, errs.Validation("editorId", "is required")
	}
	if in.LastSeenUpdatedAt.IsZero() {
		return nil, errs.Validation("lastSeenUpdatedAt", "is required")
	}

	var updated *Entry
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		live, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if in.Entry.Type != live.Type {
			return errs.Validation("type", "entry type is immutable")
		}

		candidate := *in.Entry
		candidate.ID = live.ID
		candidate.PatientID = live.PatientID

		normalized, err := Normalize(&candidate)
		if err != nil {
			return err
		}

		updatedAt, err := s.repo.UpdateConditional(ctx, normalized, in.LastSeenUpdatedAt)
		if err != nil {
			return err
		}
		normalized.CreatedAt = live.CreatedAt
		normalized.UpdatedAt = updatedAt

		if err := s.versions.RecordUpdate(ctx, normalized, in.EditorID, in.ChangeReason); err != nil {
			return err
		}
		updated = normalized
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get loads one entry with its variant payload and diagnosis codes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a page of the patient's entries.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Delete removes an entry and, via cascading constraints, its sub-table
// rows and version history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
