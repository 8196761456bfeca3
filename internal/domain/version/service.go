package version

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/db"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// Service provides the version-control operations for entries: appending
// versions, reading history, the optimistic concurrency check, snapshot
// diffing, and restore.
type Service struct {
	versions Repository
	entries  entry.Repository
	runner   db.Runner
}

// NewService creates a version Service over the given stores.
func NewService(versions Repository, entries entry.Repository, runner db.Runner) *Service {
	return &Service{versions: versions, entries: entries, runner: runner}
}

// CreateVersionInput carries the inputs for appending a version. EntryData
// is optional; when nil the entry's current live state is loaded, normalized
// and snapshotted instead.
type CreateVersionInput struct {
	EntryID       uuid.UUID
	EditorID      string
	ChangeReason  string
	EntryData     *entry.Entry
	OperationType OperationType
}

func validateChangeReason(reason string, op OperationType) error {
	// The implicit first CREATE version is exempt from the minimum length.
	if op == OpCreate {
		return nil
	}
	if len(strings.TrimSpace(reason)) < MinChangeReasonLen {
		return errs.Validation("changeReason",
			"must be at least 10 characters")
	}
	return nil
}

// CreateVersion appends one immutable version row for the entry. The
// snapshot is normalized and checksummed before it is written. Joins the
// caller's transaction when one is in the context, otherwise runs in its own.
func (s *Service) CreateVersion(ctx context.Context, in CreateVersionInput) (*EntryVersion, error) {
	if !in.OperationType.Valid() {
		return nil, errs.Validation("operationType", "must be CREATE, UPDATE or RESTORE")
	}
	if in.EditorID == "" {
		return nil, errs.Validation("editorId", "is required")
	}
	if err := validateChangeReason(in.ChangeReason, in.OperationType); err != nil {
		return nil, err
	}

	var v *EntryVersion
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		live, err := s.entries.GetByID(ctx, in.EntryID)
		if err != nil {
			return err
		}

		src := live
		if in.EntryData != nil {
			// The snapshot's identity always comes from the live row; a
			// caller-supplied payload cannot claim a different entry.
			cp := *in.EntryData
			cp.ID = live.ID
			cp.PatientID = live.PatientID
			src = &cp
		}

		normalized, err := entry.Normalize(src)
		if err != nil {
			return err
		}
		snap, err := entry.Snapshot(normalized)
		if err != nil {
			return err
		}
		sum, err := entry.ChecksumSnapshot(snap)
		if err != nil {
			return err
		}

		v = &EntryVersion{
			EntryID:       in.EntryID,
			EditorID:      in.EditorID,
			ChangeReason:  in.ChangeReason,
			EntryData:     snap,
			OperationType: in.OperationType,
			DataChecksum:  sum,
		}
		return s.versions.Insert(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetVersion loads one version and verifies its snapshot checksum.
func (s *Service) GetVersion(ctx context.Context, entryID, versionID uuid.UUID) (*EntryVersion, error) {
	v, err := s.versions.GetByID(ctx, entryID, versionID)
	if err != nil {
		return nil, err
	}
	if err := v.VerifyChecksum(); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns the entry's full version history, newest first.
func (s *Service) ListVersions(ctx context.Context, entryID uuid.UUID) ([]*EntryVersion, error) {
	return s.versions.ListByEntry(ctx, entryID)
}

// GetLatestVersion returns the most recent version of the entry.
func (s *Service) GetLatestVersion(ctx context.Context, entryID uuid.UUID) (*EntryVersion, error) {
	return s.versions.GetLatest(ctx, entryID)
}

// CheckConcurrency reports whether the entry was modified after the client
// last read it: true means conflict. This is an advisory pre-flight check;
// the write path re-validates freshness atomically in its UPDATE's WHERE
// clause, so a stale client can never slip between check and write.
func (s *Service) CheckConcurrency(ctx context.Context, entryID uuid.UUID, clientLastSeen time.Time) (bool, error) {
	updatedAt, err := s.entries.GetUpdatedAt(ctx, entryID)
	if err != nil {
		return false, err
	}
	return updatedAt.After(clientLastSeen), nil
}

// resolveSnapshot materializes the snapshot behind a version identifier.
// The sentinel "current" synthesizes a pseudo-version from the entry's live
// state; anything else must be an existing version id.
func (s *Service) resolveSnapshot(ctx context.Context, entryID uuid.UUID, versionID string) (map[string]interface{}, error) {
	if versionID == CurrentVersionID {
		live, err := s.entries.GetByID(ctx, entryID)
		if err != nil {
			return nil, err
		}
		normalized, err := entry.Normalize(live)
		if err != nil {
			return nil, err
		}
		return entry.Snapshot(normalized)
	}

	id, err := uuid.Parse(versionID)
	if err != nil {
		return nil, errs.Validation("versionId", "must be a version id or \"current\"")
	}
	v, err := s.versions.GetByID(ctx, entryID, id)
	if err != nil {
		return nil, err
	}
	if err := v.VerifyChecksum(); err != nil {
		return nil, err
	}
	return v.EntryData, nil
}

// Diff computes the field-level difference between two snapshots of an
// entry, directional A to B. Either identifier may be "current". Read-only.
func (s *Service) Diff(ctx context.Context, entryID uuid.UUID, versionA, versionB string) (*VersionDiff, error) {
	a, err := s.resolveSnapshot(ctx, entryID, versionA)
	if err != nil {
		return nil, err
	}
	b, err := s.resolveSnapshot(ctx, entryID, versionB)
	if err != nil {
		return nil, err
	}

	return &VersionDiff{
		EntryID:  entryID,
		VersionA: versionA,
		VersionB: versionB,
		Changes:  DiffSnapshots(a, b),
	}, nil
}

// snapshotToEntry rehydrates a typed entry from a stored snapshot map.
func snapshotToEntry(snap map[string]interface{}) (*entry.Entry, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errs.Database("encode snapshot", err)
	}
	var e entry.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Restore rehydrates the entry's live rows to match the target version and
// appends a RESTORE version recording the act. All steps run in one
// transaction; versions created after the target are left untouched.
func (s *Service) Restore(ctx context.Context, entryID, targetVersionID uuid.UUID, editorID, changeReason string) (*entry.Entry, error) {
	if editorID == "" {
		return nil, errs.Validation("editorId", "is required")
	}
	if err := validateChangeReason(changeReason, OpRestore); err != nil {
		return nil, err
	}

	var restored *entry.Entry
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.versions.GetByID(ctx, entryID, targetVersionID)
		if err != nil {
			return err
		}
		if target.EntryData == nil {
			return errs.NotFound("entry data for version", targetVersionID.String())
		}
		if err := target.VerifyChecksum(); err != nil {
			return err
		}

		live, err := s.entries.GetByID(ctx, entryID)
		if err != nil {
			return err
		}

		candidate, err := snapshotToEntry(target.EntryData)
		if err != nil {
			return err
		}
		// The variant tag is immutable for the lifetime of an entry; a
		// historical snapshot with a different tag is corruption, not input.
		if candidate.Type != live.Type {
			return errs.Validation("type",
				"target version has variant "+string(candidate.Type)+", entry is "+string(live.Type))
		}

		// Historical data may predate later validation rules.
		normalized, err := entry.Normalize(candidate)
		if err != nil {
			return err
		}
		normalized.ID = live.ID
		normalized.PatientID = live.PatientID
		normalized.CreatedAt = live.CreatedAt

		updatedAt, err := s.entries.Overwrite(ctx, normalized)
		if err != nil {
			return err
		}
		normalized.UpdatedAt = updatedAt

		if _, err := s.CreateVersion(ctx, CreateVersionInput{
			EntryID:       entryID,
			EditorID:      editorID,
			ChangeReason:  changeReason,
			EntryData:     normalized,
			OperationType: OpRestore,
		}); err != nil {
			return err
		}

		restored = normalized
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// RecordCreate appends the implicit CREATE version for a freshly created
// entry. Implements the entry package's VersionRecorder.
func (s *Service) RecordCreate(ctx context.Context, e *entry.Entry, editorID, changeReason string) error {
	_, err := s.CreateVersion(ctx, CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      editorID,
		ChangeReason:  changeReason,
		EntryData:     e,
		OperationType: OpCreate,
	})
	return err
}

// RecordUpdate appends an UPDATE version for an already-written live state.
// Implements the entry package's VersionRecorder.
func (s *Service) RecordUpdate(ctx context.Context, e *entry.Entry, editorID, changeReason string) error {
	_, err := s.CreateVersion(ctx, CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      editorID,
		ChangeReason:  changeReason,
		EntryData:     e,
		OperationType: OpUpdate,
	})
	return err
}
