// Package version implements the entry version-control engine: the
// append-only version store, the optimistic concurrency guard, the snapshot
// diff engine, and the restore orchestrator. Versions are immutable; the set
// of versions for an entry only ever grows.
package version

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// OperationType tags what produced a version.
type OperationType string

const (
	OpCreate  OperationType = "CREATE"
	OpUpdate  OperationType = "UPDATE"
	OpRestore OperationType = "RESTORE"
)

// Valid reports whether op is a known operation type.
func (op OperationType) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpRestore:
		return true
	}
	return false
}

// MinChangeReasonLen is the minimum trimmed length of a change reason.
// The implicit first CREATE version is exempt.
const MinChangeReasonLen = 10

// CurrentVersionID is the sentinel version identifier meaning "synthesize a
// pseudo-version from the entry's live state right now".
const CurrentVersionID = "current"

// EntryVersion is one immutable historical snapshot of an entry. EntryData
// is the full normalized snapshot, not a delta; DataChecksum is its content
// hash.
type EntryVersion struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	EntryID       uuid.UUID              `json:"entryId" db:"entry_id"`
	CreatedAt     time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time              `json:"updatedAt" db:"updated_at"`
	EditorID      string                 `json:"editorId" db:"editor_id"`
	ChangeReason  string                 `json:"changeReason" db:"change_reason"`
	EntryData     map[string]interface{} `json:"entryData" db:"entry_data"`
	OperationType OperationType          `json:"operationType" db:"operation_type"`
	DataChecksum  string                 `json:"dataChecksum" db:"data_checksum"`
}

// VerifyChecksum recomputes the content hash of EntryData and compares it to
// DataChecksum, detecting corruption of a stored snapshot.
func (v *EntryVersion) VerifyChecksum() error {
	if v.EntryData == nil {
		return errs.Validationf("version %s has no entry data", v.ID)
	}
	sum, err := entry.ChecksumSnapshot(v.EntryData)
	if err != nil {
		return err
	}
	if sum != v.DataChecksum {
		return errs.Database("verify snapshot checksum",
			errs.Validationf("version %s checksum mismatch: stored %s, computed %s", v.ID, v.DataChecksum, sum))
	}
	return nil
}

// VersionDiff is the derived, non-persisted difference between two snapshots.
// Direction is A to B.
type VersionDiff struct {
	EntryID  uuid.UUID   `json:"entryId"`
	VersionA string      `json:"versionA"`
	VersionB string      `json:"versionB"`
	Changes  []FieldDiff `json:"changes"`
}
