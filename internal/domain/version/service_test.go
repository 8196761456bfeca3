package version

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

type passRunner struct{}

func (passRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockVersionRepo struct {
	versions map[uuid.UUID]*EntryVersion
	now      time.Time
}

func newMockVersionRepo() *mockVersionRepo {
	return &mockVersionRepo{
		versions: make(map[uuid.UUID]*EntryVersion),
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockVersionRepo) Insert(ctx context.Context, v *EntryVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	m.now = m.now.Add(time.Second)
	v.CreatedAt = m.now
	v.UpdatedAt = m.now
	cp := *v
	m.versions[v.ID] = &cp
	return nil
}

func (m *mockVersionRepo) GetByID(ctx context.Context, entryID, versionID uuid.UUID) (*EntryVersion, error) {
	v, ok := m.versions[versionID]
	if !ok || v.EntryID != entryID {
		return nil, errs.NotFound("entry version", versionID.String())
	}
	cp := *v
	return &cp, nil
}

func (m *mockVersionRepo) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]*EntryVersion, error) {
	var out []*EntryVersion
	for _, v := range m.versions {
		if v.EntryID == entryID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockVersionRepo) GetLatest(ctx context.Context, entryID uuid.UUID) (*EntryVersion, error) {
	all, _ := m.ListByEntry(ctx, entryID)
	if len(all) == 0 {
		return nil, errs.NotFound("entry version for entry", entryID.String())
	}
	return all[0], nil
}

func (m *mockVersionRepo) CountByEntry(ctx context.Context, entryID uuid.UUID) (int, error) {
	n := 0
	for _, v := range m.versions {
		if v.EntryID == entryID {
			n++
		}
	}
	return n, nil
}

type mockEntryRepo struct {
	entries map[uuid.UUID]*entry.Entry
	now     time.Time
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{
		entries: make(map[uuid.UUID]*entry.Entry),
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockEntryRepo) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *mockEntryRepo) Create(ctx context.Context, e *entry.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	t := m.tick()
	e.CreatedAt = t
	e.UpdatedAt = t
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, errs.NotFound("entry", id.String())
	}
	cp := *e
	return &cp, nil
}

func (m *mockEntryRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entry.Entry, int, error) {
	var items []*entry.Entry
	for _, e := range m.entries {
		if e.PatientID == patientID {
			cp := *e
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockEntryRepo) GetUpdatedAt(ctx context.Context, id uuid.UUID) (time.Time, error) {
	e, ok := m.entries[id]
	if !ok {
		return time.Time{}, errs.NotFound("entry", id.String())
	}
	return e.UpdatedAt, nil
}

func (m *mockEntryRepo) UpdateConditional(ctx context.Context, e *entry.Entry, expectedUpdatedAt time.Time) (time.Time, error) {
	stored, ok := m.entries[e.ID]
	if !ok {
		return time.Time{}, errs.NotFound("entry", e.ID.String())
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return time.Time{}, errs.VersionConflict("entry " + e.ID.String() + " was modified after it was last read")
	}
	return m.Overwrite(ctx, e)
}

func (m *mockEntryRepo) Overwrite(ctx context.Context, e *entry.Entry) (time.Time, error) {
	stored, ok := m.entries[e.ID]
	if !ok {
		return time.Time{}, errs.NotFound("entry", e.ID.String())
	}
	t := m.tick()
	cp := *e
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = t
	m.entries[e.ID] = &cp
	return t, nil
}

func (m *mockEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.entries[id]; !ok {
		return errs.NotFound("entry", id.String())
	}
	delete(m.entries, id)
	return nil
}

func testEntry() *entry.Entry {
	return &entry.Entry{
		PatientID:   uuid.New(),
		Type:        entry.KindHealthCheck,
		Description: "Annual check",
		Date:        "2024-03-15",
		Specialist:  "Dr. House",
		Details:     entry.HealthCheckDetails{HealthCheckRating: 1},
	}
}

func newTestService() (*Service, *mockVersionRepo, *mockEntryRepo) {
	versions := newMockVersionRepo()
	entries := newMockEntryRepo()
	return NewService(versions, entries, passRunner{}), versions, entries
}

// seedEntry persists a live entry and its implicit CREATE version.
func seedEntry(t *testing.T, svc *Service, entries *mockEntryRepo) *entry.Entry {
	t.Helper()
	e := testEntry()
	if err := entries.Create(context.Background(), e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := svc.RecordCreate(context.Background(), e, "dr-house", ""); err != nil {
		t.Fatalf("seed create version: %v", err)
	}
	return e
}

func TestCreateVersion_ShortReasonRejectedBeforeWrite(t *testing.T) {
	svc, versions, entries := newTestService()
	e := seedEntry(t, svc, entries)

	before, _ := versions.CountByEntry(context.Background(), e.ID)

	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-wilson",
		ChangeReason:  "too short",
		OperationType: OpUpdate,
	})
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	after, _ := versions.CountByEntry(context.Background(), e.ID)
	if after != before {
		t.Error("rejected version must not be written")
	}
}

func TestCreateVersion_CreateExemptFromReason(t *testing.T) {
	svc, _, entries := newTestService()
	e := testEntry()
	if err := entries.Create(context.Background(), e); err != nil {
		t.Fatalf("seed: %v", err)
	}

	v, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-house",
		OperationType: OpCreate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.OperationType != OpCreate {
		t.Errorf("unexpected operation type: %s", v.OperationType)
	}
	if v.DataChecksum == "" {
		t.Error("expected checksum on stored version")
	}
}

func TestCreateVersion_ReasonTrimmedLength(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	// 12 runes of padding around 6 significant characters.
	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-wilson",
		ChangeReason:  "   typofix   ",
		OperationType: OpUpdate,
	})
	if !errs.IsValidation(err) {
		t.Fatalf("expected padding not to satisfy the minimum, got %v", err)
	}
}

func TestCreateVersion_NilDataSnapshotsLiveState(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	v, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-wilson",
		ChangeReason:  "snapshot of live state",
		OperationType: OpUpdate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.EntryData["description"] != "Annual check" {
		t.Errorf("expected live state in snapshot, got %v", v.EntryData["description"])
	}
}

func TestCreateVersion_SnapshotIdentityFromLiveEntry(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	// A payload claiming a different entry (or none at all) must not be
	// able to plant foreign identity fields into the stored snapshot.
	foreign := *e
	foreign.ID = uuid.New()
	foreign.PatientID = uuid.New()
	foreign.Description = "Corrected notes"

	v, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-wilson",
		ChangeReason:  "corrected the notes",
		EntryData:     &foreign,
		OperationType: OpUpdate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.EntryData["id"] != e.ID.String() {
		t.Errorf("snapshot id = %v, want %s", v.EntryData["id"], e.ID)
	}
	if v.EntryData["patientId"] != e.PatientID.String() {
		t.Errorf("snapshot patientId = %v, want %s", v.EntryData["patientId"], e.PatientID)
	}
	if v.EntryData["description"] != "Corrected notes" {
		t.Errorf("payload content lost: %v", v.EntryData["description"])
	}
}

func TestCreateVersion_UnknownEntry(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       uuid.New(),
		EditorID:      "dr-wilson",
		ChangeReason:  "version for a missing entry",
		EntryData:     testEntry(),
		OperationType: OpUpdate,
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateVersion_InvalidOperation(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		EntryID:       e.ID,
		EditorID:      "dr-wilson",
		ChangeReason:  "some operation",
		OperationType: "MERGE",
	})
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetVersion_DetectsTamperedSnapshot(t *testing.T) {
	svc, versions, entries := newTestService()
	e := seedEntry(t, svc, entries)

	latest, err := svc.GetLatestVersion(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	// Corrupt the stored snapshot behind the service's back.
	versions.versions[latest.ID].EntryData["description"] = "tampered"

	if _, err := svc.GetVersion(context.Background(), e.ID, latest.ID); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestListVersions_NewestFirst(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	for _, reason := range []string{"first follow-up edit", "second follow-up edit"} {
		if err := svc.RecordUpdate(context.Background(), e, "dr-wilson", reason); err != nil {
			t.Fatalf("record update: %v", err)
		}
	}

	list, err := svc.ListVersions(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].UpdatedAt.After(list[i-1].UpdatedAt) {
			t.Error("versions not in newest-first order")
		}
	}
	if list[0].ChangeReason != "second follow-up edit" {
		t.Errorf("unexpected newest version: %q", list[0].ChangeReason)
	}
	if list[len(list)-1].OperationType != OpCreate {
		t.Error("expected the oldest version to be the CREATE")
	}
}

func TestCheckConcurrency(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	conflict, err := svc.CheckConcurrency(context.Background(), e.ID, e.UpdatedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict {
		t.Error("expected no conflict when client is current")
	}

	conflict, err = svc.CheckConcurrency(context.Background(), e.ID, e.UpdatedAt.Add(-time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conflict {
		t.Error("expected conflict when client read before the last write")
	}
}

func TestCheckConcurrency_UnknownEntry(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CheckConcurrency(context.Background(), uuid.New(), time.Now())
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDiff_CurrentAgainstItselfIsEmpty(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	d, err := svc.Diff(context.Background(), e.ID, CurrentVersionID, CurrentVersionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Changes) != 0 {
		t.Errorf("expected empty diff, got %+v", d.Changes)
	}
}

func TestDiff_VersionAgainstCurrent(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	first, err := svc.GetLatestVersion(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	// Mutate the live entry and record the new state.
	edited, _ := entries.GetByID(context.Background(), e.ID)
	edited.Description = "Edited description"
	if _, err := entries.Overwrite(context.Background(), edited); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := svc.RecordUpdate(context.Background(), edited, "dr-wilson", "edited the description"); err != nil {
		t.Fatalf("record update: %v", err)
	}

	d, err := svc.Diff(context.Background(), e.ID, first.ID.String(), CurrentVersionID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(d.Changes) != 1 {
		t.Fatalf("expected 1 change, got %+v", d.Changes)
	}
	ch := d.Changes[0]
	if ch.Path != "description" || ch.Type != "changed" {
		t.Errorf("unexpected change: %+v", ch)
	}
	if ch.OldValue != "Annual check" || ch.NewValue != "Edited description" {
		t.Errorf("unexpected values: %+v", ch)
	}
}

func TestDiff_BadVersionID(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	_, err := svc.Diff(context.Background(), e.ID, "not-a-uuid", CurrentVersionID)
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	svc, versions, entries := newTestService()
	e := seedEntry(t, svc, entries)

	target, err := svc.GetLatestVersion(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	// Drift the live entry away from the target version.
	edited, _ := entries.GetByID(context.Background(), e.ID)
	edited.Description = "Drifted description"
	edited.Details = entry.HealthCheckDetails{HealthCheckRating: 3}
	if _, err := entries.Overwrite(context.Background(), edited); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := svc.RecordUpdate(context.Background(), edited, "dr-wilson", "drifted before restore"); err != nil {
		t.Fatalf("record update: %v", err)
	}

	countBefore, _ := versions.CountByEntry(context.Background(), e.ID)

	restored, err := svc.Restore(context.Background(), e.ID, target.ID, "dr-cuddy", "reverting a bad correction")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Description != "Annual check" {
		t.Errorf("live state not restored: %q", restored.Description)
	}
	if restored.Details.(entry.HealthCheckDetails).HealthCheckRating != 1 {
		t.Error("variant payload not restored")
	}
	if !restored.CreatedAt.Equal(e.CreatedAt) {
		t.Error("createdAt must survive a restore")
	}
	if !restored.UpdatedAt.After(edited.UpdatedAt) {
		t.Error("restore must advance updatedAt")
	}

	// Restore appends, never rewrites: exactly one new RESTORE version.
	countAfter, _ := versions.CountByEntry(context.Background(), e.ID)
	if countAfter != countBefore+1 {
		t.Errorf("expected %d versions after restore, got %d", countBefore+1, countAfter)
	}
	latest, _ := svc.GetLatestVersion(context.Background(), e.ID)
	if latest.OperationType != OpRestore {
		t.Errorf("expected latest version to be RESTORE, got %s", latest.OperationType)
	}

	// The target version row is untouched.
	targetAfter, err := svc.GetVersion(context.Background(), e.ID, target.ID)
	if err != nil {
		t.Fatalf("target after restore: %v", err)
	}
	if targetAfter.DataChecksum != target.DataChecksum {
		t.Error("restore mutated a historical version")
	}

	// The live state now matches the restored version exactly.
	d, err := svc.Diff(context.Background(), e.ID, target.ID.String(), CurrentVersionID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(d.Changes) != 0 {
		t.Errorf("expected live state to equal the target snapshot, diff %+v", d.Changes)
	}
}

func TestRestore_RequiresReason(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	target, _ := svc.GetLatestVersion(context.Background(), e.ID)
	_, err := svc.Restore(context.Background(), e.ID, target.ID, "dr-cuddy", "short")
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestore_UnknownVersion(t *testing.T) {
	svc, _, entries := newTestService()
	e := seedEntry(t, svc, entries)

	_, err := svc.Restore(context.Background(), e.ID, uuid.New(), "dr-cuddy", "restoring a missing version")
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRestore_VariantTagMismatchFails(t *testing.T) {
	svc, versions, entries := newTestService()
	e := seedEntry(t, svc, entries)

	target, _ := svc.GetLatestVersion(context.Background(), e.ID)

	// Forge a historical snapshot carrying a different variant tag. The
	// checksum is recomputed so only the tag check can reject it.
	forged := versions.versions[target.ID]
	forged.EntryData["type"] = string(entry.KindHospital)
	forged.EntryData["discharge"] = map[string]interface{}{"date": "2024-05-07", "criteria": "ok"}
	delete(forged.EntryData, "healthCheckRating")
	sum, err := entry.ChecksumSnapshot(forged.EntryData)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	forged.DataChecksum = sum

	_, err = svc.Restore(context.Background(), e.ID, target.ID, "dr-cuddy", "restoring across variants")
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error for variant mismatch, got %v", err)
	}
}
