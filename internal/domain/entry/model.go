// Package entry implements the polymorphic medical entry model: the common
// base record, the three variant shapes, snapshot normalization, and content
// checksums. Entries are never overwritten destructively; every mutation is
// recorded by the version package as a full snapshot.
package entry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// Kind discriminates the entry variants. The kind of an entry is immutable
// for its lifetime: a version may correct fields within a variant but never
// change which variant the entry is.
type Kind string

const (
	KindHealthCheck            Kind = "HealthCheck"
	KindHospital               Kind = "Hospital"
	KindOccupationalHealthcare Kind = "OccupationalHealthcare"
)

// Valid reports whether k is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindHealthCheck, KindHospital, KindOccupationalHealthcare:
		return true
	}
	return false
}

// Discharge describes how a hospital stay ended.
type Discharge struct {
	Date     string `json:"date" db:"discharge_date"`
	Criteria string `json:"criteria" db:"discharge_criteria"`
}

// SickLeave is an optional leave interval on occupational entries.
type SickLeave struct {
	StartDate string `json:"startDate" db:"sick_leave_start"`
	EndDate   string `json:"endDate" db:"sick_leave_end"`
}

// Details is the sealed variant payload. Exactly one implementation exists
// per Kind; a type switch over Details is exhaustive.
type Details interface {
	Kind() Kind
}

// HealthCheckDetails carries the health check rating (0 best, 3 critical).
type HealthCheckDetails struct {
	HealthCheckRating int `json:"healthCheckRating"`
}

func (HealthCheckDetails) Kind() Kind { return KindHealthCheck }

// HospitalDetails carries the discharge record of a hospitalization.
type HospitalDetails struct {
	Discharge Discharge `json:"discharge"`
}

func (HospitalDetails) Kind() Kind { return KindHospital }

// OccupationalHealthcareDetails carries the employer and optional sick leave.
type OccupationalHealthcareDetails struct {
	EmployerName string     `json:"employerName"`
	SickLeave    *SickLeave `json:"sickLeave,omitempty"`
}

func (OccupationalHealthcareDetails) Kind() Kind { return KindOccupationalHealthcare }

// Entry is a single medical record belonging to a patient. Date is a plain
// calendar date (no time component); CreatedAt/UpdatedAt are
// server-authoritative and drive the optimistic concurrency protocol.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patientId"`
	Type           Kind      `json:"type"`
	Description    string    `json:"description"`
	Date           string    `json:"date"`
	Specialist     string    `json:"specialist"`
	DiagnosisCodes []string  `json:"diagnosisCodes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Details        Details   `json:"-"`
}

// entryJSON is the flat wire shape: variant fields live at the top level
// next to the base fields, discriminated by "type".
type entryJSON struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patientId"`
	Type           Kind       `json:"type"`
	Description    string     `json:"description"`
	Date           string     `json:"date"`
	Specialist     string     `json:"specialist"`
	DiagnosisCodes []string   `json:"diagnosisCodes,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`

	HealthCheckRating *int       `json:"healthCheckRating,omitempty"`
	Discharge         *Discharge `json:"discharge,omitempty"`
	EmployerName      *string    `json:"employerName,omitempty"`
	SickLeave         *SickLeave `json:"sickLeave,omitempty"`
}

// MarshalJSON flattens the variant payload into the base object.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := entryJSON{
		ID:             e.ID,
		PatientID:      e.PatientID,
		Type:           e.Type,
		Description:    e.Description,
		Date:           e.Date,
		Specialist:     e.Specialist,
		DiagnosisCodes: e.DiagnosisCodes,
	}
	if !e.CreatedAt.IsZero() {
		t := e.CreatedAt
		w.CreatedAt = &t
	}
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		w.UpdatedAt = &t
	}

	switch d := e.Details.(type) {
	case HealthCheckDetails:
		r := d.HealthCheckRating
		w.HealthCheckRating = &r
	case HospitalDetails:
		dis := d.Discharge
		w.Discharge = &dis
	case OccupationalHealthcareDetails:
		name := d.EmployerName
		w.EmployerName = &name
		w.SickLeave = d.SickLeave
	case nil:
		// base-only entry; Normalize rejects it
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire shape and reconstructs the variant
// payload from the "type" discriminator. Structural variant mismatches are
// rejected here; field-level rules are enforced by Normalize.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.ID = w.ID
	e.PatientID = w.PatientID
	e.Type = w.Type
	e.Description = w.Description
	e.Date = w.Date
	e.Specialist = w.Specialist
	e.DiagnosisCodes = w.DiagnosisCodes
	if w.CreatedAt != nil {
		e.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		e.UpdatedAt = *w.UpdatedAt
	}

	switch w.Type {
	case KindHealthCheck:
		if w.HealthCheckRating == nil {
			return errs.Validation("healthCheckRating", "is required for HealthCheck entries")
		}
		e.Details = HealthCheckDetails{HealthCheckRating: *w.HealthCheckRating}
	case KindHospital:
		if w.Discharge == nil {
			return errs.Validation("discharge", "is required for Hospital entries")
		}
		e.Details = HospitalDetails{Discharge: *w.Discharge}
	case KindOccupationalHealthcare:
		if w.EmployerName == nil {
			return errs.Validation("employerName", "is required for OccupationalHealthcare entries")
		}
		e.Details = OccupationalHealthcareDetails{
			EmployerName: *w.EmployerName,
			SickLeave:    w.SickLeave,
		}
	default:
		return errs.Validation("type", "unknown entry type "+string(w.Type))
	}

	return nil
}
