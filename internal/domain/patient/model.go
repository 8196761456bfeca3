// Package patient provides the owning resource for entries. Patients are
// ordinary CRUD rows; only their entries are versioned.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DateOfBirth string    `json:"dateOfBirth" db:"date_of_birth"`
	Gender      string    `json:"gender" db:"gender"`
	Occupation  string    `json:"occupation" db:"occupation"`
	SSN         *string   `json:"ssn,omitempty" db:"ssn"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
