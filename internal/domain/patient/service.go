package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// Service provides business logic for the patient domain.
type Service struct {
	patients Repository
}

// NewService creates a new patient Service.
func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func validate(p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errs.Validation("name", "is required")
	}
	p.Occupation = strings.TrimSpace(p.Occupation)
	if _, err := time.Parse(entry.DateLayout, p.DateOfBirth); err != nil {
		return errs.Validation("dateOfBirth", "must be a calendar date")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}
