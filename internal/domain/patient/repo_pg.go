package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/db"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed patient repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, name, date_of_birth, gender, occupation, ssn, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob time.Time
	err := row.Scan(&p.ID, &p.Name, &dob, &p.Gender, &p.Occupation, &p.SSN,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = dob.Format(entry.DateLayout)
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	dob, err := time.Parse(entry.DateLayout, p.DateOfBirth)
	if err != nil {
		return errs.Validation("dateOfBirth", "unparsable date "+p.DateOfBirth)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, date_of_birth, gender, occupation, ssn)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, dob, p.Gender, p.Occupation, p.SSN).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	return errs.Database("insert patient", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errs.Database("select patient", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, errs.Database("count patients", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+patientCols+` FROM patients
		ORDER BY name, created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errs.Database("list patients", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, errs.Database("scan patient", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.Database("iterate patients", err)
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	dob, err := time.Parse(entry.DateLayout, p.DateOfBirth)
	if err != nil {
		return errs.Validation("dateOfBirth", "unparsable date "+p.DateOfBirth)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients
		SET name=$2, date_of_birth=$3, gender=$4, occupation=$5, ssn=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, dob, p.Gender, p.Occupation, p.SSN)
	if err != nil {
		return errs.Database("update patient", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("patient", p.ID.String())
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return errs.Database("delete patient", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("patient", id.String())
	}
	return nil
}
