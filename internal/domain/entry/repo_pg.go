package entry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vlarumal/CareVault-sub000/internal/platform/db"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed entry repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// parseDate converts a normalized calendar-date string into a time.Time for
// a DATE column.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errs.Validation("date", "unparsable date "+s)
	}
	return t, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	q := r.conn(ctx)

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	date, err := parseDate(e.Date)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx, `
		INSERT INTO entries (id, patient_id, type, description, date, specialist)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.Type, e.Description, date, e.Specialist).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return errs.Database("insert entry", err)
	}

	if err := r.writeDetails(ctx, q, e); err != nil {
		return err
	}
	return r.replaceDiagnosisCodes(ctx, q, e.ID, e.DiagnosisCodes)
}

// writeDetails upserts the variant sub-table row for the entry's kind.
func (r *repoPG) writeDetails(ctx context.Context, q queryable, e *Entry) error {
	switch d := e.Details.(type) {
	case HealthCheckDetails:
		_, err := q.Exec(ctx, `
			INSERT INTO entry_health_check (entry_id, health_check_rating)
			VALUES ($1,$2)
			ON CONFLICT (entry_id) DO UPDATE SET health_check_rating = EXCLUDED.health_check_rating`,
			e.ID, d.HealthCheckRating)
		return errs.Database("write health check details", err)

	case HospitalDetails:
		dischargeDate, err := parseDate(d.Discharge.Date)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO entry_hospital (entry_id, discharge_date, discharge_criteria)
			VALUES ($1,$2,$3)
			ON CONFLICT (entry_id) DO UPDATE SET
				discharge_date = EXCLUDED.discharge_date,
				discharge_criteria = EXCLUDED.discharge_criteria`,
			e.ID, dischargeDate, d.Discharge.Criteria)
		return errs.Database("write hospital details", err)

	case OccupationalHealthcareDetails:
		var start, end *time.Time
		if d.SickLeave != nil {
			s, err := parseDate(d.SickLeave.StartDate)
			if err != nil {
				return err
			}
			en, err := parseDate(d.SickLeave.EndDate)
			if err != nil {
				return err
			}
			start, end = &s, &en
		}
		_, err := q.Exec(ctx, `
			INSERT INTO entry_occupational (entry_id, employer_name, sick_leave_start, sick_leave_end)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (entry_id) DO UPDATE SET
				employer_name = EXCLUDED.employer_name,
				sick_leave_start = EXCLUDED.sick_leave_start,
				sick_leave_end = EXCLUDED.sick_leave_end`,
			e.ID, d.EmployerName, start, end)
		return errs.Database("write occupational details", err)
	}
	return errs.Validation("type", "entry has no variant payload")
}

// replaceDiagnosisCodes swaps the association rows, delete-then-insert.
func (r *repoPG) replaceDiagnosisCodes(ctx context.Context, q queryable, entryID uuid.UUID, codes []string) error {
	if _, err := q.Exec(ctx, `DELETE FROM entry_diagnosis_codes WHERE entry_id = $1`, entryID); err != nil {
		return errs.Database("delete diagnosis codes", err)
	}
	for i, code := range codes {
		if _, err := q.Exec(ctx, `
			INSERT INTO entry_diagnosis_codes (entry_id, code, position)
			VALUES ($1,$2,$3)`, entryID, code, i); err != nil {
			return errs.Database("insert diagnosis code", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := r.conn(ctx)

	var e Entry
	var date time.Time
	err := q.QueryRow(ctx, `
		SELECT id, patient_id, type, description, date, specialist, created_at, updated_at
		FROM entries WHERE id = $1`, id).
		Scan(&e.ID, &e.PatientID, &e.Type, &e.Description, &date, &e.Specialist, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("entry", id.String())
	}
	if err != nil {
		return nil, errs.Database("select entry", err)
	}
	e.Date = date.Format(DateLayout)

	if err := r.loadDetails(ctx, q, &e); err != nil {
		return nil, err
	}
	codes, err := r.loadDiagnosisCodes(ctx, q, e.ID)
	if err != nil {
		return nil, err
	}
	e.DiagnosisCodes = codes
	return &e, nil
}

func (r *repoPG) loadDetails(ctx context.Context, q queryable, e *Entry) error {
	switch e.Type {
	case KindHealthCheck:
		var d HealthCheckDetails
		err := q.QueryRow(ctx, `
			SELECT health_check_rating FROM entry_health_check WHERE entry_id = $1`, e.ID).
			Scan(&d.HealthCheckRating)
		if err != nil {
			return errs.Database("select health check details", err)
		}
		e.Details = d

	case KindHospital:
		var d HospitalDetails
		var dischargeDate time.Time
		err := q.QueryRow(ctx, `
			SELECT discharge_date, discharge_criteria FROM entry_hospital WHERE entry_id = $1`, e.ID).
			Scan(&dischargeDate, &d.Discharge.Criteria)
		if err != nil {
			return errs.Database("select hospital details", err)
		}
		d.Discharge.Date = dischargeDate.Format(DateLayout)
		e.Details = d

	case KindOccupationalHealthcare:
		var d OccupationalHealthcareDetails
		var start, end *time.Time
		err := q.QueryRow(ctx, `
			SELECT employer_name, sick_leave_start, sick_leave_end
			FROM entry_occupational WHERE entry_id = $1`, e.ID).
			Scan(&d.EmployerName, &start, &end)
		if err != nil {
			return errs.Database("select occupational details", err)
		}
		if start != nil && end != nil {
			d.SickLeave = &SickLeave{
				StartDate: start.Format(DateLayout),
				EndDate:   end.Format(DateLayout),
			}
		}
		e.Details = d

	default:
		return errs.Validation("type", "unknown entry type "+string(e.Type))
	}
	return nil
}

func (r *repoPG) loadDiagnosisCodes(ctx context.Context, q queryable, entryID uuid.UUID) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT code FROM entry_diagnosis_codes WHERE entry_id = $1 ORDER BY position`, entryID)
	if err != nil {
		return nil, errs.Database("select diagnosis codes", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errs.Database("scan diagnosis code", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("iterate diagnosis codes", err)
	}
	return codes, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE patient_id = $1`, patientID).
		Scan(&total); err != nil {
		return nil, 0, errs.Database("count entries", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id FROM entries WHERE patient_id = $1
		ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, errs.Database("list entries", err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, errs.Database("scan entry id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, errs.Database("iterate entries", err)
	}

	items := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}

func (r *repoPG) GetUpdatedAt(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var updatedAt time.Time
	err := r.conn(ctx).QueryRow(ctx, `SELECT updated_at FROM entries WHERE id = $1`, id).
		Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, errs.NotFound("entry", id.String())
	}
	if err != nil {
		return time.Time{}, errs.Database("select entry updated_at", err)
	}
	return updatedAt, nil
}

func (r *repoPG) UpdateConditional(ctx context.Context, e *Entry, expectedUpdatedAt time.Time) (time.Time, error) {
	q := r.conn(ctx)

	date, err := parseDate(e.Date)
	if err != nil {
		return time.Time{}, err
	}

	// The freshness check rides in the WHERE clause so check and write are
	// one atomic statement; no row lock is held across the edit session.
	var newUpdatedAt time.Time
	err = q.QueryRow(ctx, `
		UPDATE entries
		SET description = $3, date = $4, specialist = $5, updated_at = NOW()
		WHERE id = $1 AND updated_at = $2
		RETURNING updated_at`,
		e.ID, expectedUpdatedAt, e.Description, date, e.Specialist).
		Scan(&newUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the entry is gone or someone committed after the caller's
		// read; distinguish for the error taxonomy.
		if _, lookupErr := r.GetUpdatedAt(ctx, e.ID); lookupErr != nil {
			return time.Time{}, lookupErr
		}
		return time.Time{}, errs.VersionConflict("entry " + e.ID.String() + " was modified after it was last read")
	}
	if err != nil {
		return time.Time{}, errs.Database("update entry", err)
	}

	if err := r.writeDetails(ctx, q, e); err != nil {
		return time.Time{}, err
	}
	if err := r.replaceDiagnosisCodes(ctx, q, e.ID, e.DiagnosisCodes); err != nil {
		return time.Time{}, err
	}
	return newUpdatedAt, nil
}

func (r *repoPG) Overwrite(ctx context.Context, e *Entry) (time.Time, error) {
	q := r.conn(ctx)

	date, err := parseDate(e.Date)
	if err != nil {
		return time.Time{}, err
	}

	var newUpdatedAt time.Time
	err = q.QueryRow(ctx, `
		UPDATE entries
		SET description = $2, date = $3, specialist = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.Description, date, e.Specialist).
		Scan(&newUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, errs.NotFound("entry", e.ID.String())
	}
	if err != nil {
		return time.Time{}, errs.Database("overwrite entry", err)
	}

	if err := r.writeDetails(ctx, q, e); err != nil {
		return time.Time{}, err
	}
	if err := r.replaceDiagnosisCodes(ctx, q, e.ID, e.DiagnosisCodes); err != nil {
		return time.Time{}, err
	}
	return newUpdatedAt, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return errs.Database("delete entry", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("entry", id.String())
	}
	return nil
}
