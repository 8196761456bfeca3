package version

import (
	"context"
	"encoding/json"
	"errors"

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

// NewRepoPG creates the PostgreSQL-backed version store.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const versionCols = `id, entry_id, created_at, updated_at, editor_id,
	change_reason, entry_data, operation_type, data_checksum`

func scanVersion(row pgx.Row) (*EntryVersion, error) {
	var v EntryVersion
	var data []byte
	err := row.Scan(&v.ID, &v.EntryID, &v.CreatedAt, &v.UpdatedAt, &v.EditorID,
		&v.ChangeReason, &data, &v.OperationType, &v.DataChecksum)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &v.EntryData); err != nil {
		return nil, errs.Database("decode version snapshot", err)
	}
	return &v, nil
}

func (r *repoPG) Insert(ctx context.Context, v *EntryVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	data, err := json.Marshal(v.EntryData)
	if err != nil {
		return errs.Database("encode version snapshot", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO entry_versions (id, entry_id, editor_id, change_reason,
			entry_data, operation_type, data_checksum)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		v.ID, v.EntryID, v.EditorID, v.ChangeReason, data, v.OperationType, v.DataChecksum).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	return errs.Database("insert entry version", err)
}

func (r *repoPG) GetByID(ctx context.Context, entryID, versionID uuid.UUID) (*EntryVersion, error) {
	v, err := scanVersion(r.conn(ctx).QueryRow(ctx, `
		SELECT `+versionCols+` FROM entry_versions
		WHERE entry_id = $1 AND id = $2`, entryID, versionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("entry version", versionID.String())
	}
	if err != nil {
		return nil, errs.Database("select entry version", err)
	}
	return v, nil
}

func (r *repoPG) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]*EntryVersion, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+versionCols+` FROM entry_versions
		WHERE entry_id = $1
		ORDER BY updated_at DESC, created_at DESC`, entryID)
	if err != nil {
		return nil, errs.Database("list entry versions", err)
	}
	defer rows.Close()

	var versions []*EntryVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errs.Database("scan entry version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("iterate entry versions", err)
	}
	return versions, nil
}

func (r *repoPG) GetLatest(ctx context.Context, entryID uuid.UUID) (*EntryVersion, error) {
	v, err := scanVersion(r.conn(ctx).QueryRow(ctx, `
		SELECT `+versionCols+` FROM entry_versions
		WHERE entry_id = $1
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("entry version for entry", entryID.String())
	}
	if err != nil {
		return nil, errs.Database("select latest entry version", err)
	}
	return v, nil
}

func (r *repoPG) CountByEntry(ctx context.Context, entryID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM entry_versions WHERE entry_id = $1`, entryID).Scan(&n)
	if err != nil {
		return 0, errs.Database("count entry versions", err)
	}
	return n, nil
}
