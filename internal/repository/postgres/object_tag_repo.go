package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"tagset/internal/domain"

	"github.com/lib/pq"
)

type objectTagRepository struct {
	DB *sql.DB
}

// NewObjectTagRepository returns a domain.ObjectTagRepository implemented with Postgres.
func NewObjectTagRepository(db *sql.DB) domain.ObjectTagRepository {
	return &objectTagRepository{DB: db}
}

func (r *objectTagRepository) GetCodes(ctx context.Context, kind, objectID, field string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, selectObjectCodes, kind, objectID, field)
	if err != nil {
		return nil, err
	}
	return scanCodes(rows)
}

const selectObjectCodes = `SELECT tag_code FROM object_tags
		 WHERE kind = $1 AND object_id = $2 AND field = $3
		 ORDER BY tag_code`

func scanCodes(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// lockAllowList takes the allow-list lock of kind.field, shared unless exclusive is set.
// Edits hold it shared; deleting an allowed tag holds it exclusive.
func lockAllowList(ctx context.Context, tx *sql.Tx, kind, field string, exclusive bool) error {
	fn := "pg_advisory_xact_lock_shared"
	if exclusive {
		fn = "pg_advisory_xact_lock"
	}
	_, err := tx.ExecContext(ctx,
		`SELECT `+fn+`(hashtext('tags:' || classification)) FROM tag_fields WHERE kind = $1 AND field = $2`,
		kind, field)
	return err
}

func (r *objectTagRepository) EditCodes(ctx context.Context, kind, objectID, field string, limit int, edit domain.CodesEdit) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockAllowList(ctx, tx, kind, field, false); err != nil {
		return fmt.Errorf("lock allow-list: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, kind+"/"+objectID+"."+field); err != nil {
		return fmt.Errorf("lock object tags: %w", err)
	}
	rows, err := tx.QueryContext(ctx, selectObjectCodes, kind, objectID, field)
	if err != nil {
		return fmt.Errorf("get object tags: %w", err)
	}
	stored, err := scanCodes(rows)
	if err != nil {
		return fmt.Errorf("get object tags: %w", err)
	}

	delta, err := edit(stored)
	if err != nil {
		return err
	}
	if delta.IsEmpty() {
		return tx.Commit()
	}

	if len(delta.Removed) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM object_tags WHERE kind = $1 AND object_id = $2 AND field = $3 AND tag_code = ANY($4)`,
			kind, objectID, field, pq.Array(delta.Removed)); err != nil {
			return fmt.Errorf("delete removed tags: %w", err)
		}
	}
	for _, code := range delta.Added {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO object_tags (kind, object_id, field, tag_code) VALUES ($1, $2, $3, $4) ON CONFLICT (kind, object_id, field, tag_code) DO NOTHING`,
			kind, objectID, field, code); err != nil {
			return fmt.Errorf("insert tag %q: %w", code, err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM object_tags WHERE kind = $1 AND object_id = $2 AND field = $3`,
		kind, objectID, field).Scan(&count); err != nil {
		return fmt.Errorf("count object tags: %w", err)
	}
	// an over-limit value may shrink without reaching the limit
	if count > limit && count > len(stored) {
		return fmt.Errorf("%d tags stored for %s/%s.%s (max %d): %w", count, kind, objectID, field, limit, domain.ErrCapacityExceeded)
	}
	return tx.Commit()
}
