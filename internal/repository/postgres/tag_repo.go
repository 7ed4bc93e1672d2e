package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tagset/internal/domain"

	"github.com/lib/pq"
)

// Postgres error codes mapped to domain errors.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type tagRepository struct {
	DB *sql.DB
}

// NewTagRepository returns a domain.TagRepository implemented with Postgres.
func NewTagRepository(db *sql.DB) domain.TagRepository {
	return &tagRepository{DB: db}
}

func (r *tagRepository) LookupTagField(ctx context.Context, kind, field string) (*domain.TagField, error) {
	var f domain.TagField
	err := r.DB.QueryRowContext(ctx,
		`SELECT kind, field, classification, max_tags FROM tag_fields WHERE kind = $1 AND field = $2`,
		kind, field).Scan(&f.Kind, &f.Field, &f.Classification, &f.MaxTags)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

const selectAllowedTags = `SELECT t.id, t.classification, t.code, t.label, t.description, t.created_at, t.updated_at
		 FROM tags t
		 JOIN tag_fields f ON f.classification = t.classification
		 WHERE f.kind = $1 AND f.field = $2
		 ORDER BY t.code`

func (r *tagRepository) ListAllowed(ctx context.Context, kind, field string) ([]domain.Tag, error) {
	rows, err := r.DB.QueryContext(ctx, selectAllowedTags, kind, field)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

func (r *tagRepository) ListAllowedPage(ctx context.Context, kind, field string, params domain.PaginationParams) ([]domain.Tag, int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags t
		 JOIN tag_fields f ON f.classification = t.classification
		 WHERE f.kind = $1 AND f.field = $2`, kind, field).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, selectAllowedTags+` LIMIT $3 OFFSET $4`, kind, field, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	tags, err := scanTags(rows)
	if err != nil {
		return nil, 0, err
	}
	return tags, total, nil
}

func scanTags(rows *sql.Rows) ([]domain.Tag, error) {
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Classification, &tag.Code, &tag.Label, &tag.Description, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) CreateTag(ctx context.Context, kind, field string, tag *domain.Tag) error {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO tags (classification, code, label, description, created_at, updated_at)
		 SELECT f.classification, $3, $4, $5, $6, $7 FROM tag_fields f WHERE f.kind = $1 AND f.field = $2
		 RETURNING id, classification`,
		kind, field, tag.Code, tag.Label, tag.Description, tag.CreatedAt, tag.UpdatedAt,
	).Scan(&tag.ID, &tag.Classification)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if isPQCode(err, pqUniqueViolation) {
			return fmt.Errorf("tag %q or label %q already exists: %w", tag.Code, tag.Label, domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *tagRepository) UpdateTagLabel(ctx context.Context, kind, field, code, label string) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE tags t SET label = $4, updated_at = NOW()
		 FROM tag_fields f
		 WHERE f.classification = t.classification AND f.kind = $1 AND f.field = $2 AND t.code = $3`,
		kind, field, code, label)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return fmt.Errorf("tag label already exists: %s: %w", label, domain.ErrConflict)
		}
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *tagRepository) DeleteTag(ctx context.Context, kind, field, code string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockAllowList(ctx, tx, kind, field, true); err != nil {
		return fmt.Errorf("lock allow-list: %w", err)
	}
	var inUse bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM object_tags o
			JOIN tag_fields f ON f.kind = o.kind AND f.field = o.field
			JOIN tag_fields src ON src.classification = f.classification
			WHERE src.kind = $1 AND src.field = $2 AND o.tag_code = $3)`,
		kind, field, code).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("tag %q is in use: %w", code, domain.ErrConflict)
	}
	result, err := tx.ExecContext(ctx,
		`DELETE FROM tags t USING tag_fields f
		 WHERE f.classification = t.classification AND f.kind = $1 AND f.field = $2 AND t.code = $3`,
		kind, field, code)
	if err != nil {
		if isPQCode(err, pqForeignKeyViolation) {
			return fmt.Errorf("tag %q is in use: %w", code, domain.ErrConflict)
		}
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == code
}
