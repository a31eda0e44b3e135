package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TagRepository manages the tag catalog.
type TagRepository interface {
	ListTags(ctx context.Context) ([]domain.Tag, error)
	GetTag(ctx context.Context, tagID string) (*domain.Tag, error)
	CreateTag(ctx context.Context, tag *domain.Tag) error
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, tagID string) error
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository instantiates repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

func (r *tagRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	const query = `SELECT id, name, color, icon, created_at FROM ticket_tags ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Icon, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *tagRepository) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	const query = `SELECT id, name, color, icon, created_at FROM ticket_tags WHERE id=$1`
	var tag domain.Tag
	if err := r.pool.QueryRow(ctx, query, tagID).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Icon, &tag.CreatedAt); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) CreateTag(ctx context.Context, tag *domain.Tag) error {
	const query = `
        INSERT INTO ticket_tags (id, name, color, icon)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query, tag.ID, tag.Name, tag.Color, tag.Icon).Scan(&tag.CreatedAt)
}

func (r *tagRepository) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	const query = `UPDATE ticket_tags SET name=$1, color=$2, icon=$3 WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, tag.Name, tag.Color, tag.Icon, tag.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tagRepository) DeleteTag(ctx context.Context, tagID string) error {
	const query = `DELETE FROM ticket_tags WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, tagID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
