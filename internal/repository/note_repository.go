package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// NoteRepository encapsulates internal-note persistence. The cross-ticket
// aggregates (pinned set, per-ticket counts) are served as fresh queries
// so the read side can recompute rather than cache.
type NoteRepository interface {
	CreateNote(ctx context.Context, note *domain.InternalNote) error
	UpdateNoteText(ctx context.Context, noteID, text string) error
	SetPinned(ctx context.Context, noteID string, pinned bool) error
	DeleteNote(ctx context.Context, noteID string) error
	GetByID(ctx context.Context, noteID string) (*domain.InternalNote, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.InternalNote, error)
	ListPinnedTicketIDs(ctx context.Context, orgID string) ([]string, error)
	ListNoteCounts(ctx context.Context, orgID string) (map[string]int, error)
}

type noteRepository struct {
	pool *pgxpool.Pool
}

// NewNoteRepository instantiates repository.
func NewNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &noteRepository{pool: pool}
}

func (r *noteRepository) CreateNote(ctx context.Context, note *domain.InternalNote) error {
	const query = `
        INSERT INTO ticket_notes (id, ticket_id, author_id, text, pinned)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		note.ID,
		note.TicketID,
		note.AuthorID,
		note.Text,
		note.Pinned,
	).Scan(&note.CreatedAt, &note.UpdatedAt)
}

func (r *noteRepository) UpdateNoteText(ctx context.Context, noteID, text string) error {
	const query = `UPDATE ticket_notes SET text=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, text, noteID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *noteRepository) SetPinned(ctx context.Context, noteID string, pinned bool) error {
	const query = `UPDATE ticket_notes SET pinned=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, pinned, noteID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *noteRepository) DeleteNote(ctx context.Context, noteID string) error {
	const query = `DELETE FROM ticket_notes WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, noteID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *noteRepository) GetByID(ctx context.Context, noteID string) (*domain.InternalNote, error) {
	const query = `
        SELECT id, ticket_id, author_id, text, pinned, created_at, updated_at
        FROM ticket_notes WHERE id=$1`
	var note domain.InternalNote
	if err := r.pool.QueryRow(ctx, query, noteID).Scan(
		&note.ID,
		&note.TicketID,
		&note.AuthorID,
		&note.Text,
		&note.Pinned,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.InternalNote, error) {
	const query = `
        SELECT id, ticket_id, author_id, text, pinned, created_at, updated_at
        FROM ticket_notes WHERE ticket_id=$1
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.InternalNote
	for rows.Next() {
		var note domain.InternalNote
		if err := rows.Scan(
			&note.ID,
			&note.TicketID,
			&note.AuthorID,
			&note.Text,
			&note.Pinned,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (r *noteRepository) ListPinnedTicketIDs(ctx context.Context, orgID string) ([]string, error) {
	const query = `
        SELECT DISTINCT n.ticket_id
        FROM ticket_notes n
        JOIN tickets t ON t.id = n.ticket_id
        WHERE n.pinned=TRUE AND t.org_id=$1`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *noteRepository) ListNoteCounts(ctx context.Context, orgID string) (map[string]int, error) {
	const query = `
        SELECT n.ticket_id, COUNT(*)
        FROM ticket_notes n
        JOIN tickets t ON t.id = n.ticket_id
        WHERE t.org_id=$1
        GROUP BY n.ticket_id`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ticketID string
		var count int
		if err := rows.Scan(&ticketID, &count); err != nil {
			return nil, err
		}
		counts[ticketID] = count
	}
	return counts, rows.Err()
}
