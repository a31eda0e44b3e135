package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/store"
)

// TicketMutator encapsulates the persistence side of single-ticket
// mutations. Each method is one durable write; the in-memory projection
// has already been patched optimistically by the time these run.
type TicketMutator interface {
	SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error
	SetPriority(ctx context.Context, ticketID string, priority *domain.TicketPriority) error
	SetAssignee(ctx context.Context, ticketID string, assigneeID *string) error
	AssignTag(ctx context.Context, ticketID, tagID string) error
	RemoveTag(ctx context.Context, ticketID, tagID string) error
	MarkResponsesRead(ctx context.Context, ticketID string) error
	CreateResponse(ctx context.Context, response *domain.Response) error
}

// TicketRepository is the full ticket persistence surface: the mutation
// methods plus the paged fetch the in-memory store is hydrated from.
type TicketRepository interface {
	TicketMutator
	store.TicketFetcher
	GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetPriority(ctx context.Context, ticketID string, priority *domain.TicketPriority) error {
	const query = `UPDATE tickets SET priority=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, priority, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetAssignee(ctx context.Context, ticketID string, assigneeID *string) error {
	const query = `UPDATE tickets SET assignee_id=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) AssignTag(ctx context.Context, ticketID, tagID string) error {
	const query = `
        INSERT INTO ticket_tag_assignments (ticket_id, tag_id)
        VALUES ($1,$2)
        ON CONFLICT (ticket_id, tag_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, ticketID, tagID)
	return err
}

func (r *ticketRepository) RemoveTag(ctx context.Context, ticketID, tagID string) error {
	const query = `DELETE FROM ticket_tag_assignments WHERE ticket_id=$1 AND tag_id=$2`
	_, err := r.pool.Exec(ctx, query, ticketID, tagID)
	return err
}

func (r *ticketRepository) MarkResponsesRead(ctx context.Context, ticketID string) error {
	const query = `
        UPDATE ticket_responses SET is_read=TRUE, read_at=NOW()
        WHERE ticket_id=$1 AND is_admin=FALSE AND is_read=FALSE`
	_, err := r.pool.Exec(ctx, query, ticketID)
	return err
}

func (r *ticketRepository) CreateResponse(ctx context.Context, response *domain.Response) error {
	const query = `
        INSERT INTO ticket_responses (id, ticket_id, is_admin, author_id, body, is_read, read_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		response.ID,
		response.TicketID,
		response.IsAdmin,
		response.AuthorID,
		response.Body,
		response.IsRead,
		response.ReadAt,
	).Scan(&response.CreatedAt)
}

func (r *ticketRepository) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, org_id, subject, message, requester_name, requester_email, status, priority, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.OrgID,
		ticket.Subject,
		ticket.Message,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
	).Scan(&ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, org_id, subject, message, requester_name, requester_email,
               status, priority, assignee_id, created_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&ticket.ID,
		&ticket.OrgID,
		&ticket.Subject,
		&ticket.Message,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := r.attachChildren(ctx, []*domain.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FetchTickets returns one keyset page ordered newest-first on
// (created_at, id). The cursor names the last row of the previous page;
// an empty cursor starts from the top.
func (r *ticketRepository) FetchTickets(ctx context.Context, orgID, cursor string, pageSize int) (store.TicketPage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	base := `SELECT id, org_id, subject, message, requester_name, requester_email,
                    status, priority, assignee_id, created_at
             FROM tickets`
	clauses := []string{"org_id=$1"}
	args := []any{orgID}

	if cursor != "" {
		cursorAt, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return store.TicketPage{}, err
		}
		args = append(args, cursorAt)
		atPlaceholder := fmt.Sprintf("$%d", len(args))
		args = append(args, cursorID)
		idPlaceholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(created_at, id) < (%s, %s)", atPlaceholder, idPlaceholder))
	}

	// Fetch one extra row to learn whether another page exists.
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d`,
		base, strings.Join(clauses, " AND "), pageSize+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return store.TicketPage{}, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OrgID,
			&ticket.Subject,
			&ticket.Message,
			&ticket.RequesterName,
			&ticket.RequesterEmail,
			&ticket.Status,
			&ticket.Priority,
			&ticket.AssigneeID,
			&ticket.CreatedAt,
		); err != nil {
			return store.TicketPage{}, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return store.TicketPage{}, err
	}

	hasMore := len(tickets) > pageSize
	if hasMore {
		tickets = tickets[:pageSize]
	}

	refs := make([]*domain.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
	}
	if err := r.attachChildren(ctx, refs); err != nil {
		return store.TicketPage{}, err
	}

	page := store.TicketPage{Tickets: tickets, HasMore: hasMore}
	if hasMore && len(tickets) > 0 {
		last := tickets[len(tickets)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// attachChildren hydrates responses, attachments, and tags for the batch
// in three queries rather than per ticket.
func (r *ticketRepository) attachChildren(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	byID := make(map[string]*domain.Ticket, len(tickets))
	for i, ticket := range tickets {
		ids[i] = ticket.ID
		byID[ticket.ID] = ticket
	}

	responses, err := r.listResponses(ctx, ids)
	if err != nil {
		return err
	}
	for _, resp := range responses {
		if ticket, ok := byID[resp.TicketID]; ok {
			ticket.Responses = append(ticket.Responses, resp)
		}
	}

	const tagQuery = `
        SELECT a.ticket_id, t.id, t.name, t.color, t.icon, t.created_at
        FROM ticket_tag_assignments a
        JOIN ticket_tags t ON t.id = a.tag_id
        WHERE a.ticket_id = ANY($1)
        ORDER BY t.name`
	rows, err := r.pool.Query(ctx, tagQuery, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID string
		var tag domain.Tag
		if err := rows.Scan(&ticketID, &tag.ID, &tag.Name, &tag.Color, &tag.Icon, &tag.CreatedAt); err != nil {
			return err
		}
		if ticket, ok := byID[ticketID]; ok {
			ticket.Tags = append(ticket.Tags, tag)
		}
	}
	return rows.Err()
}

func (r *ticketRepository) listResponses(ctx context.Context, ticketIDs []string) ([]domain.Response, error) {
	const query = `
        SELECT id, ticket_id, is_admin, author_id, body, is_read, read_at, created_at
        FROM ticket_responses
        WHERE ticket_id = ANY($1)
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []domain.Response
	responseIdx := make(map[string]int)
	for rows.Next() {
		var resp domain.Response
		if err := rows.Scan(
			&resp.ID,
			&resp.TicketID,
			&resp.IsAdmin,
			&resp.AuthorID,
			&resp.Body,
			&resp.IsRead,
			&resp.ReadAt,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		responseIdx[resp.ID] = len(responses)
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return responses, nil
	}

	respIDs := make([]string, 0, len(responses))
	for id := range responseIdx {
		respIDs = append(respIDs, id)
	}
	const attQuery = `
        SELECT id, response_id, storage_key, file_name, mime_type, size_bytes, created_at
        FROM ticket_attachments
        WHERE response_id = ANY($1)
        ORDER BY created_at`
	attRows, err := r.pool.Query(ctx, attQuery, respIDs)
	if err != nil {
		return nil, err
	}
	defer attRows.Close()
	for attRows.Next() {
		var att domain.AttachmentReference
		if err := attRows.Scan(
			&att.ID,
			&att.ResponseID,
			&att.StorageKey,
			&att.FileName,
			&att.MimeType,
			&att.SizeBytes,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		if idx, ok := responseIdx[att.ResponseID]; ok {
			responses[idx].Attachments = append(responses[idx].Attachments, att)
		}
	}
	return responses, attRows.Err()
}

func encodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor: %w", err)
	}
	return createdAt, parts[1], nil
}
