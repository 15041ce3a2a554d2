package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/quickdesk/backend/internal/models"
)

// TicketFilter narrows ListTickets. Status uses the stored vocabulary
// (open/in_progress/closed); translation from the display vocabulary
// happens in the handler layer.
type TicketFilter struct {
	Status string
	Search string
	Page   int
	Limit  int

	// Role scoping. CallerID/Department are consulted per CallerRole:
	// users see their own tickets, agents see assigned plus unassigned
	// tickets in their department, admins see everything.
	CallerID   int64
	CallerRole string
	Department string
}

const ticketColumns = `t.id, t.subject, t.description, t.status, t.priority, t.created_by, t.assigned_to,
	t.department, t.needs_escalation, t.attachment_url, t.created_at, t.updated_at`

func scanTicket(row interface{ Scan(...any) error }, withAssignee bool) (models.Ticket, error) {
	var t models.Ticket
	dest := []any{&t.ID, &t.Subject, &t.Description, &t.Status, &t.Priority, &t.CreatedBy, &t.AssignedTo,
		&t.Department, &t.NeedsEscalation, &t.AttachmentURL, &t.CreatedAt, &t.UpdatedAt}
	if withAssignee {
		dest = append(dest, &t.AssignedToName)
	}
	err := row.Scan(dest...)
	return t, translate(err)
}

func (s *Store) CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO tickets AS t (subject, description, status, priority, created_by, department, attachment_url)
		VALUES ($1,$2,'open',$3,$4,$5,$6)
		RETURNING `+ticketColumns, t.Subject, t.Description, t.Priority, t.CreatedBy, t.Department, t.AttachmentURL)
	return scanTicket(row, false)
}

func (s *Store) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`, a.name
		FROM tickets t
		LEFT JOIN users a ON a.id = t.assigned_to
		WHERE t.id = $1
	`, id)
	return scanTicket(row, true)
}

func (s *Store) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		wheres = append(wheres, fmt.Sprintf("(t.subject ILIKE $%d OR t.description ILIKE $%d)", len(args), len(args)))
	}
	switch f.CallerRole {
	case models.RoleUser:
		args = append(args, f.CallerID)
		wheres = append(wheres, fmt.Sprintf("t.created_by = $%d", len(args)))
	case models.RoleAgent:
		args = append(args, f.CallerID)
		agentCond := fmt.Sprintf("t.assigned_to = $%d", len(args))
		args = append(args, f.Department)
		wheres = append(wheres, fmt.Sprintf("(%s OR (t.assigned_to IS NULL AND t.department = $%d))", agentCond, len(args)))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t`+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	query := `
		SELECT ` + ticketColumns + `, a.name
		FROM tickets t
		LEFT JOIN users a ON a.id = t.assigned_to` + where +
		fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows, true)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// AssignTicket sets assigned_to inside one transaction: the agent lookup
// and the update either both happen or neither does. The target must be an
// active user with role agent, otherwise ErrNotFound.
func (s *Store) AssignTicket(ctx context.Context, ticketID, agentID int64) (models.Ticket, string, error) {
	var ticket models.Ticket
	var agentName string
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT name FROM users WHERE id = $1 AND role = 'agent' AND status = 'active'
		`, agentID).Scan(&agentName)
		if err != nil {
			return translate(err)
		}
		row := tx.QueryRow(ctx, `
			UPDATE tickets t
			SET assigned_to = $1, status = CASE WHEN status = 'open' THEN 'in_progress' ELSE status END, updated_at = NOW()
			WHERE t.id = $2
			RETURNING `+ticketColumns, agentID, ticketID)
		ticket, err = scanTicket(row, false)
		return err
	})
	if err != nil {
		return models.Ticket{}, "", translate(err)
	}
	ticket.AssignedToName = &agentName
	return ticket, agentName, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, ticketID int64, status string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE tickets t
		SET status = $1, updated_at = NOW()
		WHERE t.id = $2
		RETURNING `+ticketColumns, status, ticketID)
	return scanTicket(row, false)
}

func (s *Store) EscalateTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE tickets t
		SET needs_escalation = TRUE, updated_at = NOW()
		WHERE t.id = $1
		RETURNING `+ticketColumns, ticketID)
	return scanTicket(row, false)
}

func (s *Store) TicketStats(ctx context.Context) (models.TicketStats, error) {
	var st models.TicketStats
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'closed'),
			COUNT(*) FILTER (WHERE needs_escalation)
		FROM tickets
	`).Scan(&st.Total, &st.Open, &st.InProgress, &st.Closed, &st.Escalated)
	return st, translate(err)
}
