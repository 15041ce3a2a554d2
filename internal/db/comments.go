package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/quickdesk/backend/internal/models"
)

const commentColumns = `c.id, c.ticket_id, c.user_id, c.message, c.parent_id, c.attachment, c.created_at, c.edited_at`

func scanComment(row interface{ Scan(...any) error }, withAuthor bool) (models.Comment, error) {
	var cm models.Comment
	dest := []any{&cm.ID, &cm.TicketID, &cm.UserID, &cm.Message, &cm.ParentID, &cm.Attachment, &cm.CreatedAt, &cm.EditedAt}
	if withAuthor {
		dest = append(dest, &cm.AuthorName)
	}
	err := row.Scan(dest...)
	return cm, translate(err)
}

// AddComment inserts a comment after verifying the ticket exists and, when
// parent_id is set, that the parent is a comment on the same ticket.
func (s *Store) AddComment(ctx context.Context, cm models.Comment) (models.Comment, error) {
	var created models.Comment
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, cm.TicketID).Scan(&exists); err != nil {
			return translate(err)
		}
		if !exists {
			return ErrNotFound
		}
		if cm.ParentID != nil {
			var parentTicket int64
			if err := tx.QueryRow(ctx, `SELECT ticket_id FROM comments WHERE id = $1`, *cm.ParentID).Scan(&parentTicket); err != nil {
				return translate(err)
			}
			if parentTicket != cm.TicketID {
				return ErrInvalidParent
			}
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO comments AS c (ticket_id, user_id, message, parent_id, attachment)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING `+commentColumns, cm.TicketID, cm.UserID, cm.Message, cm.ParentID, cm.Attachment)
		var err error
		created, err = scanComment(row, false)
		return err
	})
	if err != nil {
		return models.Comment{}, err
	}
	return created, nil
}

func (s *Store) ListComments(ctx context.Context, ticketID int64) ([]models.Comment, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+commentColumns+`, u.name
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.ticket_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		cm, err := scanComment(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

func (s *Store) EditComment(ctx context.Context, id int64, message string) (models.Comment, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE comments c
		SET message = $1, edited_at = NOW()
		WHERE c.id = $2
		RETURNING `+commentColumns, message, id)
	return scanComment(row, false)
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedTicketIDs lists ids of tickets assigned to the user. The caller
// uses an empty result to skip the comment count entirely.
func (s *Store) AssignedTicketIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id FROM tickets WHERE assigned_to = $1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUnreadComments counts comments on the given tickets authored by
// someone other than userID and created after the owning ticket's
// updated_at.
func (s *Store) CountUnreadComments(ctx context.Context, ticketIDs []int64, userID int64) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM comments c
		JOIN tickets t ON t.id = c.ticket_id
		WHERE c.ticket_id = ANY($1) AND c.user_id <> $2 AND c.created_at > t.updated_at
	`, ticketIDs, userID).Scan(&count)
	return count, translate(err)
}
