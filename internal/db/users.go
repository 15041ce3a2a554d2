package db

import (
	"context"

	"github.com/quickdesk/backend/internal/models"
)

const userColumns = `id, name, email, username, password_hash, role, status, department, avatar_path, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.Status, &u.Department, &u.AvatarPath, &u.CreatedAt)
	return u, translate(err)
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, username, password_hash, role, status, department, avatar_path)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+userColumns, u.Name, u.Email, u.Username, u.PasswordHash, u.Role, u.Status, u.Department, u.AvatarPath)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// EmailOrUsernameTaken reports whether another user (excluding excludeID,
// pass 0 on create) already holds the given email or username.
func (s *Store) EmailOrUsernameTaken(ctx context.Context, email, username string, excludeID int64) (bool, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE (email = $1 OR ($2 <> '' AND username = $2)) AND id <> $3
	`, email, username, excludeID).Scan(&count)
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *Store) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, username = $3, role = $4, status = $5, department = $6, avatar_path = $7
		WHERE id = $8
		RETURNING `+userColumns, u.Name, u.Email, u.Username, u.Role, u.Status, u.Department, u.AvatarPath, u.ID)
	return scanUser(row)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the row and returns the avatar path (if any) so the
// caller can remove the file. Fails with ErrConflict while the user still
// owns tickets (created_by is ON DELETE RESTRICT).
func (s *Store) DeleteUser(ctx context.Context, id int64) (*string, error) {
	var avatar *string
	err := s.Pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING avatar_path`, id).Scan(&avatar)
	if err != nil {
		return nil, translate(err)
	}
	return avatar, nil
}

// ToggleUserStatus flips active<->inactive and returns the new value.
func (s *Store) ToggleUserStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := s.Pool.QueryRow(ctx, `
		UPDATE users
		SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END
		WHERE id = $1
		RETURNING status
	`, id).Scan(&status)
	if err != nil {
		return "", translate(err)
	}
	return status, nil
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		args = append(args, role)
		query += ` WHERE role = $1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListAgents returns agent accounts with their open-ticket workload. The
// workload join is on tickets.assigned_to, the canonical assignment column.
func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.username, u.password_hash, u.role, u.status, u.department, u.avatar_path, u.created_at,
			COUNT(t.id) FILTER (WHERE t.status <> 'closed') AS open_tickets
		FROM users u
		LEFT JOIN tickets t ON t.assigned_to = u.id
		WHERE u.role = 'agent'
		GROUP BY u.id
		ORDER BY u.name ASC, u.id ASC
	`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Username, &a.PasswordHash, &a.Role, &a.Status, &a.Department, &a.AvatarPath, &a.CreatedAt, &a.OpenTickets); err != nil {
			return nil, translate(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, id int64) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND role = 'agent'`, id)
	return scanUser(row)
}
