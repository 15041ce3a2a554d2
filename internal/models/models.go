package models

import "time"

const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketClosed     = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Department   string    `json:"department"`
	AvatarPath   *string   `json:"avatar_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Ticket struct {
	ID              int64     `json:"id"`
	Subject         string    `json:"subject"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	CreatedBy       int64     `json:"created_by"`
	AssignedTo      *int64    `json:"assigned_to"`
	AssignedToName  *string   `json:"assigned_to_name,omitempty"`
	Department      string    `json:"department"`
	NeedsEscalation bool      `json:"needs_escalation"`
	AttachmentURL   *string   `json:"attachment_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Comment struct {
	ID         int64      `json:"id"`
	TicketID   int64      `json:"ticket_id"`
	UserID     int64      `json:"user_id"`
	AuthorName string     `json:"author_name,omitempty"`
	Message    string     `json:"message"`
	ParentID   *int64     `json:"parent_id,omitempty"`
	Attachment *string    `json:"attachment,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
}

// Agent is a user row joined with its open-ticket workload.
type Agent struct {
	User
	OpenTickets int `json:"open_tickets"`
}

type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Closed     int `json:"closed"`
	Escalated  int `json:"escalated"`
}

func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAgent || r == RoleAdmin
}

func ValidTicketStatus(s string) bool {
	return s == TicketOpen || s == TicketInProgress || s == TicketClosed
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
