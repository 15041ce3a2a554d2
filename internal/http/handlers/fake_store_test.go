package handlers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/quickdesk/backend/internal/db"
	"github.com/quickdesk/backend/internal/models"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	users    map[int64]models.User
	tickets  map[int64]models.Ticket
	comments map[int64]models.Comment
	refresh  map[string]int64
	resets   map[string]passwordReset
	nextID   int64

	countUnreadCalled bool
	pingErr           error
}

type passwordReset struct {
	userID    int64
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[int64]models.User{},
		tickets:  map[int64]models.Ticket{},
		comments: map[int64]models.Comment{},
		refresh:  map[string]int64{},
		resets:   map[string]passwordReset{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) CreateUser(_ context.Context, u models.User) (models.User, error) {
	u.ID = f.id()
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, db.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) EmailOrUsernameTaken(_ context.Context, email, username string, excludeID int64) (bool, error) {
	for _, u := range f.users {
		if u.ID == excludeID {
			continue
		}
		if u.Email == email || (username != "" && u.Username == username) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u models.User) (models.User, error) {
	if _, ok := f.users[u.ID]; !ok {
		return models.User{}, db.ErrNotFound
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) (*string, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	for _, t := range f.tickets {
		if t.CreatedBy == id {
			return nil, db.ErrConflict
		}
	}
	delete(f.users, id)
	return u.AvatarPath, nil
}

func (f *fakeStore) ToggleUserStatus(_ context.Context, id int64) (string, error) {
	u, ok := f.users[id]
	if !ok {
		return "", db.ErrNotFound
	}
	if u.Status == models.StatusActive {
		u.Status = models.StatusInactive
	} else {
		u.Status = models.StatusActive
	}
	f.users[id] = u
	return u.Status, nil
}

func (f *fakeStore) ListUsers(_ context.Context, role string) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	var out []models.Agent
	for _, u := range f.users {
		if u.Role != models.RoleAgent {
			continue
		}
		open := 0
		for _, t := range f.tickets {
			if t.AssignedTo != nil && *t.AssignedTo == u.ID && t.Status != models.TicketClosed {
				open++
			}
		}
		out = append(out, models.Agent{User: u, OpenTickets: open})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetAgent(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok || u.Role != models.RoleAgent {
		return models.User{}, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateTicket(_ context.Context, t models.Ticket) (models.Ticket, error) {
	t.ID = f.id()
	t.Status = models.TicketOpen
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tickets[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetTicket(_ context.Context, id int64) (models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return models.Ticket{}, db.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListTickets(_ context.Context, filter db.TicketFilter) ([]models.Ticket, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	var all []models.Ticket
	for _, t := range f.tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(t.Subject), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(t.Description), strings.ToLower(filter.Search)) {
			continue
		}
		switch filter.CallerRole {
		case models.RoleUser:
			if t.CreatedBy != filter.CallerID {
				continue
			}
		case models.RoleAgent:
			assigned := t.AssignedTo != nil && *t.AssignedTo == filter.CallerID
			inDept := t.AssignedTo == nil && t.Department == filter.Department
			if !assigned && !inDept {
				continue
			}
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStore) AssignTicket(_ context.Context, ticketID, agentID int64) (models.Ticket, string, error) {
	agent, ok := f.users[agentID]
	if !ok || agent.Role != models.RoleAgent || agent.Status != models.StatusActive {
		return models.Ticket{}, "", db.ErrNotFound
	}
	t, ok := f.tickets[ticketID]
	if !ok {
		return models.Ticket{}, "", db.ErrNotFound
	}
	t.AssignedTo = &agentID
	if t.Status == models.TicketOpen {
		t.Status = models.TicketInProgress
	}
	t.UpdatedAt = time.Now()
	f.tickets[ticketID] = t
	name := agent.Name
	t.AssignedToName = &name
	return t, name, nil
}

func (f *fakeStore) UpdateTicketStatus(_ context.Context, ticketID int64, status string) (models.Ticket, error) {
	t, ok := f.tickets[ticketID]
	if !ok {
		return models.Ticket{}, db.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	f.tickets[ticketID] = t
	return t, nil
}

func (f *fakeStore) EscalateTicket(_ context.Context, ticketID int64) (models.Ticket, error) {
	t, ok := f.tickets[ticketID]
	if !ok {
		return models.Ticket{}, db.ErrNotFound
	}
	t.NeedsEscalation = true
	t.UpdatedAt = time.Now()
	f.tickets[ticketID] = t
	return t, nil
}

func (f *fakeStore) TicketStats(_ context.Context) (models.TicketStats, error) {
	var st models.TicketStats
	for _, t := range f.tickets {
		st.Total++
		switch t.Status {
		case models.TicketOpen:
			st.Open++
		case models.TicketInProgress:
			st.InProgress++
		case models.TicketClosed:
			st.Closed++
		}
		if t.NeedsEscalation {
			st.Escalated++
		}
	}
	return st, nil
}

func (f *fakeStore) AddComment(_ context.Context, cm models.Comment) (models.Comment, error) {
	if _, ok := f.tickets[cm.TicketID]; !ok {
		return models.Comment{}, db.ErrNotFound
	}
	if cm.ParentID != nil {
		parent, ok := f.comments[*cm.ParentID]
		if !ok {
			return models.Comment{}, db.ErrNotFound
		}
		if parent.TicketID != cm.TicketID {
			return models.Comment{}, db.ErrInvalidParent
		}
	}
	cm.ID = f.id()
	cm.CreatedAt = time.Now()
	f.comments[cm.ID] = cm
	return cm, nil
}

func (f *fakeStore) ListComments(_ context.Context, ticketID int64) ([]models.Comment, error) {
	var out []models.Comment
	for _, cm := range f.comments {
		if cm.TicketID == ticketID {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) EditComment(_ context.Context, id int64, message string) (models.Comment, error) {
	cm, ok := f.comments[id]
	if !ok {
		return models.Comment{}, db.ErrNotFound
	}
	cm.Message = message
	now := time.Now()
	cm.EditedAt = &now
	f.comments[id] = cm
	return cm, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id int64) error {
	if _, ok := f.comments[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeStore) AssignedTicketIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for _, t := range f.tickets {
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) CountUnreadComments(_ context.Context, ticketIDs []int64, userID int64) (int, error) {
	f.countUnreadCalled = true
	count := 0
	for _, id := range ticketIDs {
		t := f.tickets[id]
		for _, cm := range f.comments {
			if cm.TicketID == id && cm.UserID != userID && cm.CreatedAt.After(t.UpdatedAt) {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeStore) SaveRefreshToken(_ context.Context, userID int64, token string) error {
	f.refresh[token] = userID
	return nil
}

func (f *fakeStore) RefreshTokenExists(_ context.Context, token string) (bool, error) {
	_, ok := f.refresh[token]
	return ok, nil
}

func (f *fakeStore) DeleteRefreshToken(_ context.Context, token string) error {
	delete(f.refresh, token)
	return nil
}

func (f *fakeStore) DeleteRefreshTokensForUser(_ context.Context, userID int64) error {
	for token, uid := range f.refresh {
		if uid == userID {
			delete(f.refresh, token)
		}
	}
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	f.resets[token] = passwordReset{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, token string) (int64, error) {
	r, ok := f.resets[token]
	if !ok || time.Now().After(r.expiresAt) {
		return 0, db.ErrNotFound
	}
	delete(f.resets, token)
	return r.userID, nil
}
