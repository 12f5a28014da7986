package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/dbx"
	"github.com/dkurganov/taskflow/internal/server/auth"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/messages"
	"github.com/dkurganov/taskflow/internal/server/repositories/notifications"
	"github.com/dkurganov/taskflow/internal/server/repositories/refreshtokens"
	"github.com/dkurganov/taskflow/internal/server/repositories/tasks"
	"github.com/dkurganov/taskflow/internal/server/repositories/users"
)

// In-memory repository fakes. The fakes ignore the DBTX handed to them, so
// transactional paths run against a real (sqlite) *sql.DB while state lives
// in these maps.

type fakeUserRepo struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.byID[u.ID] = &u
	cp := u
	return &cp, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, id, username string) error {
	return r.mutate(id, func(u *models.User) { u.Username = username })
}

func (r *fakeUserRepo) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	return r.mutate(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r *fakeUserRepo) SetGoogleID(ctx context.Context, id, googleID string) error {
	return r.mutate(id, func(u *models.User) { u.GoogleID = googleID })
}

func (r *fakeUserRepo) SetNotificationEnabled(ctx context.Context, id string, enabled bool) error {
	return r.mutate(id, func(u *models.User) { u.NotificationEnabled = enabled })
}

func (r *fakeUserRepo) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	var n int
	err := r.mutate(id, func(u *models.User) {
		u.FailedLogins++
		n = u.FailedLogins
	})
	return n, err
}

func (r *fakeUserRepo) ResetFailedLogins(ctx context.Context, id string) error {
	return r.mutate(id, func(u *models.User) {
		u.FailedLogins = 0
		u.LockedUntil = nil
	})
}

func (r *fakeUserRepo) LockUntil(ctx context.Context, id string, until time.Time) error {
	return r.mutate(id, func(u *models.User) { u.LockedUntil = &until })
}

func (r *fakeUserRepo) Stats(ctx context.Context, id string) (*models.UserStats, error) {
	return &models.UserStats{}, nil
}

func (r *fakeUserRepo) mutate(id string, f func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	f(u)
	u.UpdatedAt = time.Now()
	return nil
}

type fakeTokenRepo struct {
	mu   sync.Mutex
	byID map[string]*models.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byID: map[string]*models.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.byID[cp.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeTokenRepo) FindByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTokenRepo) MarkRotated(ctx context.Context, id, replacedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.ReplacedBy = &replacedBy
	return true, nil
}

func (r *fakeTokenRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		t.Revoked = true
	}
	return nil
}

func (r *fakeTokenRepo) RevokeChain(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		t, ok := r.byID[cur]
		if !ok {
			continue
		}
		t.Revoked = true
		if t.PredecessorID != nil {
			queue = append(queue, *t.PredecessorID)
		}
		if t.ReplacedBy != nil {
			queue = append(queue, *t.ReplacedBy)
		}
	}
	return nil
}

func (r *fakeTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (r *fakeTokenRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.byID {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

type fakeTaskRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{byID: map[string]*models.Task{}}
}

func (r *fakeTaskRepo) List(ctx context.Context, userID string, filters models.TaskFilters) ([]*models.Task, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Task
	for _, t := range r.byID {
		if t.UserID != userID {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.Priority != "" && t.Priority != filters.Priority {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, userID, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[task.ID]
	if !ok || cur.UserID != task.UserID {
		return common.ErrorNotFound
	}
	cp := *task
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	r.byID[cp.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) UpdateStatus(ctx context.Context, userID, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.UserID != userID {
		return common.ErrorNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeTaskRepo) DueForReminder(ctx context.Context, now time.Time) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Task
	for _, t := range r.byID {
		if t.ReminderTime != nil && !t.Notified && !t.ReminderTime.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) MarkNotified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		t.Notified = true
	}
	return nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{byID: map[string]*models.Notification{}}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	cp.CreatedAt = time.Now()
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.byID {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return common.ErrorNotFound
	}
	n.Read = true
	return nil
}

func (r *fakeNotificationRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byID: map[string]*models.Message{}}
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	cp.CreatedAt = time.Now()
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeMessageRepo) Conversation(ctx context.Context, userID, peerID string, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.byID {
		between := (m.SenderID == userID && m.RecipientID == peerID) ||
			(m.SenderID == peerID && m.RecipientID == userID)
		if between {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Conversations(ctx context.Context, userID string) ([]*models.ConversationUser, error) {
	return nil, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.RecipientID != recipientID {
		return common.ErrorNotFound
	}
	m.Read = true
	return nil
}

type fakeRepoManager struct {
	users         *fakeUserRepo
	tokens        *fakeTokenRepo
	tasks         *fakeTaskRepo
	notifications *fakeNotificationRepo
	messages      *fakeMessageRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:         newFakeUserRepo(),
		tokens:        newFakeTokenRepo(),
		tasks:         newFakeTaskRepo(),
		notifications: newFakeNotificationRepo(),
		messages:      newFakeMessageRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                  { return m.users }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository  { return m.tokens }
func (m *fakeRepoManager) Tasks(db dbx.DBTX) tasks.Repository                  { return m.tasks }
func (m *fakeRepoManager) Notifications(db dbx.DBTX) notifications.Repository  { return m.notifications }
func (m *fakeRepoManager) Messages(db dbx.DBTX) messages.Repository            { return m.messages }

type fakeExchanger struct {
	identity *auth.ProviderIdentity
	err      error
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*auth.ProviderIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}
