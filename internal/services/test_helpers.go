package services

import (
	"context"
	"log/slog"
	"sync"

	"cleanup/internal/account"
	"cleanup/internal/background"
	"cleanup/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id int64) (*models.User, error)
	GetByIDsFunc       func(ctx context.Context, ids []int64) ([]*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	GetByEmailsFunc    func(ctx context.Context, emails []string) ([]*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	GetByUsernamesFunc func(ctx context.Context, usernames []string) ([]*models.User, error)
	GetByTokenFunc     func(ctx context.Context, token int64) (*models.User, error)
	ListFunc           func(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListSubscribedFunc func(ctx context.Context, subscribed bool) ([]*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	CreateAllFunc      func(ctx context.Context, users []*models.User) error
	UpdateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateAllFunc      func(ctx context.Context, users []*models.User) error
	DeleteFunc         func(ctx context.Context, id int64) error
	DeleteByIDsFunc    func(ctx context.Context, ids []int64) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	if m.GetByEmailsFunc != nil {
		return m.GetByEmailsFunc(ctx, emails)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	if m.GetByUsernamesFunc != nil {
		return m.GetByUsernamesFunc(ctx, usernames)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) GetByToken(ctx context.Context, token int64) (*models.User, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error) {
	if m.ListSubscribedFunc != nil {
		return m.ListSubscribedFunc(ctx, subscribed)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) CreateAll(ctx context.Context, users []*models.User) error {
	if m.CreateAllFunc != nil {
		return m.CreateAllFunc(ctx, users)
	}
	return nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) UpdateAll(ctx context.Context, users []*models.User) error {
	if m.UpdateAllFunc != nil {
		return m.UpdateAllFunc(ctx, users)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if m.DeleteByIDsFunc != nil {
		return m.DeleteByIDsFunc(ctx, ids)
	}
	return nil
}

// RecordingNotifier implements Notifier and records every call by name.
type RecordingNotifier struct {
	mu    sync.Mutex
	Calls []string
}

func (n *RecordingNotifier) record(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls = append(n.Calls, name)
}

// Count returns how many times the named notification fired.
func (n *RecordingNotifier) Count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.Calls {
		if c == name {
			count++
		}
	}
	return count
}

func (n *RecordingNotifier) SendWelcome(ctx context.Context, user *models.User) {
	n.record("welcome")
}

func (n *RecordingNotifier) SendAccountVerification(ctx context.Context, user *models.User, token int64) {
	n.record("verification")
}

func (n *RecordingNotifier) ResendAccountVerification(ctx context.Context, user *models.User, token int64) {
	n.record("verification_resend")
}

func (n *RecordingNotifier) SendPasswordChangeToken(ctx context.Context, user *models.User, token int64) {
	n.record("pw_token")
}

func (n *RecordingNotifier) ResendPasswordChangeToken(ctx context.Context, user *models.User, token int64) {
	n.record("pw_token_resend")
}

func (n *RecordingNotifier) SendPasswordChangeConfirmation(ctx context.Context, user *models.User) {
	n.record("pw_confirmation")
}

func (n *RecordingNotifier) SendWarnAccountLock(ctx context.Context, user *models.User) {
	n.record("warn_lock")
}

func (n *RecordingNotifier) SendAccountLocked(ctx context.Context, user *models.User) {
	n.record("locked")
}

// MockTemplateRepository implements TemplateRepository for testing
type MockTemplateRepository struct {
	GetByNameFunc func(ctx context.Context, name string) (*models.MailTemplate, error)
}

func (m *MockTemplateRepository) GetByName(ctx context.Context, name string) (*models.MailTemplate, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, models.ErrNotFound
}

// MockEnqueuer implements MailEnqueuer and captures enqueued messages.
type MockEnqueuer struct {
	mu       sync.Mutex
	Messages []background.OutboundEmail
}

func (m *MockEnqueuer) Enqueue(msg background.OutboundEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testGuard() *account.Guard {
	guard, err := account.NewGuard(
		`^[^@\s]+@[^@\s]+\.[^@\s]+$`,
		`^[A-Za-z0-9][A-Za-z0-9._@+-]{2,253}$`,
	)
	if err != nil {
		panic(err)
	}
	return guard
}
