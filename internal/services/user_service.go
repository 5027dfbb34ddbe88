package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cleanup/internal/account"
	"cleanup/internal/models"
	pkgauth "cleanup/pkg/auth"
	pkglogger "cleanup/pkg/logger"
)

// UserRepository defines the interface for account data access. Lookups by
// email, username and token exclude soft-deleted rows; lookup by id does not.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmails(ctx context.Context, emails []string) ([]*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error)
	GetByToken(ctx context.Context, token int64) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	CreateAll(ctx context.Context, users []*models.User) error
	Update(ctx context.Context, user *models.User) (*models.User, error)
	UpdateAll(ctx context.Context, users []*models.User) error
	Delete(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// RegisterInput carries the fields a new registration may supply. Username
// is optional and defaults to the email address.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	FirstName   string
	MiddleName  string
	LastName    string
	Gender      string
	DateOfBirth *time.Time
	Subscribed  bool
}

// UserService orchestrates the account lifecycle: registration, login,
// verification, password reset and moderation.
type UserService struct {
	repo     UserRepository
	guard    *account.Guard
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(repo UserRepository, guard *account.Guard, notifier Notifier, logger *slog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// Register creates a new unverified account, issues its verification token
// and triggers the welcome and verification notifications.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	if err := s.guard.ValidateIdentity(in.Email, in.Username); err != nil {
		return nil, err
	}
	if err := s.guard.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := s.checkDuplicates(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := buildAccount(in, hash)
	token, issuedAt := account.Issue()
	account.SetToken(user, token, issuedAt)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, &models.DuplicateError{Field: "email"}
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.notifier.SendWelcome(ctx, created)
	s.notifier.SendAccountVerification(ctx, created, token)

	s.logger.Info("user registered",
		slog.Int64("user_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)))
	return created, nil
}

// RegisterBulk is all-or-nothing: any email collision rejects the whole
// batch and nothing is persisted. It is an admin import path, so individual
// field validation is left to the single-registration flow.
func (s *UserService) RegisterBulk(ctx context.Context, ins []RegisterInput) error {
	if len(ins) == 0 {
		return nil
	}

	emails := make([]string, len(ins))
	for i := range ins {
		ins[i].Email = strings.ToLower(strings.TrimSpace(ins[i].Email))
		emails[i] = ins[i].Email
	}

	existing, err := s.repo.GetByEmails(ctx, emails)
	if err != nil {
		s.logger.Error("failed to check for duplicate emails", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if len(existing) > 0 {
		s.logger.Error("duplicate emails found, no users were saved",
			slog.Int("duplicates", len(existing)))
		return &models.DuplicateError{Field: "email"}
	}

	users := make([]*models.User, 0, len(ins))
	for _, in := range ins {
		hash, err := pkgauth.HashPassword(in.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return models.ErrInternalServer
		}
		user := buildAccount(in, hash)
		token, issuedAt := account.Issue()
		account.SetToken(user, token, issuedAt)
		users = append(users, user)
	}

	if err := s.repo.CreateAll(ctx, users); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return &models.DuplicateError{Field: "email"}
		}
		s.logger.Error("failed to save users", slog.Any("error", err))
		return models.ErrInternalServer
	}

	for _, user := range users {
		s.notifier.SendWelcome(ctx, user)
		if user.Status == models.StatusUnverified && user.Token != nil {
			s.notifier.SendAccountVerification(ctx, user, *user.Token)
		}
	}

	s.logger.Info("all users successfully saved", slog.Int("count", len(users)))
	return nil
}

// Login authenticates by email (identifier contains '@') or username. The
// lock check runs before the password check. A wrong password bumps the
// failure counter and persists it, yet reports (false, nil) rather than an
// error; warn and lock notifications fire at their exact thresholds.
func (s *UserService) Login(ctx context.Context, identifier, password string) (bool, error) {
	user, err := s.FindByLogin(ctx, identifier)
	if err != nil {
		return false, err
	}

	if user.Locked {
		return false, models.ErrAccountLocked
	}

	if pkgauth.ComparePassword(user.PasswordHash, password) != nil {
		switch account.RecordLoginFailure(user) {
		case account.LoginWarnLockout:
			s.notifier.SendWarnAccountLock(ctx, user)
		case account.LoginLocked:
			s.notifier.SendAccountLocked(ctx, user)
			s.logger.Warn("account locked after repeated failures",
				slog.Int64("user_id", user.ID))
		}
		if _, err := s.repo.Update(ctx, user); err != nil {
			s.logger.Error("failed to persist failed login counter",
				slog.Int64("user_id", user.ID),
				slog.Any("error", err))
		}
		return false, nil
	}

	account.RecordLoginSuccess(user, time.Now())
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to persist login timestamp",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
	}
	return true, nil
}

// FindByLogin resolves an identifier the way Login does: as an email when it
// contains '@', as a username otherwise.
func (s *UserService) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	} else {
		user, err = s.repo.GetByUsername(ctx, strings.TrimSpace(identifier))
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("user not found by login identifier")
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// RequestPasswordChange stores the pending hash and issues a reset token.
// A banned account may still request a reset; only login is gated on the
// ban flag, by the authorization layer.
func (s *UserService) RequestPasswordChange(ctx context.Context, email, newPassword1, newPassword2 string) error {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("password change requested for unknown email")
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.Status != models.StatusVerified {
		return &models.ValidationError{Reasons: []string{"account must be verified before changing the password"}}
	}
	if pkgauth.ComparePassword(user.PasswordHash, newPassword1) == nil {
		return &models.ValidationError{Reasons: []string{"new password cannot match the old one"}}
	}
	if newPassword1 != newPassword2 {
		return &models.ValidationError{Reasons: []string{"the two passwords did not match"}}
	}
	if err := s.guard.ValidatePassword(newPassword1); err != nil {
		return err
	}

	pending, err := pkgauth.HashPassword(newPassword1)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}
	user.PendingPasswordHash = &pending

	token, issuedAt := account.Issue()
	account.SetToken(user, token, issuedAt)

	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to store pending password",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.SendPasswordChangeToken(ctx, user, token)
	return nil
}

// ConfirmPasswordChange completes a reset. An expired token is self-healing:
// a fresh token is issued and mailed, and the call still fails with
// ErrTokenExpired so the user retries with the new link.
func (s *UserService) ConfirmPasswordChange(ctx context.Context, token int64) error {
	user, err := s.findByToken(ctx, token)
	if err != nil {
		return err
	}

	now := time.Now()
	if account.TokenExpired(user, now) {
		if err := s.reissueToken(ctx, user); err != nil {
			return err
		}
		s.notifier.ResendPasswordChangeToken(ctx, user, *user.Token)
		return models.ErrTokenExpired
	}

	s.notifier.SendPasswordChangeConfirmation(ctx, user)
	account.ApplyPasswordReset(user, now)
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to complete password change",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// Verify transitions an unverified account to verified and consumes the
// token. Expired tokens are reissued and resent, then reported as expired.
func (s *UserService) Verify(ctx context.Context, token int64) error {
	user, err := s.findByToken(ctx, token)
	if err != nil {
		return err
	}

	now := time.Now()
	if account.TokenExpired(user, now) {
		if err := s.reissueToken(ctx, user); err != nil {
			return err
		}
		s.notifier.ResendAccountVerification(ctx, user, *user.Token)
		return models.ErrTokenExpired
	}

	account.ApplyVerification(user, now)
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to verify account",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account verified", slog.Int64("user_id", user.ID))
	return nil
}

func (s *UserService) UpdateBannedByID(ctx context.Context, id int64, banned bool) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	account.SetBanned(user, banned)
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update banned flag",
			slog.Int64("user_id", id),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("banned flag updated", slog.Int64("user_id", id), slog.Bool("banned", banned))
	return nil
}

// UpdateBannedByIDs flips the banned flag on every account it can find.
// Missing ids are logged and skipped, never fatal, so bulk moderation stays
// resilient to partial misses. Returns the number of accounts updated.
func (s *UserService) UpdateBannedByIDs(ctx context.Context, ids []int64, banned bool) (int, error) {
	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to look up users", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	return s.applyBanned(ctx, users, len(ids), banned)
}

// UpdateBannedByEmails is UpdateBannedByIDs keyed by email.
func (s *UserService) UpdateBannedByEmails(ctx context.Context, emails []string, banned bool) (int, error) {
	users, err := s.repo.GetByEmails(ctx, emails)
	if err != nil {
		s.logger.Error("failed to look up users", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	return s.applyBanned(ctx, users, len(emails), banned)
}

func (s *UserService) applyBanned(ctx context.Context, users []*models.User, requested int, banned bool) (int, error) {
	if len(users) < requested {
		s.logger.Warn("some of the users were not found",
			slog.Int("requested", requested),
			slog.Int("found", len(users)))
	}
	if len(users) == 0 {
		return 0, nil
	}

	for _, user := range users {
		account.SetBanned(user, banned)
	}
	if err := s.repo.UpdateAll(ctx, users); err != nil {
		s.logger.Error("failed to update banned flags", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.logger.Info("banned flags updated", slog.Int("count", len(users)), slog.Bool("banned", banned))
	return len(users), nil
}

// SoftDeleteByID marks the account deleted; the row survives for an explicit
// hard delete.
func (s *UserService) SoftDeleteByID(ctx context.Context, id int64) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	account.SoftDelete(user)
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to soft delete user",
			slog.Int64("user_id", id),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user soft deleted", slog.Int64("user_id", id))
	return nil
}

// SoftDeleteByIDs skips missing ids like the bulk ban path. Returns the
// number of accounts updated.
func (s *UserService) SoftDeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to look up users", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	if len(users) < len(ids) {
		s.logger.Warn("some of the users were not found",
			slog.Int("requested", len(ids)),
			slog.Int("found", len(users)))
	}
	if len(users) == 0 {
		return 0, nil
	}

	for _, user := range users {
		account.SoftDelete(user)
	}
	if err := s.repo.UpdateAll(ctx, users); err != nil {
		s.logger.Error("failed to soft delete users", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.logger.Info("users soft deleted", slog.Int("count", len(users)))
	return len(users), nil
}

// DeleteByID removes the row permanently.
func (s *UserService) DeleteByID(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.Int64("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

func (s *UserService) DeleteByIDs(ctx context.Context, ids []int64) error {
	if err := s.repo.DeleteByIDs(ctx, ids); err != nil {
		s.logger.Error("failed to delete users", slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("users deleted", slog.Int("count", len(ids)))
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.Int64("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

func (s *UserService) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to get users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

func (s *UserService) ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error) {
	users, err := s.repo.ListSubscribed(ctx, subscribed)
	if err != nil {
		s.logger.Error("failed to list subscribed users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

func (s *UserService) findByToken(ctx context.Context, token int64) (*models.User, error) {
	user, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("no user found for token")
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to look up user by token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// reissueToken replaces the expired token and persists the record. The
// persisted reissue happens even though the surrounding call reports failure.
func (s *UserService) reissueToken(ctx context.Context, user *models.User) error {
	token, issuedAt := account.Issue()
	account.SetToken(user, token, issuedAt)
	if _, err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to reissue token",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *UserService) checkDuplicates(ctx context.Context, email, username string) error {
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("duplicate email on registration")
		return &models.DuplicateError{Field: "email"}
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for duplicate email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if username != "" {
		if _, err := s.repo.GetByUsername(ctx, username); err == nil {
			s.logger.Info("duplicate username on registration")
			return &models.DuplicateError{Field: "username"}
		} else if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check for duplicate username", slog.Any("error", err))
			return models.ErrInternalServer
		}
	}
	return nil
}

func buildAccount(in RegisterInput, passwordHash string) *models.User {
	user := &models.User{
		Email:        in.Email,
		PasswordHash: passwordHash,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Gender:       in.Gender,
		DateOfBirth:  in.DateOfBirth,
		Subscribed:   in.Subscribed,
		Status:       models.StatusUnverified,
		Roles:        []models.Role{models.RoleUser},
	}
	if in.Username == "" {
		user.Username = in.Email
	} else {
		user.Username = in.Username
		user.CustomUsername = true
	}
	return user
}
