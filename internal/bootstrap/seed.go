package bootstrap

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cleanup/internal/config"
	"cleanup/internal/models"
	"cleanup/internal/services"
	pkgauth "cleanup/pkg/auth"
	pkglogger "cleanup/pkg/logger"
)

//go:embed templates/*.mustache
var templateFS embed.FS

// templateFiles maps mail template names to their embedded default bodies.
var templateFiles = map[string]string{
	services.TemplateWelcome:                "templates/welcome.mustache",
	services.TemplateAccountVerification:    "templates/account_verification.mustache",
	services.TemplatePasswordChangeRequest:  "templates/password_change_request.mustache",
	services.TemplatePasswordChangeResponse: "templates/password_change_response.mustache",
	services.TemplatePasswordChangeResend:   "templates/password_change_resend.mustache",
	services.TemplateWarnAccountLock:        "templates/warn_account_lock.mustache",
	services.TemplateAccountLocked:          "templates/account_locked.mustache",
}

// UserStore is the slice of the user repository seeding needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// TemplateStore upserts mail template bodies by name.
type TemplateStore interface {
	Upsert(ctx context.Context, name, body string) error
}

// Seed loads the embedded mail templates into the database and ensures the
// superadmin account exists. It runs on every startup and is idempotent.
func Seed(ctx context.Context, users UserStore, templates TemplateStore, cfg config.AccountConfig, logger *slog.Logger) error {
	if err := seedTemplates(ctx, templates); err != nil {
		return err
	}
	return seedSuperadmin(ctx, users, cfg, logger)
}

func seedTemplates(ctx context.Context, templates TemplateStore) error {
	for name, path := range templateFiles {
		body, err := templateFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}
		if err := templates.Upsert(ctx, name, string(body)); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", name, err)
		}
	}
	return nil
}

func seedSuperadmin(ctx context.Context, users UserStore, cfg config.AccountConfig, logger *slog.Logger) error {
	if cfg.SuperadminEmail == "" || cfg.SuperadminPassword == "" {
		logger.Warn("superadmin credentials not configured, skipping seed")
		return nil
	}

	_, err := users.GetByEmail(ctx, cfg.SuperadminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for superadmin: %w", err)
	}

	hash, err := pkgauth.HashPassword(cfg.SuperadminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash superadmin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		Email:        cfg.SuperadminEmail,
		Username:     cfg.SuperadminEmail,
		PasswordHash: hash,
		Status:       models.StatusVerified,
		VerifiedAt:   &now,
		Roles:        []models.Role{models.RoleUser, models.RoleAdmin, models.RoleSuperadmin},
	}
	if _, err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create superadmin: %w", err)
	}

	logger.Info("superadmin account created",
		slog.String("email", pkglogger.SanitizedEmail(cfg.SuperadminEmail)))
	return nil
}
