package services

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cbroglie/mustache"

	"cleanup/internal/background"
	"cleanup/internal/models"
	pkglogger "cleanup/pkg/logger"
)

// Mail template names, matching the seeded mail_templates rows.
const (
	TemplateWelcome                = "Welcome"
	TemplateAccountVerification    = "AccountVerification"
	TemplatePasswordChangeRequest  = "PasswordChangeRequest"
	TemplatePasswordChangeResponse = "PasswordChangeResponse"
	TemplatePasswordChangeResend   = "PasswordChangeResend"
	TemplateWarnAccountLock        = "WarnAccountLock"
	TemplateAccountLocked          = "AccountLocked"
)

// TemplateRepository loads mail template bodies by name.
type TemplateRepository interface {
	GetByName(ctx context.Context, name string) (*models.MailTemplate, error)
}

// MailEnqueuer accepts rendered messages for asynchronous delivery.
type MailEnqueuer interface {
	Enqueue(msg background.OutboundEmail)
}

// Notifier is the notification surface consumed by the lifecycle service.
// Every method is fire-and-forget: failures are logged, never returned, and
// callers must not depend on delivery or ordering.
type Notifier interface {
	SendWelcome(ctx context.Context, user *models.User)
	SendAccountVerification(ctx context.Context, user *models.User, token int64)
	ResendAccountVerification(ctx context.Context, user *models.User, token int64)
	SendPasswordChangeToken(ctx context.Context, user *models.User, token int64)
	ResendPasswordChangeToken(ctx context.Context, user *models.User, token int64)
	SendPasswordChangeConfirmation(ctx context.Context, user *models.User)
	SendWarnAccountLock(ctx context.Context, user *models.User)
	SendAccountLocked(ctx context.Context, user *models.User)
}

// MailService renders database-stored mustache templates and enqueues the
// result for background delivery.
type MailService struct {
	templates  TemplateRepository
	mailer     MailEnqueuer
	baseURL    string
	adminEmail string
	logger     *slog.Logger
}

func NewMailService(templates TemplateRepository, mailer MailEnqueuer, baseURL, adminEmail string, logger *slog.Logger) *MailService {
	return &MailService{
		templates:  templates,
		mailer:     mailer,
		baseURL:    baseURL,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func (s *MailService) SendWelcome(ctx context.Context, user *models.User) {
	s.send(ctx, user.Email, "Welcome", TemplateWelcome, map[string]any{
		"name":       user.DisplayName(),
		"adminEmail": s.adminEmail,
	})
}

func (s *MailService) SendAccountVerification(ctx context.Context, user *models.User, token int64) {
	s.send(ctx, user.Email, "Account verification", TemplateAccountVerification, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/verify/" + strconv.FormatInt(token, 10),
	})
}

func (s *MailService) ResendAccountVerification(ctx context.Context, user *models.User, token int64) {
	s.send(ctx, user.Email, "Your new verification link", TemplateAccountVerification, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/verify/" + strconv.FormatInt(token, 10),
	})
}

func (s *MailService) SendPasswordChangeToken(ctx context.Context, user *models.User, token int64) {
	s.send(ctx, user.Email, "Password change link", TemplatePasswordChangeRequest, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/pw-confirm/" + strconv.FormatInt(token, 10),
	})
}

func (s *MailService) ResendPasswordChangeToken(ctx context.Context, user *models.User, token int64) {
	s.send(ctx, user.Email, "Your new link", TemplatePasswordChangeResend, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/pw-confirm/" + strconv.FormatInt(token, 10),
	})
}

func (s *MailService) SendPasswordChangeConfirmation(ctx context.Context, user *models.User) {
	s.send(ctx, user.Email, "Your password was changed", TemplatePasswordChangeResponse, map[string]any{
		"name":       user.DisplayName(),
		"adminEmail": s.adminEmail,
	})
}

func (s *MailService) SendWarnAccountLock(ctx context.Context, user *models.User) {
	s.send(ctx, user.Email, "Account lock warning", TemplateWarnAccountLock, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/pw-change-request",
	})
}

func (s *MailService) SendAccountLocked(ctx context.Context, user *models.User) {
	s.send(ctx, user.Email, "Account locked", TemplateAccountLocked, map[string]any{
		"name": user.DisplayName(),
		"link": s.baseURL + "/users/pw-change-request",
	})
}

func (s *MailService) send(ctx context.Context, to, subject, templateName string, templateCtx map[string]any) {
	tmpl, err := s.templates.GetByName(ctx, templateName)
	if err != nil {
		s.logger.Error("mail template lookup failed",
			slog.String("template", templateName),
			slog.Any("error", err))
		return
	}

	body, err := mustache.Render(tmpl.Body, templateCtx)
	if err != nil {
		s.logger.Error("mail template render failed",
			slog.String("template", templateName),
			slog.Any("error", err))
		return
	}

	s.mailer.Enqueue(background.OutboundEmail{To: to, Subject: subject, Body: body})
	s.logger.Info("email queued",
		slog.String("template", templateName),
		slog.String("email", pkglogger.SanitizedEmail(to)))
}
