package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup/internal/models"
)

func templateRepoWith(bodies map[string]string) *MockTemplateRepository {
	return &MockTemplateRepository{
		GetByNameFunc: func(ctx context.Context, name string) (*models.MailTemplate, error) {
			body, ok := bodies[name]
			if !ok {
				return nil, models.ErrNotFound
			}
			return &models.MailTemplate{Name: name, Body: body}, nil
		},
	}
}

func TestSendAccountVerificationRendersLink(t *testing.T) {
	repo := templateRepoWith(map[string]string{
		TemplateAccountVerification: "Hi {{name}}, verify here: {{link}}",
	})
	enqueuer := &MockEnqueuer{}
	svc := NewMailService(repo, enqueuer, "https://app.example.com", "admin@example.com", testLogger())

	user := &models.User{Email: "alice@example.com", FirstName: "Alice"}
	svc.SendAccountVerification(context.Background(), user, 12345)

	require.Len(t, enqueuer.Messages, 1)
	msg := enqueuer.Messages[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Contains(t, msg.Body, "Hi Alice")
	assert.Contains(t, msg.Body, "https://app.example.com/users/verify/12345")
}

func TestSendPasswordChangeTokenRendersConfirmLink(t *testing.T) {
	repo := templateRepoWith(map[string]string{
		TemplatePasswordChangeRequest: "{{link}}",
	})
	enqueuer := &MockEnqueuer{}
	svc := NewMailService(repo, enqueuer, "https://app.example.com", "admin@example.com", testLogger())

	user := &models.User{Email: "bob@example.com"}
	svc.SendPasswordChangeToken(context.Background(), user, 777)

	require.Len(t, enqueuer.Messages, 1)
	assert.Contains(t, enqueuer.Messages[0].Body, "/users/pw-confirm/777")
}

func TestSendWelcomeUsesDisplayName(t *testing.T) {
	repo := templateRepoWith(map[string]string{
		TemplateWelcome: "Welcome {{name}}, contact {{adminEmail}}",
	})
	enqueuer := &MockEnqueuer{}
	svc := NewMailService(repo, enqueuer, "https://app.example.com", "admin@example.com", testLogger())

	// A chosen username takes precedence over first name and email.
	user := &models.User{Email: "c@example.com", Username: "chosen", CustomUsername: true, FirstName: "Carol"}
	svc.SendWelcome(context.Background(), user)

	require.Len(t, enqueuer.Messages, 1)
	assert.Contains(t, enqueuer.Messages[0].Body, "Welcome chosen")
	assert.Contains(t, enqueuer.Messages[0].Body, "admin@example.com")
}

func TestSendMissingTemplateDropsQuietly(t *testing.T) {
	repo := templateRepoWith(nil)
	enqueuer := &MockEnqueuer{}
	svc := NewMailService(repo, enqueuer, "https://app.example.com", "admin@example.com", testLogger())

	svc.SendWelcome(context.Background(), &models.User{Email: "a@example.com"})

	assert.Empty(t, enqueuer.Messages)
}
