package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup/internal/account"
	"cleanup/internal/models"
)

// memoryRepo is a map-backed UserRepository used to exercise full lifecycle
// flows. Email, username and token lookups skip soft-deleted rows, matching
// the SQL layer's partial indexes.
type memoryRepo struct {
	nextID int64
	users  map[int64]*models.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, users: make(map[int64]*models.User)}
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) GetByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	var out []*models.User
	for _, email := range emails {
		if u, err := r.GetByEmail(ctx, email); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	var out []*models.User
	for _, username := range usernames {
		if u, err := r.GetByUsername(ctx, username); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByToken(ctx context.Context, token int64) (*models.User, error) {
	for _, u := range r.users {
		if u.Token != nil && *u.Token == token && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepo) ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if u.Subscribed == subscribed && !u.IsDeleted() {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	cp := *user
	cp.ID = r.nextID
	r.nextID++
	if cp.RegisteredAt.IsZero() {
		cp.RegisteredAt = time.Now()
	}
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memoryRepo) CreateAll(ctx context.Context, users []*models.User) error {
	for i := range users {
		created, _ := r.Create(ctx, users[i])
		*users[i] = *created
	}
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return nil, models.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memoryRepo) UpdateAll(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if _, err := r.Update(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(r.users, id)
	}
	return nil
}

func newTestService(repo UserRepository) (*UserService, *RecordingNotifier) {
	notifier := &RecordingNotifier{}
	return NewUserService(repo, testGuard(), notifier, testLogger()), notifier
}

func registerUser(t *testing.T, svc *UserService, email, password string) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func TestRegisterDefaultsUsernameFromEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)

	user := registerUser(t, svc, "Alice@Example.com", "Str0ngPass")

	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice@example.com", user.Username)
	assert.False(t, user.CustomUsername)
	assert.Equal(t, models.StatusUnverified, user.Status)
	require.NotNil(t, user.Token)
	require.NotNil(t, user.TokenIssuedAt)
	assert.Equal(t, []models.Role{models.RoleUser}, user.Roles)

	assert.Equal(t, 1, notifier.Count("welcome"))
	assert.Equal(t, 1, notifier.Count("verification"))
}

func TestRegisterCustomUsername(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "bob@example.com",
		Username: "bobby",
		Password: "Str0ngPass",
	})
	require.NoError(t, err)
	assert.Equal(t, "bobby", user.Username)
	assert.True(t, user.CustomUsername)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	registerUser(t, svc, "alice@example.com", "Str0ngPass")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "Str0ngPass",
	})
	var dup *models.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
	assert.ErrorIs(t, err, models.ErrDuplicate)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "a@example.com",
		Username: "taken",
		Password: "Str0ngPass",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:    "b@example.com",
		Username: "taken",
		Password: "Str0ngPass",
	})
	var dup *models.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "username", dup.Field)
}

func TestRegisterWeakPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	cases := []string{
		"short1A",    // too short
		"alllower1",  // no uppercase
		"ALLUPPER1",  // no lowercase
		"NoDigitsAa", // no digit
	}
	for _, password := range cases {
		_, err := svc.Register(context.Background(), RegisterInput{
			Email:    "weak@example.com",
			Password: password,
		})
		var ve *models.ValidationError
		assert.ErrorAs(t, err, &ve, "password %q should be rejected", password)
	}
}

func TestRegisterMalformedEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Password: "Str0ngPass",
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, strings.Join(ve.Reasons, " "), "email")
}

func TestLoginSuccess(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")

	ok, err := svc.Login(context.Background(), "alice@example.com", "Str0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
	assert.Zero(t, stored.FailedLoginAttempts)
}

func TestLoginByUsername(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "bob@example.com",
		Username: "bobby",
		Password: "Str0ngPass",
	})
	require.NoError(t, err)

	ok, err := svc.Login(context.Background(), "bobby", "Str0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoginLockoutProgression(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")

	for i := 1; i <= account.LockThreshold; i++ {
		ok, err := svc.Login(context.Background(), "alice@example.com", "WrongPass1")
		require.NoError(t, err, "attempt %d", i)
		assert.False(t, ok)
	}

	// Warn fired exactly once, at the third failure; lock at the fifth.
	assert.Equal(t, 1, notifier.Count("warn_lock"))
	assert.Equal(t, 1, notifier.Count("locked"))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Locked)
	assert.EqualValues(t, account.LockThreshold, stored.FailedLoginAttempts)

	// Even the right password is refused once locked.
	_, err = svc.Login(context.Background(), "alice@example.com", "Str0ngPass")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	// No further notifications past the lock threshold.
	assert.Equal(t, 1, notifier.Count("warn_lock"))
	assert.Equal(t, 1, notifier.Count("locked"))
}

func TestVerifyConsumesToken(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	token := *user.Token

	require.NoError(t, svc.Verify(context.Background(), token))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, stored.Status)
	assert.NotNil(t, stored.VerifiedAt)
	assert.Nil(t, stored.Token)
	assert.Nil(t, stored.TokenIssuedAt)

	// Replaying the consumed token finds nothing.
	err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVerifyExpiredTokenReissues(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	firstToken := *user.Token

	expireToken(repo, user.ID)

	err := svc.Verify(context.Background(), firstToken)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.Equal(t, 1, notifier.Count("verification_resend"))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnverified, stored.Status)
	require.NotNil(t, stored.Token)
	secondToken := *stored.Token
	assert.NotEqual(t, firstToken, secondToken)

	// A second expiry yields yet another distinct token.
	expireToken(repo, user.ID)
	err = svc.Verify(context.Background(), secondToken)
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	stored, err = repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Token)
	assert.NotEqual(t, secondToken, *stored.Token)
	assert.NotEqual(t, firstToken, *stored.Token)

	// The fresh token still works.
	require.NoError(t, svc.Verify(context.Background(), *stored.Token))
}

func TestRequestPasswordChangeValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")

	// Unverified accounts cannot reset.
	err := svc.RequestPasswordChange(context.Background(), "alice@example.com", "NewStr0ngPass", "NewStr0ngPass")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, svc.Verify(context.Background(), *user.Token))

	// New password must differ from the old one.
	err = svc.RequestPasswordChange(context.Background(), "alice@example.com", "Str0ngPass", "Str0ngPass")
	require.ErrorAs(t, err, &ve)

	// The two copies must match.
	err = svc.RequestPasswordChange(context.Background(), "alice@example.com", "NewStr0ngPass", "OtherStr0ngPass")
	require.ErrorAs(t, err, &ve)

	// Policy still applies to the new password.
	err = svc.RequestPasswordChange(context.Background(), "alice@example.com", "weak", "weak")
	require.ErrorAs(t, err, &ve)

	// Unknown email.
	err = svc.RequestPasswordChange(context.Background(), "ghost@example.com", "NewStr0ngPass", "NewStr0ngPass")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPasswordChangeRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	require.NoError(t, svc.Verify(context.Background(), *user.Token))

	err := svc.RequestPasswordChange(context.Background(), "alice@example.com", "NewStr0ngPass", "NewStr0ngPass")
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.Count("pw_token"))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Token)
	require.NotNil(t, stored.PendingPasswordHash)

	// The old password still works until the change is confirmed.
	ok, err := svc.Login(context.Background(), "alice@example.com", "Str0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.ConfirmPasswordChange(context.Background(), *stored.Token))
	assert.Equal(t, 1, notifier.Count("pw_confirmation"))

	ok, err = svc.Login(context.Background(), "alice@example.com", "NewStr0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Login(context.Background(), "alice@example.com", "Str0ngPass")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordResetUnlocksAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	require.NoError(t, svc.Verify(context.Background(), *user.Token))

	for i := 0; i < account.LockThreshold; i++ {
		_, err := svc.Login(context.Background(), "alice@example.com", "WrongPass1")
		require.NoError(t, err)
	}
	_, err := svc.Login(context.Background(), "alice@example.com", "Str0ngPass")
	require.ErrorIs(t, err, models.ErrAccountLocked)

	require.NoError(t, svc.RequestPasswordChange(context.Background(), "alice@example.com", "NewStr0ngPass", "NewStr0ngPass"))
	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPasswordChange(context.Background(), *stored.Token))

	stored, err = repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Locked)
	assert.Zero(t, stored.FailedLoginAttempts)

	ok, err := svc.Login(context.Background(), "alice@example.com", "NewStr0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmPasswordChangeExpiredToken(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	require.NoError(t, svc.Verify(context.Background(), *user.Token))
	require.NoError(t, svc.RequestPasswordChange(context.Background(), "alice@example.com", "NewStr0ngPass", "NewStr0ngPass"))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	oldToken := *stored.Token

	expireToken(repo, user.ID)

	err = svc.ConfirmPasswordChange(context.Background(), oldToken)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.Equal(t, 1, notifier.Count("pw_token_resend"))

	// The pending hash survives the reissue; the new token completes it.
	stored, err = repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PendingPasswordHash)
	require.NoError(t, svc.ConfirmPasswordChange(context.Background(), *stored.Token))

	ok, err := svc.Login(context.Background(), "alice@example.com", "NewStr0ngPass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterBulkRejectsOnAnyDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	registerUser(t, svc, "existing@example.com", "Str0ngPass")

	err := svc.RegisterBulk(context.Background(), []RegisterInput{
		{Email: "fresh@example.com", Password: "Str0ngPass"},
		{Email: "existing@example.com", Password: "Str0ngPass"},
	})
	assert.ErrorIs(t, err, models.ErrDuplicate)

	// The clean entry was not persisted either.
	_, err = repo.GetByEmail(context.Background(), "fresh@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegisterBulkSuccess(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo)

	err := svc.RegisterBulk(context.Background(), []RegisterInput{
		{Email: "a@example.com", Password: "Str0ngPass"},
		{Email: "b@example.com", Password: "Str0ngPass"},
		{Email: "c@example.com", Password: "Str0ngPass"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, notifier.Count("welcome"))
	assert.Equal(t, 3, notifier.Count("verification"))

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u, err := repo.GetByEmail(context.Background(), email)
		require.NoError(t, err)
		assert.Equal(t, models.StatusUnverified, u.Status)
		assert.NotNil(t, u.Token)
	}
}

func TestUpdateBannedByIDsSkipsMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	u1 := registerUser(t, svc, "a@example.com", "Str0ngPass")
	u2 := registerUser(t, svc, "b@example.com", "Str0ngPass")

	updated, err := svc.UpdateBannedByIDs(context.Background(), []int64{u1.ID, u2.ID, 9999}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	for _, id := range []int64{u1.ID, u2.ID} {
		stored, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, stored.Banned)
	}
}

func TestUpdateBannedByEmails(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	u1 := registerUser(t, svc, "a@example.com", "Str0ngPass")

	updated, err := svc.UpdateBannedByEmails(context.Background(), []string{"a@example.com", "missing@example.com"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	stored, err := repo.GetByID(context.Background(), u1.ID)
	require.NoError(t, err)
	assert.True(t, stored.Banned)

	// Unban is the same operation.
	updated, err = svc.UpdateBannedByEmails(context.Background(), []string{"a@example.com"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	stored, err = repo.GetByID(context.Background(), u1.ID)
	require.NoError(t, err)
	assert.False(t, stored.Banned)
}

func TestSoftDeleteFreesIdentity(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")

	require.NoError(t, svc.SoftDeleteByID(context.Background(), user.ID))

	// Email lookups no longer see the deleted row.
	_, err := repo.GetByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Admin lookup by id still does.
	stored, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, stored.Status)

	// The email can be registered again.
	fresh := registerUser(t, svc, "alice@example.com", "Str0ngPass")
	assert.NotEqual(t, user.ID, fresh.ID)
}

func TestHardDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	user := registerUser(t, svc, "alice@example.com", "Str0ngPass")

	require.NoError(t, svc.DeleteByID(context.Background(), user.ID))

	_, err := svc.GetByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.DeleteByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// expireToken backdates the active token past its TTL.
func expireToken(repo *memoryRepo, id int64) {
	u := repo.users[id]
	past := time.Now().Add(-account.TokenTTL - time.Minute)
	u.TokenIssuedAt = &past
}
