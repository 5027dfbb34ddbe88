package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup/internal/models"
	"cleanup/internal/repositories"
)

// Integration tests need Docker; set INTEGRATION=1 to run them.
func setupRepo(t *testing.T) (*TestDB, *repositories.UserRepository) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Teardown(context.Background()) })

	return db, repositories.NewUserRepository(db.DB)
}

func TestUserRepositoryRoundTrip(t *testing.T) {
	db, repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.CleanupTables(ctx))

	token := int64(123456789)
	created, err := repo.Create(ctx, &models.User{
		Email:        "alice@example.com",
		Username:     "alice@example.com",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
		Roles:        []models.Role{models.RoleUser},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, []models.Role{models.RoleUser}, byEmail.Roles)

	// Install and read back a token.
	byEmail.Token = &token
	now := byEmail.CreatedAt
	byEmail.TokenIssuedAt = &now
	if _, err := repo.Update(ctx, byEmail); err != nil {
		t.Fatalf("update: %v", err)
	}

	byToken, err := repo.GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	db, repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.CleanupTables(ctx))

	u := &models.User{
		Email:        "dup@example.com",
		Username:     "dup@example.com",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
	}
	_, err := repo.Create(ctx, u)
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{
		Email:        "dup@example.com",
		Username:     "other",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
	})
	assert.ErrorIs(t, err, models.ErrDuplicate)
}

func TestSoftDeletedEmailIsReusable(t *testing.T) {
	db, repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.CleanupTables(ctx))

	first, err := repo.Create(ctx, &models.User{
		Email:        "reuse@example.com",
		Username:     "reuse@example.com",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
	})
	require.NoError(t, err)

	first.Status = models.StatusDeleted
	_, err = repo.Update(ctx, first)
	require.NoError(t, err)

	// The partial unique index ignores deleted rows.
	second, err := repo.Create(ctx, &models.User{
		Email:        "reuse@example.com",
		Username:     "reuse@example.com",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Email lookup resolves to the live row.
	found, err := repo.GetByEmail(ctx, "reuse@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	// Admin lookup by id still reaches the deleted row.
	deleted, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, deleted.Status)
}

func TestTokenPairConstraint(t *testing.T) {
	db, repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.CleanupTables(ctx))

	created, err := repo.Create(ctx, &models.User{
		Email:        "pair@example.com",
		Username:     "pair@example.com",
		PasswordHash: "hash",
		Status:       models.StatusUnverified,
	})
	require.NoError(t, err)

	// A token without its issue timestamp violates the check constraint.
	_, err = db.Pool.Exec(ctx, "UPDATE users SET token = 42 WHERE id = $1", created.ID)
	assert.Error(t, err)
}
