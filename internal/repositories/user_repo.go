package repositories

import (
	"context"
	"fmt"
	"time"

	"cleanup/internal/database"
	"cleanup/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const userColumns = `id, first_name, middle_name, last_name, gender, date_of_birth,
	username, email, password_hash, pending_password_hash, status, locked, banned,
	subscribed, custom_username, token, token_issued_at, failed_login_attempts,
	last_login, password_changed_at, registered_at, verified_at, roles, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so single-row helpers
// can run standalone or inside a bulk transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// rowScanner interface for scanning user rows (single row or rows iterator)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var firstName, middleName, lastName, pendingPasswordHash *string
	var dateOfBirth, tokenIssuedAt, lastLogin, passwordChangedAt, verifiedAt *time.Time
	var token *int64
	var failedAttempts int16
	var roles []string

	err := scanner.Scan(
		&user.ID, &firstName, &middleName, &lastName, &user.Gender, &dateOfBirth,
		&user.Username, &user.Email, &user.PasswordHash, &pendingPasswordHash,
		&user.Status, &user.Locked, &user.Banned, &user.Subscribed, &user.CustomUsername,
		&token, &tokenIssuedAt, &failedAttempts,
		&lastLogin, &passwordChangedAt, &user.RegisteredAt, &verifiedAt,
		pq.Array(&roles), &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if firstName != nil {
		user.FirstName = *firstName
	}
	if middleName != nil {
		user.MiddleName = *middleName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	user.DateOfBirth = dateOfBirth
	user.PendingPasswordHash = pendingPasswordHash
	user.Token = token
	user.TokenIssuedAt = tokenIssuedAt
	user.FailedLoginAttempts = uint8(failedAttempts)
	user.LastLogin = lastLogin
	user.PasswordChangedAt = passwordChangedAt
	user.VerifiedAt = verifiedAt
	user.Roles = models.RolesFromStrings(roles)

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// Lookup by id sees every row, including soft-deleted ones; the remaining
// lookups exclude deleted accounts so a freed email, username or token can
// never resolve to a dead row.

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ANY($1) ORDER BY id`, userColumns)
	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 AND status <> 'deleted'`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = ANY($1) AND status <> 'deleted' ORDER BY id`, userColumns)
	rows, err := r.db.Pool.Query(ctx, query, emails)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1 AND status <> 'deleted'`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = ANY($1) AND status <> 'deleted' ORDER BY id`, userColumns)
	rows, err := r.db.Pool.Query(ctx, query, usernames)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) GetByToken(ctx context.Context, token int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE token = $1 AND status <> 'deleted'`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, token))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, userColumns)
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE subscribed = $1 AND status <> 'deleted' ORDER BY id`, userColumns)
	rows, err := r.db.Pool.Query(ctx, query, subscribed)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return r.create(ctx, r.db.Pool, user)
}

// CreateAll persists the batch in one transaction; a failure on any row
// rolls back every row.
func (r *UserRepository) CreateAll(ctx context.Context, users []*models.User) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for i, user := range users {
			created, err := r.create(ctx, tx, user)
			if err != nil {
				return err
			}
			*users[i] = *created
		}
		return nil
	})
}

func (r *UserRepository) create(ctx context.Context, q querier, user *models.User) (*models.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	if user.Status == "" {
		user.Status = models.StatusUnverified
	}
	if user.Gender == "" {
		user.Gender = models.GenderNotSpecified
	}
	if len(user.Roles) == 0 {
		user.Roles = []models.Role{models.RoleUser}
	}

	query := fmt.Sprintf(`
		INSERT INTO users (first_name, middle_name, last_name, gender, date_of_birth,
			username, email, password_hash, pending_password_hash, status, locked, banned,
			subscribed, custom_username, token, token_issued_at, failed_login_attempts,
			last_login, password_changed_at, registered_at, verified_at, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING %s
	`, userColumns)

	return scanUserRow(q.QueryRow(ctx, query,
		nullableString(user.FirstName), nullableString(user.MiddleName), nullableString(user.LastName),
		user.Gender, user.DateOfBirth,
		user.Username, user.Email, user.PasswordHash, user.PendingPasswordHash,
		user.Status, user.Locked, user.Banned, user.Subscribed, user.CustomUsername,
		user.Token, user.TokenIssuedAt, int16(user.FailedLoginAttempts),
		user.LastLogin, user.PasswordChangedAt, user.RegisteredAt, user.VerifiedAt,
		pq.Array(models.RoleStrings(user.Roles)), user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	return r.update(ctx, r.db.Pool, user)
}

// UpdateAll persists the batch in one transaction.
func (r *UserRepository) UpdateAll(ctx context.Context, users []*models.User) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for i, user := range users {
			updated, err := r.update(ctx, tx, user)
			if err != nil {
				return err
			}
			*users[i] = *updated
		}
		return nil
	})
}

func (r *UserRepository) update(ctx context.Context, q querier, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := fmt.Sprintf(`
		UPDATE users SET first_name = $1, middle_name = $2, last_name = $3, gender = $4,
			date_of_birth = $5, username = $6, email = $7, password_hash = $8,
			pending_password_hash = $9, status = $10, locked = $11, banned = $12,
			subscribed = $13, custom_username = $14, token = $15, token_issued_at = $16,
			failed_login_attempts = $17, last_login = $18, password_changed_at = $19,
			verified_at = $20, roles = $21, updated_at = $22
		WHERE id = $23
		RETURNING %s
	`, userColumns)

	return scanUserRow(q.QueryRow(ctx, query,
		nullableString(user.FirstName), nullableString(user.MiddleName), nullableString(user.LastName),
		user.Gender, user.DateOfBirth, user.Username, user.Email, user.PasswordHash,
		user.PendingPasswordHash, user.Status, user.Locked, user.Banned,
		user.Subscribed, user.CustomUsername, user.Token, user.TokenIssuedAt,
		int16(user.FailedLoginAttempts), user.LastLogin, user.PasswordChangedAt,
		user.VerifiedAt, pq.Array(models.RoleStrings(user.Roles)), user.UpdatedAt,
		user.ID,
	))
}

// Delete removes the row permanently, as opposed to a soft delete.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
