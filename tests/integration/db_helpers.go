package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cleanup/internal/database"
	"cleanup/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer and the app's database wrapper.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container and applies the embedded
// migrations.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("cleanup"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	for _, table := range []string{"users", "mail_templates"} {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedUser inserts an account row with a hashed password.
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password, status string) (int64, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, username, password_hash, status, registered_at, created_at, updated_at)
		VALUES ($1, $1, $2, $3, NOW(), NOW(), NOW())
		RETURNING id
	`

	var id int64
	if err := pool.QueryRow(ctx, query, email, hashedPassword, status).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

// SeedExpiredToken installs a token issued past its TTL on an account.
func SeedExpiredToken(ctx context.Context, pool *pgxpool.Pool, userID, token int64) error {
	query := `
		UPDATE users SET token = $2, token_issued_at = NOW() - INTERVAL '2 hours'
		WHERE id = $1
	`
	if _, err := pool.Exec(ctx, query, userID, token); err != nil {
		return fmt.Errorf("failed to set expired token: %w", err)
	}
	return nil
}

// SeedTemplate inserts a mail template row.
func SeedTemplate(ctx context.Context, pool *pgxpool.Pool, name, body string) error {
	query := `
		INSERT INTO mail_templates (name, body, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body
	`
	if _, err := pool.Exec(ctx, query, name, body); err != nil {
		return fmt.Errorf("failed to insert template %s: %w", name, err)
	}
	return nil
}
