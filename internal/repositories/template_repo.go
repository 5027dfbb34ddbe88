package repositories

import (
	"context"
	"time"

	"cleanup/internal/database"
	"cleanup/internal/models"
)

type TemplateRepository struct {
	db *database.DB
}

func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*models.MailTemplate, error) {
	var tmpl models.MailTemplate
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, body, created_at, updated_at FROM mail_templates WHERE name = $1`,
		name,
	).Scan(&tmpl.ID, &tmpl.Name, &tmpl.Body, &tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &tmpl, nil
}

// Upsert inserts a template or refreshes the body of an existing one, so
// seeding at startup stays idempotent.
func (r *TemplateRepository) Upsert(ctx context.Context, name, body string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO mail_templates (name, body, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, name, body, time.Now())
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
