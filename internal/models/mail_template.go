package models

import "time"

// MailTemplate is a named mustache template body stored in the database.
// Templates are seeded at startup and may be edited afterwards.
type MailTemplate struct {
	ID        int32
	Name      string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
