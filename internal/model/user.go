// internal/model/user.go
package model

import "time"

type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	EmailAllowlist string    `db:"email_allowlist" json:"email_allowlist"` // comma-separated recipients allowed for real dispatch
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
