// internal/model/lead.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AdditionalInfo holds free-form recipient attributes (role, company, notes).
type AdditionalInfo map[string]string

func (a AdditionalInfo) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *AdditionalInfo) Scan(src any) error {
	if src == nil {
		*a = AdditionalInfo{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("cannot scan %T into AdditionalInfo", src)
}

type Lead struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Name           string         `db:"name" json:"name"`
	Email          string         `db:"email" json:"email"`
	AdditionalInfo AdditionalInfo `db:"additional_info" json:"additional_info"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
