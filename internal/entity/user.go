package entity

import (
	"context"
	"encoding/json"
)

// User is a CRM user mirrored verbatim. We only ever need it to resolve
// an owner name to a stable source id.
type User struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Raw   json.RawMessage `json:"-"`
}

type UserRepository interface {
	Upsert(ctx context.Context, u *User) error
	// FindByName is case-insensitive. Returns nil when no user matches.
	FindByName(ctx context.Context, name string) (*User, error)
}
