package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO pd_users (id, name, email, raw, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    raw = EXCLUDED.raw,
		    updated_at = NOW()
	`
	_, err := r.DB.ExecContext(ctx, query, u.ID, u.Name, u.Email, nullJSON(u.Raw))
	return err
}

func (r *UserRepository) FindByName(ctx context.Context, name string) (*entity.User, error) {
	query := `
		SELECT id, name, COALESCE(email, '')
		FROM pd_users
		WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
		LIMIT 1
	`
	var u entity.User
	err := r.DB.QueryRowContext(ctx, query, name).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
