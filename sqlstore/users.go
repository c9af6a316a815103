package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/housinglord/housing-lord/models"
)

const userColumns = `id, external_id, name, email, phone, created_at`

func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE external_id = ?`

	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(q), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}

	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	return s.insertOnce(ctx, q, u.ID, u.ExternalID, u.Name, u.Email, u.Phone, toMillis(u.CreatedAt))
}

func scanUser(row scannable) (models.User, error) {
	var (
		u         models.User
		createdAt int64
	)

	if err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.Phone, &createdAt); err != nil {
		return models.User{}, err
	}

	u.CreatedAt = fromMillis(createdAt)

	return u, nil
}
