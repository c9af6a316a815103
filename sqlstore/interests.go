package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/housinglord/housing-lord/models"
)

func (s *Store) FindInterest(ctx context.Context, userID, propertyID string) (models.Interest, error) {
	const q = `SELECT id, user_id, property_id, status, created_at FROM interests WHERE user_id = ? AND property_id = ?`

	var (
		i         models.Interest
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, s.rebind(q), userID, propertyID).Scan(&i.ID, &i.UserID, &i.PropertyID, &i.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Interest{}, models.ErrNotFound
	}

	if err != nil {
		return models.Interest{}, err
	}

	i.CreatedAt = fromMillis(createdAt)

	return i, nil
}

func (s *Store) CreateInterest(ctx context.Context, i *models.Interest) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}

	if i.Status == "" {
		i.Status = models.InterestStatusPending
	}

	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO interests (id, user_id, property_id, status, created_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	return s.insertOnce(ctx, q, i.ID, i.UserID, i.PropertyID, i.Status, toMillis(i.CreatedAt))
}

func (s *Store) ListInterests(ctx context.Context, iq models.InterestQuery) ([]models.InterestView, error) {
	q := `SELECT i.id, i.user_id, i.property_id, i.status, i.created_at,
	u.id, u.external_id, u.name, u.email, u.phone, u.created_at,
	COALESCE(p.title, '')
FROM interests i
JOIN users u ON u.id = i.user_id
LEFT JOIN properties p ON p.id = i.property_id`

	var (
		where []string
		args  []any
	)

	if iq.PropertyID != "" {
		where = append(where, "i.property_id = ?")
		args = append(args, iq.PropertyID)
	}

	if iq.UserID != "" {
		where = append(where, "i.user_id = ?")
		args = append(args, iq.UserID)
	}

	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	q += " ORDER BY i.created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ans []models.InterestView

	for rows.Next() {
		var (
			v                    models.InterestView
			created, userCreated int64
		)

		err := rows.Scan(
			&v.ID, &v.UserID, &v.PropertyID, &v.Status, &created,
			&v.User.ID, &v.User.ExternalID, &v.User.Name, &v.User.Email, &v.User.Phone, &userCreated,
			&v.PropertyTitle,
		)
		if err != nil {
			return nil, err
		}

		v.CreatedAt = fromMillis(created)
		v.User.CreatedAt = fromMillis(userCreated)

		ans = append(ans, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}
