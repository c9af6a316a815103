package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/housinglord/housing-lord/models"
)

const propertySelect = `SELECT p.id, p.title, p.description, p.price, p.bedrooms, p.bathrooms, p.size,
	p.property_type, p.amenities, p.target_audience, p.images, p.available, p.featured,
	p.approved_by, p.approved_at, p.approval_source, p.created_at,
	o.id, o.external_id, o.name, o.email, o.phone,
	l.id, l.city, l.state, l.country, l.approved
FROM properties p
JOIN owners o ON o.id = p.owner_id
JOIN locations l ON l.id = p.location_id`

func (s *Store) GetProperty(ctx context.Context, id string) (models.Property, error) {
	q := propertySelect + ` WHERE p.id = ?`

	p, err := scanProperty(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Property{}, models.ErrNotFound
	}

	return p, err
}

func (s *Store) ListProperties(ctx context.Context, pq models.PropertyQuery) ([]models.Property, error) {
	var (
		where []string
		args  []any
	)

	if pq.Approved != nil {
		where = append(where, "l.approved = ?")
		args = append(args, *pq.Approved)
	}

	if pq.OwnerID != "" {
		where = append(where, "p.owner_id = ?")
		args = append(args, pq.OwnerID)
	}

	q := propertySelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	q += " ORDER BY p.created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ans []models.Property

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}

		ans = append(ans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}

func (s *Store) FindOwnerByEmail(ctx context.Context, email string) (models.Owner, error) {
	const q = `SELECT id, external_id, name, email, phone FROM owners WHERE email = ?`

	var o models.Owner

	err := s.db.QueryRowContext(ctx, s.rebind(q), email).Scan(&o.ID, &o.ExternalID, &o.Name, &o.Email, &o.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Owner{}, models.ErrNotFound
	}

	return o, err
}

func (s *Store) CreateOwner(ctx context.Context, o *models.Owner) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	const q = `INSERT INTO owners (id, external_id, name, email, phone) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	return s.insertOnce(ctx, q, o.ID, o.ExternalID, o.Name, o.Email, o.Phone)
}

func (s *Store) CreateProperty(ctx context.Context, p *models.Property) (err error) {
	if p.Location == nil {
		return fmt.Errorf("property location is required")
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if p.Location.ID == "" {
		p.Location.ID = uuid.NewString()
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	p.LocationID = p.Location.ID
	p.Location.Approved = false

	item, err := propertyToRow(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	const ql = `INSERT INTO locations (id, city, state, country, approved) VALUES (?, ?, ?, ?, ?)`

	if _, err = tx.ExecContext(ctx, s.rebind(ql), p.Location.ID, p.Location.City, p.Location.State, p.Location.Country, false); err != nil {
		return err
	}

	const qp = `INSERT INTO properties (id, title, description, price, bedrooms, bathrooms, size,
	property_type, amenities, target_audience, images, available, featured, owner_id, location_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, s.rebind(qp),
		item.ID, item.Title, item.Description, item.Price, item.Bedrooms, item.Bathrooms, item.Size,
		item.PropertyType, item.Amenities, item.TargetAudience, item.Images, item.Available, item.Featured,
		item.OwnerID, item.LocationID, item.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ApproveProperty(ctx context.Context, id string, a models.Approval) (_ models.Property, err error) {
	if a.ApprovedAt.IsZero() {
		a.ApprovedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Property{}, err
	}

	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	var locationID string

	const qs = `SELECT location_id FROM properties WHERE id = ?`

	if err = tx.QueryRowContext(ctx, s.rebind(qs), id).Scan(&locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Property{}, models.ErrNotFound
		}

		return models.Property{}, err
	}

	const qp = `UPDATE properties SET approved_by = ?, approved_at = ?, approval_source = ? WHERE id = ?`

	if _, err = tx.ExecContext(ctx, s.rebind(qp), a.ApprovedBy, toMillis(a.ApprovedAt), a.Source, id); err != nil {
		return models.Property{}, err
	}

	const ql = `UPDATE locations SET approved = ? WHERE id = ?`

	if _, err = tx.ExecContext(ctx, s.rebind(ql), true, locationID); err != nil {
		return models.Property{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Property{}, err
	}

	return s.GetProperty(ctx, id)
}

type propertyRow struct {
	ID             string
	Title          string
	Description    string
	Price          float64
	Bedrooms       int
	Bathrooms      int
	Size           float64
	PropertyType   string
	Amenities      string
	TargetAudience string
	Images         string
	Available      bool
	Featured       bool
	OwnerID        string
	LocationID     string
	CreatedAt      int64
}

func propertyToRow(p *models.Property) (propertyRow, error) {
	amenities, err := marshalList(p.Amenities)
	if err != nil {
		return propertyRow{}, err
	}

	audience, err := marshalList(p.TargetAudience)
	if err != nil {
		return propertyRow{}, err
	}

	images, err := marshalList(p.Images)
	if err != nil {
		return propertyRow{}, err
	}

	return propertyRow{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Price:          p.Price,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		Size:           p.Size,
		PropertyType:   p.PropertyType,
		Amenities:      amenities,
		TargetAudience: audience,
		Images:         images,
		Available:      p.Available,
		Featured:       p.Featured,
		OwnerID:        p.OwnerID,
		LocationID:     p.LocationID,
		CreatedAt:      toMillis(p.CreatedAt),
	}, nil
}

func scanProperty(row scannable) (models.Property, error) {
	var (
		p                           models.Property
		o                           models.Owner
		l                           models.Location
		amenities, audience, images string
		approvedBy, approvalSource  string
		approvedAt, createdAt       int64
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.Bedrooms, &p.Bathrooms, &p.Size,
		&p.PropertyType, &amenities, &audience, &images, &p.Available, &p.Featured,
		&approvedBy, &approvedAt, &approvalSource, &createdAt,
		&o.ID, &o.ExternalID, &o.Name, &o.Email, &o.Phone,
		&l.ID, &l.City, &l.State, &l.Country, &l.Approved,
	)
	if err != nil {
		return models.Property{}, err
	}

	if err := json.Unmarshal([]byte(amenities), &p.Amenities); err != nil {
		return models.Property{}, err
	}

	if err := json.Unmarshal([]byte(audience), &p.TargetAudience); err != nil {
		return models.Property{}, err
	}

	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return models.Property{}, err
	}

	p.OwnerID = o.ID
	p.Owner = &o
	p.LocationID = l.ID
	p.Location = &l
	p.CreatedAt = fromMillis(createdAt)

	if approvedBy != "" || approvedAt != 0 {
		p.Approval = &models.Approval{
			ApprovedBy: approvedBy,
			ApprovedAt: fromMillis(approvedAt),
			Source:     approvalSource,
		}
	}

	return p, nil
}

func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}

	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
