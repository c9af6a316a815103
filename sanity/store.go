package sanity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/housinglord/housing-lord/models"
)

const (
	notDraft = `!(_id in path("drafts.**"))`

	userProjection = `{_id, clerkId, name, email, phone, createdAt}`

	ownerProjection = `{_id, clerkId, name, email, phone}`

	propertyProjection = `{
  _id, title, description, price, bedrooms, bathrooms, size, propertyType,
  amenities, targetAudience, available, featured, createdAt, approvalDetails,
  "images": images[]{_type, _key, asset, "url": asset->url},
  "owner": owner->` + ownerProjection + `,
  "location": location->{_id, city, state, country, approved}
}`

	interestProjection = `{
  _id, status, createdAt,
  "userId": user._ref,
  "propertyId": property._ref,
  "user": user->` + userProjection + `,
  "propertyTitle": coalesce(property->title, "")
}`
)

// Store implements models.Store and models.ImageUploader on Sanity
type Store struct {
	client *Client
}

var (
	_ models.Store         = (*Store)(nil)
	_ models.ImageUploader = (*Store)(nil)
)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}

func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (models.User, error) {
	const q = `*[_type == "user" && clerkId == $externalId][0]` + userProjection

	var doc userDoc
	if err := s.query(ctx, q, map[string]any{"externalId": externalID}, &doc); err != nil {
		return models.User{}, err
	}

	return doc.model(), nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	id := docID("user", u.ExternalID)

	err := s.create(ctx, userDoc{
		ID:        id,
		Type:      "user",
		ClerkID:   u.ExternalID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: formatTime(u.CreatedAt),
	})
	if err != nil {
		return err
	}

	u.ID = id

	return nil
}

func (s *Store) GetProperty(ctx context.Context, id string) (models.Property, error) {
	const q = `*[_type == "property" && _id == $id][0]` + propertyProjection

	var v propertyView
	if err := s.query(ctx, q, map[string]any{"id": id}, &v); err != nil {
		return models.Property{}, err
	}

	return v.model(), nil
}

func (s *Store) ListProperties(ctx context.Context, pq models.PropertyQuery) ([]models.Property, error) {
	filters := []string{`_type == "property"`, notDraft}
	params := map[string]any{}

	if pq.Approved != nil {
		filters = append(filters, `location->approved == $approved`)
		params["approved"] = *pq.Approved
	}

	if pq.OwnerID != "" {
		filters = append(filters, `owner._ref == $ownerId`)
		params["ownerId"] = pq.OwnerID
	}

	q := `*[` + strings.Join(filters, " && ") + `] | order(createdAt desc)` + propertyProjection

	var views []propertyView
	if err := s.query(ctx, q, params, &views); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	ans := make([]models.Property, 0, len(views))
	for _, v := range views {
		ans = append(ans, v.model())
	}

	return ans, nil
}

func (s *Store) FindOwnerByEmail(ctx context.Context, email string) (models.Owner, error) {
	const q = `*[_type == "owner" && email == $email][0]` + ownerProjection

	var doc ownerDoc
	if err := s.query(ctx, q, map[string]any{"email": email}, &doc); err != nil {
		return models.Owner{}, err
	}

	return *doc.model(), nil
}

func (s *Store) CreateOwner(ctx context.Context, o *models.Owner) error {
	id := docID("owner", strings.ToLower(o.Email))

	err := s.create(ctx, ownerDoc{
		ID:      id,
		Type:    "owner",
		ClerkID: o.ExternalID,
		Name:    o.Name,
		Email:   o.Email,
		Phone:   o.Phone,
	})
	if err != nil {
		return err
	}

	o.ID = id

	return nil
}

// CreateProperty writes the location and the listing in one transaction
func (s *Store) CreateProperty(ctx context.Context, p *models.Property) error {
	if p.Location == nil {
		return fmt.Errorf("property location is required")
	}

	if p.ID == "" {
		p.ID = "property-" + uuid.NewString()
	}

	if p.Location.ID == "" {
		p.Location.ID = "location-" + uuid.NewString()
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	p.Location.Approved = false
	p.LocationID = p.Location.ID

	location := locationDoc{
		ID:      p.Location.ID,
		Type:    "location",
		City:    p.Location.City,
		State:   p.Location.State,
		Country: p.Location.Country,
	}

	ownerRef := ref(p.OwnerID)
	locationRef := ref(p.Location.ID)

	doc := propertyDoc{
		ID:             p.ID,
		Type:           "property",
		Title:          p.Title,
		Description:    p.Description,
		Price:          p.Price,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		Size:           p.Size,
		PropertyType:   p.PropertyType,
		Amenities:      p.Amenities,
		TargetAudience: p.TargetAudience,
		Available:      p.Available,
		Featured:       p.Featured,
		CreatedAt:      formatTime(p.CreatedAt),
		OwnerRef:       &ownerRef,
		LocationRef:    &locationRef,
	}

	for _, img := range p.Images {
		doc.Images = append(doc.Images, imageDoc{
			Type:  "image",
			Key:   uuid.NewString()[:12],
			Asset: ref(img.Asset.Ref),
		})
	}

	_, err := s.client.Mutate(ctx, Mutation{Create: location}, Mutation{Create: doc})

	return mapError(err)
}

func (s *Store) ApproveProperty(ctx context.Context, id string, a models.Approval) (models.Property, error) {
	p, err := s.GetProperty(ctx, id)
	if err != nil {
		return models.Property{}, err
	}

	if a.ApprovedAt.IsZero() {
		a.ApprovedAt = time.Now().UTC()
	}

	mutations := []Mutation{{
		Patch: &Patch{ID: id, Set: map[string]any{
			"approvalDetails": approvalDoc{
				ApprovedBy:     a.ApprovedBy,
				ApprovedAt:     formatTime(a.ApprovedAt),
				ApprovalSource: a.Source,
			},
		}},
	}}

	if p.LocationID != "" {
		mutations = append(mutations, Mutation{
			Patch: &Patch{ID: p.LocationID, Set: map[string]any{"approved": true}},
		})
	}

	if _, err := s.client.Mutate(ctx, mutations...); err != nil {
		return models.Property{}, mapError(err)
	}

	return s.GetProperty(ctx, id)
}

func (s *Store) FindInterest(ctx context.Context, userID, propertyID string) (models.Interest, error) {
	const q = `*[_type == "interest" && user._ref == $userId && property._ref == $propertyId][0]` + interestProjection

	var v interestView
	if err := s.query(ctx, q, map[string]any{"userId": userID, "propertyId": propertyID}, &v); err != nil {
		return models.Interest{}, err
	}

	return v.model(), nil
}

func (s *Store) CreateInterest(ctx context.Context, i *models.Interest) error {
	if i.Status == "" {
		i.Status = models.InterestStatusPending
	}

	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}

	id := docID("interest", i.UserID, i.PropertyID)
	userRef := ref(i.UserID)
	propertyRef := ref(i.PropertyID)

	err := s.create(ctx, interestDoc{
		ID:        id,
		Type:      "interest",
		User:      &userRef,
		Property:  &propertyRef,
		Status:    i.Status,
		CreatedAt: formatTime(i.CreatedAt),
	})
	if err != nil {
		return err
	}

	i.ID = id

	return nil
}

func (s *Store) ListInterests(ctx context.Context, iq models.InterestQuery) ([]models.InterestView, error) {
	filters := []string{`_type == "interest"`}
	params := map[string]any{}

	if iq.PropertyID != "" {
		filters = append(filters, `property._ref == $propertyId`)
		params["propertyId"] = iq.PropertyID
	}

	if iq.UserID != "" {
		filters = append(filters, `user._ref == $userId`)
		params["userId"] = iq.UserID
	}

	q := `*[` + strings.Join(filters, " && ") + `] | order(createdAt desc)` + interestProjection

	var views []interestView
	if err := s.query(ctx, q, params, &views); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	ans := make([]models.InterestView, 0, len(views))

	for _, v := range views {
		view := models.InterestView{Interest: v.model(), PropertyTitle: v.PropertyTitle}
		if v.User != nil {
			view.User = v.User.model()
		}

		ans = append(ans, view)
	}

	return ans, nil
}

// UploadImage stores the image as a Sanity asset
func (s *Store) UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (models.ImageRef, error) {
	asset, err := s.client.UploadImage(ctx, filename, contentType, body)
	if err != nil {
		return models.ImageRef{}, err
	}

	return models.NewImageRef(asset.ID, asset.URL), nil
}

func (s *Store) query(ctx context.Context, q string, params map[string]any, out any) error {
	return mapError(s.client.Query(ctx, q, params, out))
}

func (s *Store) create(ctx context.Context, doc any) error {
	_, err := s.client.Mutate(ctx, Mutation{Create: doc})

	return mapError(err)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoResult):
		return models.ErrNotFound
	case IsConflict(err):
		return fmt.Errorf("%w: %v", models.ErrAlreadyExists, err)
	default:
		return err
	}
}
