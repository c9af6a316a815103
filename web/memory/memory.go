// Package memory is an in-process models.Store used for local runs and tests
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/housinglord/housing-lord/models"
)

type interestKey struct {
	userID     string
	propertyID string
}

type repo struct {
	mu *sync.RWMutex

	users      map[string]models.User
	byExternal map[string]string

	owners  map[string]models.Owner
	byEmail map[string]string

	locations  map[string]models.Location
	properties map[string]models.Property

	interests map[interestKey]models.Interest
}

var _ models.Store = (*repo)(nil)

func New() models.Store {
	return &repo{
		mu:         &sync.RWMutex{},
		users:      make(map[string]models.User),
		byExternal: make(map[string]string),
		owners:     make(map[string]models.Owner),
		byEmail:    make(map[string]string),
		locations:  make(map[string]models.Location),
		properties: make(map[string]models.Property),
		interests:  make(map[interestKey]models.Interest),
	}
}

func (r *repo) Close() error {
	return nil
}

func (r *repo) FindUserByExternalID(_ context.Context, externalID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return models.User{}, models.ErrNotFound
	}

	return r.users[id], nil
}

func (r *repo) CreateUser(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byExternal[u.ExternalID]; ok {
		return models.ErrAlreadyExists
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	if _, ok := r.users[u.ID]; ok {
		return models.ErrAlreadyExists
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.users[u.ID] = *u
	r.byExternal[u.ExternalID] = u.ID

	return nil
}

func (r *repo) GetProperty(_ context.Context, id string) (models.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.properties[id]
	if !ok {
		return models.Property{}, models.ErrNotFound
	}

	return r.resolve(p), nil
}

func (r *repo) ListProperties(_ context.Context, q models.PropertyQuery) ([]models.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make([]models.Property, 0, len(r.properties))

	for _, p := range r.properties {
		p = r.resolve(p)

		if q.Approved != nil && p.Approved() != *q.Approved {
			continue
		}

		if q.OwnerID != "" && p.OwnerID != q.OwnerID {
			continue
		}

		filtered = append(filtered, p)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return filtered, nil
}

func (r *repo) FindOwnerByEmail(_ context.Context, email string) (models.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return models.Owner{}, models.ErrNotFound
	}

	return r.owners[id], nil
}

func (r *repo) CreateOwner(_ context.Context, o *models.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[o.Email]; ok {
		return models.ErrAlreadyExists
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	r.owners[o.ID] = *o
	r.byEmail[o.Email] = o.ID

	return nil
}

func (r *repo) CreateProperty(_ context.Context, p *models.Property) error {
	if p.Location == nil {
		return fmt.Errorf("property location is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[p.OwnerID]; !ok {
		return fmt.Errorf("owner %s: %w", p.OwnerID, models.ErrNotFound)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if _, ok := r.properties[p.ID]; ok {
		return models.ErrAlreadyExists
	}

	if p.Location.ID == "" {
		p.Location.ID = uuid.NewString()
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	p.Location.Approved = false
	p.LocationID = p.Location.ID

	r.locations[p.Location.ID] = *p.Location

	stored := *p
	stored.Owner = nil
	stored.Location = nil
	stored.Amenities = slices.Clone(p.Amenities)
	stored.TargetAudience = slices.Clone(p.TargetAudience)
	stored.Images = slices.Clone(p.Images)

	r.properties[p.ID] = stored

	return nil
}

func (r *repo) ApproveProperty(_ context.Context, id string, a models.Approval) (models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.properties[id]
	if !ok {
		return models.Property{}, models.ErrNotFound
	}

	if a.ApprovedAt.IsZero() {
		a.ApprovedAt = time.Now().UTC()
	}

	p.Approval = &a
	r.properties[id] = p

	if l, ok := r.locations[p.LocationID]; ok {
		l.Approved = true
		r.locations[p.LocationID] = l
	}

	return r.resolve(p), nil
}

func (r *repo) FindInterest(_ context.Context, userID, propertyID string) (models.Interest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.interests[interestKey{userID: userID, propertyID: propertyID}]
	if !ok {
		return models.Interest{}, models.ErrNotFound
	}

	return i, nil
}

func (r *repo) CreateInterest(_ context.Context, i *models.Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interestKey{userID: i.UserID, propertyID: i.PropertyID}
	if _, ok := r.interests[key]; ok {
		return models.ErrAlreadyExists
	}

	if _, ok := r.users[i.UserID]; !ok {
		return fmt.Errorf("user %s: %w", i.UserID, models.ErrNotFound)
	}

	if i.ID == "" {
		i.ID = uuid.NewString()
	}

	if i.Status == "" {
		i.Status = models.InterestStatusPending
	}

	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}

	r.interests[key] = *i

	return nil
}

func (r *repo) ListInterests(_ context.Context, q models.InterestQuery) ([]models.InterestView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ans []models.InterestView

	for key, i := range r.interests {
		if q.PropertyID != "" && key.propertyID != q.PropertyID {
			continue
		}

		if q.UserID != "" && key.userID != q.UserID {
			continue
		}

		ans = append(ans, models.InterestView{
			Interest:      i,
			User:          r.users[i.UserID],
			PropertyTitle: r.properties[i.PropertyID].Title,
		})
	}

	sort.Slice(ans, func(a, b int) bool {
		if ans[a].CreatedAt.Equal(ans[b].CreatedAt) {
			return strings.Compare(ans[a].ID, ans[b].ID) < 0
		}

		return ans[a].CreatedAt.After(ans[b].CreatedAt)
	})

	return ans, nil
}

// resolve attaches copies of the owner and location. Callers hold r.mu.
func (r *repo) resolve(p models.Property) models.Property {
	if o, ok := r.owners[p.OwnerID]; ok {
		p.Owner = &o
	}

	if l, ok := r.locations[p.LocationID]; ok {
		p.Location = &l
	}

	if p.Approval != nil {
		a := *p.Approval
		p.Approval = &a
	}

	p.Amenities = slices.Clone(p.Amenities)
	p.TargetAudience = slices.Clone(p.TargetAudience)
	p.Images = slices.Clone(p.Images)

	return p
}
