// Package listing serves the property catalogue: the public filtered
// listing, new listings pending approval, admin approval and the owner
// dashboard.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/lock"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/notify"
	"github.com/housinglord/housing-lord/tlmt"
	"github.com/housinglord/housing-lord/tlmt/gonoop"
)

const (
	DefaultStoreTimeout = 5 * time.Second

	ApprovalSource = "admin-dashboard"
)

var ErrForbidden = errors.New("not allowed")

type Service struct {
	store        models.Store
	dispatcher   notify.Dispatcher
	locker       lock.Locker
	telemetry    tlmt.Telemetry
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithTelemetry(t tlmt.Telemetry) Option {
	return func(s *Service) {
		if t != nil {
			s.telemetry = t
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func New(store models.Store, dispatcher notify.Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:        store,
		dispatcher:   dispatcher,
		locker:       lock.NewLocal(),
		telemetry:    gonoop.New(),
		logger:       zap.NewNop(),
		storeTimeout: DefaultStoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// List returns approved listings matching f, deduplicated by id
func (s *Service) List(ctx context.Context, f Filter) ([]models.Property, error) {
	approved := true

	var properties []models.Property

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		properties, err = s.store.ListProperties(ctx, models.PropertyQuery{Approved: &approved})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}

	return f.Apply(properties), nil
}

// Get returns any listing by id. Unapproved listings are visible too; the
// original detail page never checked approval.
func (s *Service) Get(ctx context.Context, id string) (models.Property, error) {
	var p models.Property

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		p, err = s.store.GetProperty(ctx, id)
		return err
	})

	return p, err
}

// Pending returns the listings waiting for approval
func (s *Service) Pending(ctx context.Context) ([]models.Property, error) {
	approved := false

	var properties []models.Property

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		properties, err = s.store.ListProperties(ctx, models.PropertyQuery{Approved: &approved})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pending properties: %w", err)
	}

	return properties, nil
}

// Create stores a new listing on behalf of principal. The owner is found by
// email or created, and the location starts unapproved.
func (s *Service) Create(ctx context.Context, principal models.Principal, req models.CreatePropertyRequest) (models.Property, error) {
	owner, err := s.resolveOwner(ctx, principal, req)
	if err != nil {
		return models.Property{}, err
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = "India"
	}

	p := models.Property{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Price:          req.Price,
		Bedrooms:       req.Bedrooms,
		Bathrooms:      req.Bathrooms,
		Size:           req.Size,
		PropertyType:   req.PropertyType,
		Amenities:      req.Amenities,
		TargetAudience: req.TargetAudience,
		Images:         req.Images,
		Available:      true,
		OwnerID:        owner.ID,
		Owner:          &owner,
		Location: &models.Location{
			City:    strings.TrimSpace(req.City),
			State:   strings.TrimSpace(req.State),
			Country: country,
		},
		CreatedAt: s.now(),
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateProperty(ctx, &p)
	})
	if err != nil {
		return models.Property{}, fmt.Errorf("create property: %w", err)
	}

	s.logger.Info("property created",
		zap.String("property_id", p.ID),
		zap.String("owner_id", owner.ID),
		zap.String("user_external_id", principal.ID),
	)

	s.track(ctx, principal.ID, tlmt.EventPropertyCreated, map[string]any{
		"property_id":   p.ID,
		"property_type": p.PropertyType,
		"city":          p.Location.City,
	})

	return p, nil
}

func (s *Service) resolveOwner(ctx context.Context, principal models.Principal, req models.CreatePropertyRequest) (models.Owner, error) {
	email := strings.ToLower(strings.TrimSpace(req.OwnerEmail))

	unlock, err := s.locker.Lock(ctx, "owner:"+email)
	if err != nil {
		return models.Owner{}, fmt.Errorf("lock owner: %w", err)
	}
	defer unlock()

	var owner models.Owner

	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		owner, err = s.store.FindOwnerByEmail(ctx, email)
		return err
	})

	switch {
	case err == nil:
		return owner, nil
	case !errors.Is(err, models.ErrNotFound):
		return models.Owner{}, fmt.Errorf("find owner: %w", err)
	}

	owner = models.Owner{
		Name:  strings.TrimSpace(req.OwnerName),
		Email: email,
		Phone: strings.TrimSpace(req.OwnerPhone),
	}

	if strings.EqualFold(principal.Email, email) {
		owner.ExternalID = principal.ID
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateOwner(ctx, &owner)
	})

	if errors.Is(err, models.ErrAlreadyExists) {
		err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
			owner, err = s.store.FindOwnerByEmail(ctx, email)
			return err
		})
	}

	if err != nil {
		return models.Owner{}, fmt.Errorf("create owner: %w", err)
	}

	return owner, nil
}

// Approve publishes a listing and tells its owner. Approving an approved
// listing returns it unchanged and sends nothing.
func (s *Service) Approve(ctx context.Context, id, adminName string) (models.Property, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Property{}, err
	}

	if p.Approved() {
		return p, nil
	}

	approval := models.Approval{
		ApprovedBy: adminName,
		ApprovedAt: s.now(),
		Source:     ApprovalSource,
	}

	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		p, err = s.store.ApproveProperty(ctx, id, approval)
		return err
	})
	if err != nil {
		return models.Property{}, fmt.Errorf("approve property: %w", err)
	}

	log := s.logger.With(zap.String("property_id", p.ID), zap.String("approved_by", adminName))
	log.Info("property approved")

	if p.Owner != nil {
		n := notify.NewApproval(notify.ApprovalNotice{
			PropertyID:    p.ID,
			PropertyTitle: p.Title,
			OwnerName:     p.Owner.Name,
			OwnerEmail:    p.Owner.Email,
			ApprovedBy:    adminName,
			ApprovedAt:    approval.ApprovedAt,
		})

		if err := s.dispatcher.Dispatch(ctx, n); err != nil {
			log.Warn("failed to dispatch approval notification", zap.Error(err))
		}
	}

	s.track(ctx, "", tlmt.EventPropertyApproved, map[string]any{"property_id": p.ID})

	return p, nil
}

// Interests lists the interests in a listing. Only its owner or an admin
// may see them.
func (s *Service) Interests(ctx context.Context, principal models.Principal, admin bool, propertyID string) ([]models.InterestView, error) {
	p, err := s.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if !admin && !owns(principal, p.Owner) {
		return nil, ErrForbidden
	}

	return s.listInterests(ctx, models.InterestQuery{PropertyID: propertyID})
}

// Dashboard returns the principal's own listings with their interests and
// the interests the principal has expressed
func (s *Service) Dashboard(ctx context.Context, principal models.Principal) (models.DashboardResponse, error) {
	ans := models.DashboardResponse{
		Listings:  []models.DashboardListing{},
		Interests: []models.InterestView{},
	}

	if principal.Email != "" {
		var owner models.Owner

		err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
			owner, err = s.store.FindOwnerByEmail(ctx, strings.ToLower(principal.Email))
			return err
		})

		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return ans, fmt.Errorf("find owner: %w", err)
		default:
			listings, err := s.ownerListings(ctx, owner.ID)
			if err != nil {
				return ans, err
			}

			ans.Listings = listings
		}
	}

	var user models.User

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		user, err = s.store.FindUserByExternalID(ctx, principal.ID)
		return err
	})

	switch {
	case errors.Is(err, models.ErrNotFound):
		return ans, nil
	case err != nil:
		return ans, fmt.Errorf("find user: %w", err)
	}

	ans.Interests, err = s.listInterests(ctx, models.InterestQuery{UserID: user.ID})
	if err != nil {
		return ans, err
	}

	return ans, nil
}

func (s *Service) ownerListings(ctx context.Context, ownerID string) ([]models.DashboardListing, error) {
	var properties []models.Property

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		properties, err = s.store.ListProperties(ctx, models.PropertyQuery{OwnerID: ownerID})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list owner properties: %w", err)
	}

	ans := make([]models.DashboardListing, 0, len(properties))

	for i := range properties {
		interests, err := s.listInterests(ctx, models.InterestQuery{PropertyID: properties[i].ID})
		if err != nil {
			return nil, err
		}

		ans = append(ans, models.DashboardListing{Property: properties[i], Interests: interests})
	}

	return ans, nil
}

func (s *Service) listInterests(ctx context.Context, q models.InterestQuery) ([]models.InterestView, error) {
	var views []models.InterestView

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		views, err = s.store.ListInterests(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}

	if views == nil {
		views = []models.InterestView{}
	}

	return views, nil
}

func (s *Service) track(ctx context.Context, distinctID, name string, props map[string]any) {
	if err := s.telemetry.Send(ctx, tlmt.NewEvent(distinctID, name, props)); err != nil {
		s.logger.Debug("failed to send telemetry", zap.String("event", name), zap.Error(err))
	}
}

func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return fn(ctx)
}

func owns(principal models.Principal, owner *models.Owner) bool {
	if owner == nil {
		return false
	}

	if owner.ExternalID != "" && owner.ExternalID == principal.ID {
		return true
	}

	return principal.Email != "" && strings.EqualFold(owner.Email, principal.Email)
}
