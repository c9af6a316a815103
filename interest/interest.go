// Package interest records a user's interest in a listing. At most one
// user exists per external identity and at most one interest per
// (user, property) pair, also under concurrent duplicate requests: creation
// is serialized per key by a lock.Locker and the store rejects duplicates.
package interest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcnijman/go-emailaddress"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/lock"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/notify"
	"github.com/housinglord/housing-lord/tlmt"
	"github.com/housinglord/housing-lord/tlmt/gonoop"
)

const (
	DefaultStoreTimeout = 5 * time.Second

	MessageAlreadyInterested = "Already interested"
)

var (
	ErrValidation = errors.New("invalid interest request")
	ErrStore      = errors.New("interest store failure")
)

// Result is the outcome of Express. A duplicate is a normal result with
// Success false, not an error.
type Result struct {
	Success    bool
	Message    string
	InterestID string
}

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

// Express finds or creates the user behind req, then records the interest
// once. Notification and telemetry are best effort and never fail the call.
func (s *Service) Express(ctx context.Context, req models.InterestRequest) (Result, error) {
	req, err := validate(req)
	if err != nil {
		return Result{}, err
	}

	log := s.logger.With(zap.String("user_external_id", req.UserID), zap.String("property_id", req.PropertyID))

	user, err := s.resolveUser(ctx, req)
	if err != nil {
		log.Error("failed to resolve user", zap.Error(err))
		return Result{}, err
	}

	interest, created, err := s.createOnce(ctx, user.ID, req.PropertyID)
	if err != nil {
		log.Error("failed to create interest", zap.Error(err))
		return Result{}, err
	}

	if !created {
		log.Info("interest already exists", zap.String("interest_id", interest.ID))
		return Result{Success: false, Message: MessageAlreadyInterested, InterestID: interest.ID}, nil
	}

	log.Info("interest created", zap.String("interest_id", interest.ID))

	s.notify(ctx, log, user, req, interest)
	s.track(ctx, log, req, interest)

	return Result{Success: true, InterestID: interest.ID}, nil
}

// Check reports whether the user with the given external id has already
// expressed interest in the property
func (s *Service) Check(ctx context.Context, externalID, propertyID string) (bool, error) {
	externalID = strings.TrimSpace(externalID)
	propertyID = strings.TrimSpace(propertyID)

	if externalID == "" || propertyID == "" {
		return false, fmt.Errorf("%w: userId and propertyId are required", ErrValidation)
	}

	var user models.User

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		user, err = s.store.FindUserByExternalID(ctx, externalID)
		return err
	})

	switch {
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.store.FindInterest(ctx, user.ID, propertyID)
		return err
	})

	switch {
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return true, nil
}

func validate(req models.InterestRequest) (models.InterestRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.UserID == "" || req.PropertyID == "" {
		return req, fmt.Errorf("%w: userId and propertyId are required", ErrValidation)
	}

	if req.Email != "" {
		if _, err := emailaddress.Parse(req.Email); err != nil {
			return req, fmt.Errorf("%w: invalid email %q", ErrValidation, req.Email)
		}
	}

	return req, nil
}

// resolveUser is find-or-create keyed on the external id
func (s *Service) resolveUser(ctx context.Context, req models.InterestRequest) (models.User, error) {
	unlock, err := s.locker.Lock(ctx, "user:"+req.UserID)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: lock user: %v", ErrStore, err)
	}
	defer unlock()

	var user models.User

	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		user, err = s.store.FindUserByExternalID(ctx, req.UserID)
		return err
	})

	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, models.ErrNotFound):
		return models.User{}, fmt.Errorf("%w: find user: %v", ErrStore, err)
	}

	user = models.User{
		ExternalID: req.UserID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		CreatedAt:  s.now(),
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateUser(ctx, &user)
	})

	if errors.Is(err, models.ErrAlreadyExists) {
		// another process won the race; read its record
		err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
			user, err = s.store.FindUserByExternalID(ctx, req.UserID)
			return err
		})
	}

	if err != nil {
		return models.User{}, fmt.Errorf("%w: create user: %v", ErrStore, err)
	}

	return user, nil
}

func (s *Service) createOnce(ctx context.Context, userID, propertyID string) (models.Interest, bool, error) {
	unlock, err := s.locker.Lock(ctx, "interest:"+userID+":"+propertyID)
	if err != nil {
		return models.Interest{}, false, fmt.Errorf("%w: lock interest: %v", ErrStore, err)
	}
	defer unlock()

	var existing models.Interest

	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		existing, err = s.store.FindInterest(ctx, userID, propertyID)
		return err
	})

	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, models.ErrNotFound):
		return models.Interest{}, false, fmt.Errorf("%w: find interest: %v", ErrStore, err)
	}

	interest := models.Interest{
		UserID:     userID,
		PropertyID: propertyID,
		Status:     models.InterestStatusPending,
		CreatedAt:  s.now(),
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateInterest(ctx, &interest)
	})

	switch {
	case errors.Is(err, models.ErrAlreadyExists):
		// another writer won; interest.ID was never stored
		err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
			existing, err = s.store.FindInterest(ctx, userID, propertyID)
			return err
		})
		if err != nil {
			return models.Interest{}, false, fmt.Errorf("%w: reload interest: %v", ErrStore, err)
		}

		return existing, false, nil
	case err != nil:
		return models.Interest{}, false, fmt.Errorf("%w: create interest: %v", ErrStore, err)
	}

	return interest, true, nil
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, user models.User, req models.InterestRequest, interest models.Interest) {
	var property models.Property

	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		property, err = s.store.GetProperty(ctx, interest.PropertyID)
		return err
	})
	if err != nil {
		log.Warn("notification skipped, property lookup failed", zap.Error(err))
		return
	}

	n := notify.InterestNotice{
		PropertyID:    property.ID,
		PropertyTitle: property.Title,
		UserName:      firstNonEmpty(req.Name, user.Name),
		UserEmail:     firstNonEmpty(req.Email, user.Email),
		UserPhone:     firstNonEmpty(req.Phone, user.Phone),
	}

	if property.Owner != nil {
		n.OwnerName = property.Owner.Name
		n.OwnerEmail = property.Owner.Email
	}

	if err := s.dispatcher.Dispatch(ctx, notify.NewInterest(n)); err != nil {
		log.Warn("failed to dispatch interest notification", zap.Error(err))
	}
}

func (s *Service) track(ctx context.Context, log *zap.Logger, req models.InterestRequest, interest models.Interest) {
	ev := tlmt.NewEvent(req.UserID, tlmt.EventInterestCreated, map[string]any{
		"property_id": interest.PropertyID,
		"interest_id": interest.ID,
	})

	if err := s.telemetry.Send(ctx, ev); err != nil {
		log.Debug("failed to send telemetry", zap.Error(err))
	}
}

func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return fn(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
