package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/models"
)

var (
	ErrAuthRequired = errors.New("sign in required")
	ErrSelfInterest = errors.New("cannot show interest in own property")
	ErrBusy         = errors.New("submission in progress")
)

// already-interested marker returned by the API
const alreadyInterested = "Already interested"

// Identity is the signed-in session as seen by the caller
type Identity interface {
	// Principal returns the current principal, if any
	Principal(ctx context.Context) (models.Principal, bool)
	// SignIn starts the provider's sign-in flow
	SignIn(ctx context.Context) error
}

// Interester is the part of the API the action needs
type Interester interface {
	ExpressInterest(ctx context.Context, req models.InterestRequest) (models.InterestResponse, error)
	InterestStatus(ctx context.Context, userID, propertyID string) (bool, error)
}

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeAlreadyInterested
	OutcomeSignInRequired
	OutcomeSelfInterest
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyInterested:
		return "already_interested"
	case OutcomeSignInRequired:
		return "sign_in_required"
	case OutcomeSelfInterest:
		return "self_interest"
	case OutcomeBusy:
		return "busy"
	default:
		return "failed"
	}
}

// Message is the text shown to the user
func (o Outcome) Message() string {
	switch o {
	case OutcomeCreated:
		return "Interest shown successfully"
	case OutcomeAlreadyInterested:
		return "You have already shown interest"
	case OutcomeSignInRequired:
		return "Please sign in to show interest"
	case OutcomeSelfInterest:
		return "You cannot show interest in your own property"
	case OutcomeBusy:
		return "Processing..."
	default:
		return "Failed to show interest. Please try again."
	}
}

// InterestAction holds the state of one interest control for a
// (property, owner) pair
type InterestAction struct {
	api        Interester
	identity   Identity
	propertyID string
	ownerID    string
	onCreated  func()
	logger     *zap.Logger

	mu         sync.Mutex
	interested bool
	busy       bool
}

type ActionOption func(*InterestAction)

// OnCreated registers a callback run after a new interest is recorded
func OnCreated(fn func()) ActionOption {
	return func(a *InterestAction) {
		a.onCreated = fn
	}
}

func WithLogger(l *zap.Logger) ActionOption {
	return func(a *InterestAction) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewInterestAction(api Interester, identity Identity, propertyID, ownerID string, opts ...ActionOption) (*InterestAction, error) {
	propertyID = strings.TrimSpace(propertyID)
	ownerID = strings.TrimSpace(ownerID)

	if propertyID == "" || ownerID == "" {
		return nil, errors.New("property id and owner id are required")
	}

	a := &InterestAction{
		api:        api,
		identity:   identity,
		propertyID: propertyID,
		ownerID:    ownerID,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

func (a *InterestAction) Interested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.interested
}

func (a *InterestAction) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.busy
}

// Visible reports whether the control should be offered at all. Owners
// never see it on their own listing.
func (a *InterestAction) Visible(ctx context.Context) bool {
	p, ok := a.identity.Principal(ctx)

	return !ok || p.ID != a.ownerID
}

// Refresh loads the current interest state. Failures are logged and leave
// the action not interested.
func (a *InterestAction) Refresh(ctx context.Context) {
	p, ok := a.identity.Principal(ctx)
	if !ok {
		return
	}

	interested, err := a.api.InterestStatus(ctx, p.ID, a.propertyID)
	if err != nil {
		a.logger.Warn("failed to check interest",
			zap.String("property_id", a.propertyID),
			zap.Error(err),
		)

		interested = false
	}

	a.mu.Lock()
	a.interested = interested
	a.mu.Unlock()
}

// Submit expresses interest for the current principal. A nil error means
// the principal is now interested, whether or not this call created it.
func (a *InterestAction) Submit(ctx context.Context) (Outcome, error) {
	p, ok := a.identity.Principal(ctx)
	if !ok {
		if err := a.identity.SignIn(ctx); err != nil {
			a.logger.Warn("failed to start sign in", zap.Error(err))
		}

		return OutcomeSignInRequired, ErrAuthRequired
	}

	if p.ID == a.ownerID {
		return OutcomeSelfInterest, ErrSelfInterest
	}

	a.mu.Lock()

	if a.busy {
		a.mu.Unlock()
		return OutcomeBusy, ErrBusy
	}

	if a.interested {
		a.mu.Unlock()
		return OutcomeAlreadyInterested, nil
	}

	a.busy = true
	a.mu.Unlock()

	resp, err := a.api.ExpressInterest(ctx, models.InterestRequest{
		UserID:     p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Phone:      p.Phone,
		PropertyID: a.propertyID,
	})

	outcome, err := a.settle(resp, err)

	if outcome == OutcomeCreated && a.onCreated != nil {
		a.onCreated()
	}

	return outcome, err
}

func (a *InterestAction) settle(resp models.InterestResponse, err error) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.busy = false

	switch {
	case err != nil:
		a.logger.Error("failed to show interest", zap.String("property_id", a.propertyID), zap.Error(err))
		return OutcomeFailed, fmt.Errorf("express interest: %w", err)
	case resp.Success:
		a.interested = true
		return OutcomeCreated, nil
	case resp.Message == alreadyInterested:
		a.interested = true
		return OutcomeAlreadyInterested, nil
	default:
		return OutcomeFailed, fmt.Errorf("express interest: unexpected response %q", resp.Message)
	}
}
