// Package notify composes and delivers the emails that follow domain events:
// a new interest in a listing, and a listing being approved. Delivery is
// best effort; callers never see a delivery failure.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Task types double as notification kinds
const (
	TypeInterest = "notify:interest"
	TypeApproval = "notify:approval"
)

var (
	ErrNoRecipients = errors.New("notification has no recipients")
	ErrUnknownType  = errors.New("unknown notification type")
	ErrQueueFull    = errors.New("notification queue is full")
	ErrClosed       = errors.New("dispatcher is closed")
)

// InterestNotice is everything the owner and admin need to follow up on an
// interest without looking at the store
type InterestNotice struct {
	PropertyID    string `json:"propertyId"`
	PropertyTitle string `json:"propertyTitle"`
	OwnerName     string `json:"ownerName"`
	OwnerEmail    string `json:"ownerEmail"`
	UserName      string `json:"userName"`
	UserEmail     string `json:"userEmail"`
	UserPhone     string `json:"userPhone"`
}

type ApprovalNotice struct {
	PropertyID    string    `json:"propertyId"`
	PropertyTitle string    `json:"propertyTitle"`
	OwnerName     string    `json:"ownerName"`
	OwnerEmail    string    `json:"ownerEmail"`
	ApprovedBy    string    `json:"approvedBy"`
	ApprovedAt    time.Time `json:"approvedAt"`
}

// Notification is the unit of work handed to a Dispatcher
type Notification struct {
	Type     string          `json:"type"`
	Interest *InterestNotice `json:"interest,omitempty"`
	Approval *ApprovalNotice `json:"approval,omitempty"`
}

func NewInterest(n InterestNotice) Notification {
	return Notification{Type: TypeInterest, Interest: &n}
}

func NewApproval(n ApprovalNotice) Notification {
	return Notification{Type: TypeApproval, Approval: &n}
}

// Validate checks that the payload matches the type
func (n *Notification) Validate() error {
	switch n.Type {
	case TypeInterest:
		if n.Interest == nil {
			return fmt.Errorf("%s: missing interest payload", n.Type)
		}
	case TypeApproval:
		if n.Approval == nil {
			return fmt.Errorf("%s: missing approval payload", n.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, n.Type)
	}

	return nil
}

func (n *Notification) PropertyID() string {
	switch {
	case n.Interest != nil:
		return n.Interest.PropertyID
	case n.Approval != nil:
		return n.Approval.PropertyID
	default:
		return ""
	}
}

// Encode serializes a notification as a task payload
func Encode(n Notification) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	return json.Marshal(n)
}

// Decode is the inverse of Encode
func Decode(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	if err := n.Validate(); err != nil {
		return Notification{}, err
	}

	return n, nil
}

// Dispatcher accepts notifications for asynchronous delivery. A nil error
// only means the notification was accepted, not that it was delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
