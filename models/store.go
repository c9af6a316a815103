package models

import (
	"context"
	"io"
)

// UserStore manages user documents
type UserStore interface {
	// FindUserByExternalID returns ErrNotFound when no user mirrors the identity
	FindUserByExternalID(ctx context.Context, externalID string) (User, error)
	// CreateUser returns ErrAlreadyExists when the external id is taken
	CreateUser(ctx context.Context, user *User) error
}

// PropertyStore manages listings together with their owners and locations
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (Property, error)
	ListProperties(ctx context.Context, q PropertyQuery) ([]Property, error)
	FindOwnerByEmail(ctx context.Context, email string) (Owner, error)
	CreateOwner(ctx context.Context, owner *Owner) error
	// CreateProperty stores the listing and its location. The location is
	// created unapproved.
	CreateProperty(ctx context.Context, p *Property) error
	ApproveProperty(ctx context.Context, id string, approval Approval) (Property, error)
}

// InterestStore manages interest documents
type InterestStore interface {
	FindInterest(ctx context.Context, userID, propertyID string) (Interest, error)
	// CreateInterest returns ErrAlreadyExists when the (user, property) pair
	// already has an interest
	CreateInterest(ctx context.Context, interest *Interest) error
	ListInterests(ctx context.Context, q InterestQuery) ([]InterestView, error)
}

// Store is the document store the application runs on
type Store interface {
	UserStore
	PropertyStore
	InterestStore
	Close() error
}

// ImageUploader stores listing images
type ImageUploader interface {
	UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (ImageRef, error)
}
