package models

import (
	"time"
)

// Principal is the authenticated identity handed to us by the identity
// provider for the current session. It is never stored as-is.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// User mirrors a principal into the document store
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Owner is the contact behind a listing
type Owner struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}
