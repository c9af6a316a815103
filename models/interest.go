package models

import "time"

const (
	InterestStatusPending = "pending"
)

// Interest records that a user wants to pursue a listing. There is at most
// one per (UserID, PropertyID) and it is never mutated after creation.
type Interest struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PropertyID string    `json:"propertyId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InterestView is an interest with its references resolved for dashboards
type InterestView struct {
	Interest
	User          User   `json:"user"`
	PropertyTitle string `json:"propertyTitle"`
}

// InterestQuery selects interests by property or by user (store user id)
type InterestQuery struct {
	PropertyID string
	UserID     string
}
