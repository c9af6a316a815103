package models

// APIError is the body of every failed JSON response
type APIError struct {
	Error string `json:"error"`
}

// InterestRequest is the body of POST /api/interested
type InterestRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	PropertyID string `json:"propertyId"`
}

// InterestResponse is returned with status 200 for both created and
// duplicate interests
type InterestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// InterestStatusResponse answers GET /api/interested
type InterestStatusResponse struct {
	Interested bool `json:"interested"`
}

// NotifyOwnerRequest is the body of POST /api/notify-owner
type NotifyOwnerRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type NotifyOwnerResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// CreatePropertyRequest is the body of POST /api/properties
type CreatePropertyRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Description    string     `json:"description" validate:"max=5000"`
	Price          float64    `json:"price" validate:"gte=0"`
	Bedrooms       int        `json:"bedrooms" validate:"gte=0,lte=50"`
	Bathrooms      int        `json:"bathrooms" validate:"gte=0,lte=50"`
	Size           float64    `json:"size" validate:"gte=0"`
	PropertyType   string     `json:"propertyType" validate:"required,oneof=apartment house villa commercial"`
	Amenities      []string   `json:"amenities"`
	TargetAudience []string   `json:"targetAudience" validate:"dive,oneof=bachelor family both"`
	Images         []ImageRef `json:"images"`
	City           string     `json:"city" validate:"required"`
	State          string     `json:"state" validate:"required"`
	Country        string     `json:"country"`
	OwnerName      string     `json:"ownerName" validate:"required"`
	OwnerEmail     string     `json:"ownerEmail" validate:"required,email"`
	OwnerPhone     string     `json:"ownerPhone"`
}

// ApproveRequest is the optional body of PATCH /api/properties/{id}/approve
type ApproveRequest struct {
	AdminName string `json:"adminName"`
}

// DashboardResponse is returned by GET /api/dashboard
type DashboardResponse struct {
	Listings  []DashboardListing `json:"listings"`
	Interests []InterestView     `json:"interests"`
}

type DashboardListing struct {
	Property  Property       `json:"property"`
	Interests []InterestView `json:"interests"`
}
