package models

import "time"

// Location holds the address facets of a listing. A listing is publicly
// visible only once its location is approved.
type Location struct {
	ID       string `json:"id"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Approved bool   `json:"approved"`
}

// Approval records who approved a listing and when
type Approval struct {
	ApprovedBy string    `json:"approvedBy"`
	ApprovedAt time.Time `json:"approvedAt"`
	Source     string    `json:"approvalSource"`
}

// ImageAsset is a reference to an uploaded binary
type ImageAsset struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

// ImageRef is how a property points at one of its images
type ImageRef struct {
	Type  string     `json:"_type"`
	Asset ImageAsset `json:"asset"`
	URL   string     `json:"url,omitempty"`
}

// NewImageRef builds an image reference for the given asset id
func NewImageRef(ref, url string) ImageRef {
	return ImageRef{
		Type:  "image",
		Asset: ImageAsset{Type: "reference", Ref: ref},
		URL:   url,
	}
}

type Property struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Price          float64    `json:"price"`
	Bedrooms       int        `json:"bedrooms"`
	Bathrooms      int        `json:"bathrooms"`
	Size           float64    `json:"size"`
	PropertyType   string     `json:"propertyType"`
	Amenities      []string   `json:"amenities"`
	TargetAudience []string   `json:"targetAudience"`
	Images         []ImageRef `json:"images"`
	Available      bool       `json:"available"`
	Featured       bool       `json:"featured"`
	OwnerID        string     `json:"ownerId"`
	Owner          *Owner     `json:"owner,omitempty"`
	LocationID     string     `json:"locationId"`
	Location       *Location  `json:"location,omitempty"`
	Approval       *Approval  `json:"approvalDetails,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Approved reports whether the listing is publicly visible
func (p *Property) Approved() bool {
	return p.Location != nil && p.Location.Approved
}

// PropertyQuery narrows ListProperties. Zero values mean "any".
type PropertyQuery struct {
	Approved *bool
	OwnerID  string
}
