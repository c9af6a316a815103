package sanity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/housinglord/housing-lord/models"
)

type reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

func ref(id string) reference {
	return reference{Type: "reference", Ref: id}
}

type userDoc struct {
	ID        string `json:"_id"`
	Type      string `json:"_type,omitempty"`
	ClerkID   string `json:"clerkId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"createdAt"`
}

func (d userDoc) model() models.User {
	return models.User{
		ID:         d.ID,
		ExternalID: d.ClerkID,
		Name:       d.Name,
		Email:      d.Email,
		Phone:      d.Phone,
		CreatedAt:  parseTime(d.CreatedAt),
	}
}

type ownerDoc struct {
	ID      string `json:"_id"`
	Type    string `json:"_type,omitempty"`
	ClerkID string `json:"clerkId,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

func (d *ownerDoc) model() *models.Owner {
	if d == nil {
		return nil
	}

	return &models.Owner{ID: d.ID, ExternalID: d.ClerkID, Name: d.Name, Email: d.Email, Phone: d.Phone}
}

type locationDoc struct {
	ID       string `json:"_id"`
	Type     string `json:"_type,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Approved bool   `json:"approved"`
}

func (d *locationDoc) model() *models.Location {
	if d == nil {
		return nil
	}

	return &models.Location{ID: d.ID, City: d.City, State: d.State, Country: d.Country, Approved: d.Approved}
}

type approvalDoc struct {
	ApprovedBy     string `json:"approvedBy"`
	ApprovedAt     string `json:"approvedAt"`
	ApprovalSource string `json:"approvalSource"`
}

type imageDoc struct {
	Type  string    `json:"_type"`
	Key   string    `json:"_key,omitempty"`
	Asset reference `json:"asset"`
	URL   string    `json:"url,omitempty"`
}

type propertyDoc struct {
	ID              string       `json:"_id"`
	Type            string       `json:"_type,omitempty"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Price           float64      `json:"price"`
	Bedrooms        int          `json:"bedrooms"`
	Bathrooms       int          `json:"bathrooms"`
	Size            float64      `json:"size"`
	PropertyType    string       `json:"propertyType"`
	Amenities       []string     `json:"amenities"`
	TargetAudience  []string     `json:"targetAudience"`
	Images          []imageDoc   `json:"images"`
	Available       bool         `json:"available"`
	Featured        bool         `json:"featured"`
	CreatedAt       string       `json:"createdAt"`
	ApprovalDetails *approvalDoc `json:"approvalDetails,omitempty"`

	OwnerRef    *reference `json:"owner,omitempty"`
	LocationRef *reference `json:"location,omitempty"`
}

// propertyView is the read shape produced by propertyProjection, with the
// owner and location references dereferenced
type propertyView struct {
	propertyDoc
	Owner    *ownerDoc    `json:"owner"`
	Location *locationDoc `json:"location"`
}

func (v propertyView) model() models.Property {
	p := models.Property{
		ID:             v.ID,
		Title:          v.Title,
		Description:    v.Description,
		Price:          v.Price,
		Bedrooms:       v.Bedrooms,
		Bathrooms:      v.Bathrooms,
		Size:           v.Size,
		PropertyType:   v.PropertyType,
		Amenities:      v.Amenities,
		TargetAudience: v.TargetAudience,
		Available:      v.Available,
		Featured:       v.Featured,
		CreatedAt:      parseTime(v.CreatedAt),
		Owner:          v.Owner.model(),
		Location:       v.Location.model(),
	}

	for _, img := range v.Images {
		p.Images = append(p.Images, models.NewImageRef(img.Asset.Ref, img.URL))
	}

	if p.Owner != nil {
		p.OwnerID = p.Owner.ID
	}

	if p.Location != nil {
		p.LocationID = p.Location.ID
	}

	if a := v.ApprovalDetails; a != nil {
		p.Approval = &models.Approval{
			ApprovedBy: a.ApprovedBy,
			ApprovedAt: parseTime(a.ApprovedAt),
			Source:     a.ApprovalSource,
		}
	}

	return p
}

type interestDoc struct {
	ID        string     `json:"_id"`
	Type      string     `json:"_type,omitempty"`
	User      *reference `json:"user,omitempty"`
	Property  *reference `json:"property,omitempty"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"createdAt"`
}

type interestView struct {
	ID            string   `json:"_id"`
	UserID        string   `json:"userId"`
	PropertyID    string   `json:"propertyId"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"createdAt"`
	User          *userDoc `json:"user"`
	PropertyTitle string   `json:"propertyTitle"`
}

func (v interestView) model() models.Interest {
	return models.Interest{
		ID:         v.ID,
		UserID:     v.UserID,
		PropertyID: v.PropertyID,
		Status:     v.Status,
		CreatedAt:  parseTime(v.CreatedAt),
	}
}

// docID derives a stable document id so that creating the same logical
// document twice collides on _id
func docID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))

	return prefix + "-" + hex.EncodeToString(sum[:16])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}
