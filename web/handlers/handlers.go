package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/interest"
	"github.com/housinglord/housing-lord/listing"
	"github.com/housinglord/housing-lord/mailer"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/web/auth"
)

const (
	DefaultMaxUploadSize = 10 << 20

	maxBodySize = 1 << 20
)

// InterestService records and answers interest in listings.
type InterestService interface {
	Express(ctx context.Context, req models.InterestRequest) (interest.Result, error)
	Check(ctx context.Context, externalID, propertyID string) (bool, error)
}

// ListingService is the catalogue as the handlers need it.
type ListingService interface {
	List(ctx context.Context, f listing.Filter) ([]models.Property, error)
	Get(ctx context.Context, id string) (models.Property, error)
	Pending(ctx context.Context) ([]models.Property, error)
	Create(ctx context.Context, principal models.Principal, req models.CreatePropertyRequest) (models.Property, error)
	Approve(ctx context.Context, id, adminName string) (models.Property, error)
	Interests(ctx context.Context, principal models.Principal, admin bool, propertyID string) ([]models.InterestView, error)
	Dashboard(ctx context.Context, principal models.Principal) (models.DashboardResponse, error)
}

// Dependencies aggregates shared services used by handlers.
type Dependencies struct {
	Logger    *zap.Logger
	Interests InterestService
	Listings  ListingService
	Auth      *auth.Middleware
	// Mailer sends owner notifications synchronously. Nil disables the
	// notify-owner route.
	Mailer   mailer.Sender
	MailFrom string
	// Images stores uploads. Nil disables the upload route.
	Images        models.ImageUploader
	Validate      *validator.Validate
	MaxUploadSize int64
}

// HandlerGroup groups all handler categories for routing setup.
type HandlerGroup struct {
	Interest *InterestHandlers
	Property *PropertyHandlers
	Admin    *AdminHandlers
	Misc     *MiscHandlers
}

// NewHandlerGroup constructs a HandlerGroup with initialized handlers.
func NewHandlerGroup(deps Dependencies) *HandlerGroup {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.Validate == nil {
		deps.Validate = NewValidator()
	}

	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = DefaultMaxUploadSize
	}

	return &HandlerGroup{
		Interest: &InterestHandlers{Deps: deps},
		Property: &PropertyHandlers{Deps: deps},
		Admin:    &AdminHandlers{Deps: deps},
		Misc:     &MiscHandlers{Deps: deps},
	}
}

// InterestHandlers serves /api/interested.
type InterestHandlers struct{ Deps Dependencies }

// PropertyHandlers serves listings and the dashboard.
type PropertyHandlers struct{ Deps Dependencies }

// AdminHandlers serves the approval queue.
type AdminHandlers struct{ Deps Dependencies }

// MiscHandlers serves health, owner notification and uploads.
type MiscHandlers struct{ Deps Dependencies }

// NewValidator reports field errors by their JSON names
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}

	return strings.Join(msgs, "; ")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}

		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func renderError(w http.ResponseWriter, code int, message string) {
	renderJSON(w, code, models.APIError{Error: message})
}

func principal(r *http.Request) (models.Principal, bool) {
	return auth.PrincipalFrom(r.Context())
}
