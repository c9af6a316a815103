// Package auth resolves the Clerk session behind a request into a
// models.Principal and guards routes that need one.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerkinc/clerk-sdk-go/clerk"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/models"
)

// ContextKey is used to store the principal in the request context
type ContextKey string

const (
	PrincipalKey ContextKey = "principal"
	// AuthHeaderName is the name of the authentication header
	AuthHeaderName = "Authorization"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Verifier turns a session token into the principal it belongs to
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Principal, error)
}

// ClerkVerifier verifies Clerk session tokens and reads the user profile
type ClerkVerifier struct {
	client clerk.Client
}

func NewClerkVerifier(secretKey string) (*ClerkVerifier, error) {
	client, err := clerk.NewClient(secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Clerk client: %w", err)
	}

	return &ClerkVerifier{client: client}, nil
}

func (v *ClerkVerifier) Verify(_ context.Context, token string) (models.Principal, error) {
	claims, err := v.client.VerifyToken(token)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return models.Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	user, err := v.client.Users().Read(claims.Subject)
	if err != nil {
		return models.Principal{}, fmt.Errorf("read clerk user %s: %w", claims.Subject, err)
	}

	return principalFromUser(user), nil
}

func principalFromUser(u *clerk.User) models.Principal {
	p := models.Principal{ID: u.ID}

	var names []string

	if u.FirstName != nil && *u.FirstName != "" {
		names = append(names, *u.FirstName)
	}

	if u.LastName != nil && *u.LastName != "" {
		names = append(names, *u.LastName)
	}

	p.Name = strings.Join(names, " ")

	for _, e := range u.EmailAddresses {
		if u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			p.Email = e.EmailAddress
			break
		}
	}

	if p.Email == "" && len(u.EmailAddresses) > 0 {
		p.Email = u.EmailAddresses[0].EmailAddress
	}

	if len(u.PhoneNumbers) > 0 {
		p.Phone = u.PhoneNumbers[0].PhoneNumber
	}

	return p
}

// Middleware attaches the principal to requests. A nil verifier means
// authentication is not configured: optional routes run anonymously and
// protected routes answer 401.
type Middleware struct {
	verifier Verifier
	admins   map[string]struct{}
	logger   *zap.Logger
}

func NewMiddleware(verifier Verifier, adminEmails []string, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	admins := make(map[string]struct{}, len(adminEmails))

	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}

	if verifier == nil {
		logger.Warn("authentication disabled, no identity provider configured")
	}

	return &Middleware{
		verifier: verifier,
		admins:   admins,
		logger:   logger,
	}
}

// IsAdmin reports whether the principal's email is an admin address
func (m *Middleware) IsAdmin(p models.Principal) bool {
	if m == nil || p.Email == "" {
		return false
	}

	_, ok := m.admins[strings.ToLower(p.Email)]

	return ok
}

// Optional authenticates the request when it carries a token. A bad token
// is still rejected.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)

		switch {
		case errors.Is(err, ErrMissingToken):
			next.ServeHTTP(w, r)
		case err != nil:
			m.reject(w, r, err)
		default:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		}
	})
}

// Required rejects requests without a valid session
func (m *Middleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Admin is Required plus an admin email check
func (m *Middleware) Admin(next http.Handler) http.Handler {
	return m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		if !m.IsAdmin(p) {
			m.logger.Info("admin access denied", zap.String("user_id", p.ID), zap.String("path", r.URL.Path))
			sendError(w, http.StatusForbidden, "Forbidden: admin access required")

			return
		}

		next.ServeHTTP(w, r)
	}))
}

func (m *Middleware) authenticate(r *http.Request) (models.Principal, error) {
	header := r.Header.Get(AuthHeaderName)
	if header == "" {
		return models.Principal{}, ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return models.Principal{}, fmt.Errorf("%w: invalid authorization format", ErrInvalidToken)
	}

	if m.verifier == nil {
		return models.Principal{}, errors.New("authentication not configured")
	}

	return m.verifier.Verify(r.Context(), parts[1])
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Info("authentication failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	switch {
	case errors.Is(err, ErrMissingToken):
		sendError(w, http.StatusUnauthorized, "Unauthorized: missing authorization header")
	case errors.Is(err, ErrInvalidToken):
		sendError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
	default:
		sendError(w, http.StatusUnauthorized, "Unauthorized")
	}
}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom extracts the principal from the request context
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(models.Principal)
	return p, ok
}

// GetUserID extracts the principal id from the request context
func GetUserID(ctx context.Context) (string, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", errors.New("user not authenticated")
	}

	return p.ID, nil
}

func sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(models.APIError{Error: message})
}
