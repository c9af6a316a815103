// Package client is the caller side of the interest workflow: an HTTP API
// client and the stateful action behind an "I'm interested" control.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/housinglord/housing-lord/models"
)

const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Message)
}

// TokenSource returns the session token sent as a bearer token. An empty
// token sends no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// API talks to the housing-lord HTTP API
type API struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

type APIOption func(*API)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) {
		if c != nil {
			a.httpClient = c
		}
	}
}

func WithTokenSource(ts TokenSource) APIOption {
	return func(a *API) {
		a.token = ts
	}
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ExpressInterest posts to /api/interested. A duplicate is a 200 with
// Success false, not an error.
func (a *API) ExpressInterest(ctx context.Context, req models.InterestRequest) (models.InterestResponse, error) {
	var ans models.InterestResponse

	if err := a.do(ctx, http.MethodPost, "/api/interested", req, &ans); err != nil {
		return models.InterestResponse{}, err
	}

	return ans, nil
}

// InterestStatus asks whether the user already expressed interest
func (a *API) InterestStatus(ctx context.Context, userID, propertyID string) (bool, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("propertyId", propertyID)

	var ans models.InterestStatusResponse

	if err := a.do(ctx, http.MethodGet, "/api/interested?"+q.Encode(), nil, &ans); err != nil {
		return false, err
	}

	return ans.Interested, nil
}

func (a *API) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if a.token != nil {
		token, err := a.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get session token: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr models.APIError

		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}

		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
