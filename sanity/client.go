// Package sanity talks to the Sanity content lake over its HTTP API and
// implements models.Store on top of it.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIVersion = "2025-04-03"
	DefaultDataset    = "production"
)

// ErrNoResult is returned by Query when the query evaluates to null
var ErrNoResult = errors.New("sanity: query returned no result")

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode  int
	Type        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sanity: %d %s: %s", e.StatusCode, e.Type, e.Description)
}

// IsConflict reports whether err is a 409 from a create mutation on an
// existing document id
func IsConflict(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type Config struct {
	ProjectID  string
	Dataset    string
	Token      string
	APIVersion string
	// BaseURL overrides https://<project>.api.sanity.io
	BaseURL    string
	HTTPClient *http.Client
}

// Client represents a Sanity API client
type Client struct {
	baseURL    string
	dataset    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" && cfg.BaseURL == "" {
		return nil, errors.New("sanity: project id is required")
	}

	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/") + "/v" + strings.TrimPrefix(cfg.APIVersion, "v"),
		dataset:    cfg.Dataset,
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

type queryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

// Query evaluates a GROQ query and decodes its result into out
func (c *Client) Query(ctx context.Context, query string, params map[string]any, out any) error {
	var resp queryResponse

	if err := c.doJSON(ctx, http.MethodPost, "/data/query/"+c.dataset, nil, queryRequest{Query: query, Params: params}, &resp); err != nil {
		return err
	}

	if len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
		return ErrNoResult
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("sanity: failed to decode query result: %w", err)
	}

	return nil
}

// Patch sets fields on an existing document
type Patch struct {
	ID  string         `json:"id"`
	Set map[string]any `json:"set,omitempty"`
}

// Mutation holds exactly one operation
type Mutation struct {
	Create any    `json:"create,omitempty"`
	Patch  *Patch `json:"patch,omitempty"`
}

type MutationResult struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
}

type mutateRequest struct {
	Mutations []Mutation `json:"mutations"`
}

type mutateResponse struct {
	TransactionID string           `json:"transactionId"`
	Results       []MutationResult `json:"results"`
}

// Mutate applies mutations in a single transaction
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) ([]MutationResult, error) {
	var resp mutateResponse

	query := url.Values{}
	query.Set("returnIds", "true")
	query.Set("visibility", "sync")

	if err := c.doJSON(ctx, http.MethodPost, "/data/mutate/"+c.dataset, query, mutateRequest{Mutations: mutations}, &resp); err != nil {
		return nil, err
	}

	return resp.Results, nil
}

// Asset is an uploaded binary
type Asset struct {
	ID  string `json:"_id"`
	URL string `json:"url"`
}

type assetResponse struct {
	Document Asset `json:"document"`
}

// UploadImage stores body as an image asset
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (Asset, error) {
	query := url.Values{}
	if filename != "" {
		query.Set("filename", filename)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/assets/images/"+c.dataset, query, body)
	if err != nil {
		return Asset{}, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	var resp assetResponse
	if err := c.do(req, &resp); err != nil {
		return Asset{}, err
	}

	return resp.Document, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("sanity: failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("sanity: failed to marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, query, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sanity: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sanity: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("sanity: failed to decode response: %w", err)
	}

	return nil
}

func decodeError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
		Message string `json:"message"`
	}

	apiErr := &APIError{StatusCode: status}

	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Type = envelope.Error.Type
		apiErr.Description = envelope.Error.Description

		if apiErr.Description == "" {
			apiErr.Description = envelope.Message
		}
	}

	if apiErr.Description == "" {
		apiErr.Description = strings.TrimSpace(string(body))
	}

	return apiErr
}
