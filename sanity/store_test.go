package sanity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/models"
)

// fakeLake records mutations, rejects duplicate creates the way the API does
// and answers queries from a caller supplied function
type fakeLake struct {
	mu        sync.Mutex
	ids       map[string]bool
	mutations []Mutation
	queries   []queryRequest
	answer    func(q queryRequest) any
}

func newFakeLake(t *testing.T) (*fakeLake, *Store) {
	t.Helper()

	lake := &fakeLake{ids: map[string]bool{}, answer: func(queryRequest) any { return nil }}

	srv := httptest.NewServer(lake)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Dataset: "test", Token: "secret"})
	require.NoError(t, err)

	return lake, NewStore(client)
}

func (f *fakeLake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Unauthorized","message":"bad token"}`)

		return
	}

	switch {
	case r.URL.Path == "/v2025-04-03/data/query/test":
		var q queryRequest
		_ = json.NewDecoder(r.Body).Decode(&q)
		f.queries = append(f.queries, q)

		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.answer(q)})
	case r.URL.Path == "/v2025-04-03/data/mutate/test":
		var req struct {
			Mutations []map[string]json.RawMessage `json:"mutations"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		var results []MutationResult

		for _, m := range req.Mutations {
			if raw, ok := m["create"]; ok {
				var doc struct {
					ID string `json:"_id"`
				}
				_ = json.Unmarshal(raw, &doc)

				if f.ids[doc.ID] {
					w.WriteHeader(http.StatusConflict)
					_, _ = io.WriteString(w, `{"error":{"type":"mutationError","description":"Document by ID \"`+doc.ID+`\" already exists"}}`)

					return
				}

				f.ids[doc.ID] = true
				f.mutations = append(f.mutations, Mutation{Create: json.RawMessage(raw)})
				results = append(results, MutationResult{ID: doc.ID, Operation: "create"})
			}

			if raw, ok := m["patch"]; ok {
				var p Patch
				_ = json.Unmarshal(raw, &p)
				f.mutations = append(f.mutations, Mutation{Patch: &p})
				results = append(results, MutationResult{ID: p.ID, Operation: "update"})
			}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"transactionId": "tx1", "results": results})
	case r.URL.Path == "/v2025-04-03/assets/images/test":
		body, _ := io.ReadAll(r.Body)

		_ = json.NewEncoder(w).Encode(map[string]any{"document": map[string]any{
			"_id": "image-" + r.URL.Query().Get("filename") + "-" + r.Header.Get("Content-Type") + "-" + string(body),
			"url": "https://cdn.sanity.io/images/x.jpg",
		}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestCreateUserIsIdempotentPerExternalID(t *testing.T) {
	lake, s := newFakeLake(t)
	ctx := context.Background()

	u := models.User{ExternalID: "user_2abc", Name: "Ann"}
	require.NoError(t, s.CreateUser(ctx, &u))
	assert.Equal(t, docID("user", "user_2abc"), u.ID)

	again := models.User{ExternalID: "user_2abc", Name: "Ann"}
	err := s.CreateUser(ctx, &again)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
	assert.Empty(t, again.ID)

	assert.Len(t, lake.mutations, 1)
}

func TestCreateInterestIsIdempotentPerPair(t *testing.T) {
	lake, s := newFakeLake(t)
	ctx := context.Background()

	first := models.Interest{UserID: "user-1", PropertyID: "property-1"}
	require.NoError(t, s.CreateInterest(ctx, &first))
	assert.Equal(t, models.InterestStatusPending, first.Status)

	err := s.CreateInterest(ctx, &models.Interest{UserID: "user-1", PropertyID: "property-1"})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	other := models.Interest{UserID: "user-1", PropertyID: "property-2"}
	require.NoError(t, s.CreateInterest(ctx, &other))
	assert.NotEqual(t, first.ID, other.ID)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(lake.mutations[0].Create.(json.RawMessage), &doc))
	assert.Equal(t, "interest", doc["_type"])
	assert.Equal(t, map[string]any{"_type": "reference", "_ref": "property-1"}, doc["property"])
}

func TestFindUserNotFound(t *testing.T) {
	lake, s := newFakeLake(t)

	_, err := s.FindUserByExternalID(context.Background(), "user_x")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.Len(t, lake.queries, 1)
	assert.Contains(t, lake.queries[0].Query, `clerkId == $externalId`)
	assert.Equal(t, "user_x", lake.queries[0].Params["externalId"])
}

func TestGetPropertyDecodesProjection(t *testing.T) {
	lake, s := newFakeLake(t)

	lake.answer = func(queryRequest) any {
		return map[string]any{
			"_id":          "property-1",
			"title":        "Loft",
			"price":        15000,
			"bedrooms":     2,
			"propertyType": "apartment",
			"createdAt":    "2025-04-03T10:00:00Z",
			"images": []any{map[string]any{
				"_type": "image", "asset": map[string]any{"_type": "reference", "_ref": "image-1"}, "url": "https://cdn/x.jpg",
			}},
			"approvalDetails": map[string]any{"approvedBy": "Admin", "approvedAt": "2025-04-04T10:00:00Z", "approvalSource": "dashboard"},
			"owner":           map[string]any{"_id": "owner-1", "name": "Olga", "email": "olga@example.com"},
			"location":        map[string]any{"_id": "location-1", "city": "Pune", "approved": true},
		}
	}

	p, err := s.GetProperty(context.Background(), "property-1")
	require.NoError(t, err)

	assert.Equal(t, "Loft", p.Title)
	assert.Equal(t, "owner-1", p.OwnerID)
	assert.Equal(t, "olga@example.com", p.Owner.Email)
	assert.True(t, p.Approved())
	assert.Equal(t, "image-1", p.Images[0].Asset.Ref)
	assert.Equal(t, "https://cdn/x.jpg", p.Images[0].URL)
	require.NotNil(t, p.Approval)
	assert.Equal(t, "dashboard", p.Approval.Source)
	assert.Equal(t, 2025, p.CreatedAt.Year())
}

func TestListPropertiesFilters(t *testing.T) {
	lake, s := newFakeLake(t)
	lake.answer = func(queryRequest) any { return []any{} }

	approved := true

	got, err := s.ListProperties(context.Background(), models.PropertyQuery{Approved: &approved, OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Empty(t, got)

	q := lake.queries[0]
	assert.Contains(t, q.Query, `location->approved == $approved`)
	assert.Contains(t, q.Query, `owner._ref == $ownerId`)
	assert.Contains(t, q.Query, `drafts.**`)
	assert.Equal(t, true, q.Params["approved"])
}

func TestCreatePropertyWritesLocationAndListing(t *testing.T) {
	lake, s := newFakeLake(t)

	p := models.Property{
		Title:    "Loft",
		OwnerID:  "owner-1",
		Images:   []models.ImageRef{models.NewImageRef("image-1", "")},
		Location: &models.Location{City: "Pune", Approved: true},
	}
	require.NoError(t, s.CreateProperty(context.Background(), &p))

	require.Len(t, lake.mutations, 2)
	assert.False(t, p.Location.Approved)

	var loc, prop map[string]any
	require.NoError(t, json.Unmarshal(lake.mutations[0].Create.(json.RawMessage), &loc))
	require.NoError(t, json.Unmarshal(lake.mutations[1].Create.(json.RawMessage), &prop))

	assert.Equal(t, "location", loc["_type"])
	assert.Equal(t, false, loc["approved"])
	assert.Equal(t, map[string]any{"_type": "reference", "_ref": p.LocationID}, prop["location"])
	assert.Equal(t, map[string]any{"_type": "reference", "_ref": "owner-1"}, prop["owner"])
}

func TestApprovePropertyPatchesListingAndLocation(t *testing.T) {
	lake, s := newFakeLake(t)

	approved := false
	lake.answer = func(queryRequest) any {
		return map[string]any{
			"_id":      "property-1",
			"title":    "Loft",
			"location": map[string]any{"_id": "location-1", "approved": approved},
		}
	}

	_, err := s.ApproveProperty(context.Background(), "property-1", models.Approval{ApprovedBy: "Admin", Source: "dashboard"})
	require.NoError(t, err)

	require.Len(t, lake.mutations, 2)
	assert.Equal(t, "property-1", lake.mutations[0].Patch.ID)
	assert.Contains(t, lake.mutations[0].Patch.Set, "approvalDetails")
	assert.Equal(t, "location-1", lake.mutations[1].Patch.ID)
	assert.Equal(t, true, lake.mutations[1].Patch.Set["approved"])
}

func TestUploadImage(t *testing.T) {
	_, s := newFakeLake(t)

	img, err := s.UploadImage(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("data"))
	require.NoError(t, err)

	assert.Equal(t, "image", img.Type)
	assert.Equal(t, "reference", img.Asset.Type)
	assert.Equal(t, "image-a.jpg-image/jpeg-data", img.Asset.Ref)
	assert.Equal(t, "https://cdn.sanity.io/images/x.jpg", img.URL)
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"queryParseError","description":"unexpected token"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	var out any
	err = client.Query(context.Background(), "*[", nil, &out)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "queryParseError", apiErr.Type)
	assert.False(t, IsConflict(err))

	_, err = NewClient(Config{})
	assert.Error(t, err)
}
