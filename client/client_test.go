package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/client"
	"github.com/housinglord/housing-lord/models"
)

type identity struct {
	principal *models.Principal
	signIns   int
}

func (i *identity) Principal(context.Context) (models.Principal, bool) {
	if i.principal == nil {
		return models.Principal{}, false
	}

	return *i.principal, true
}

func (i *identity) SignIn(context.Context) error {
	i.signIns++
	return nil
}

func signedIn(id string) *identity {
	return &identity{principal: &models.Principal{ID: id, Name: "Tia", Email: "tia@example.com", Phone: "123"}}
}

// fakeAPI serves /api/interested with the given POST responder
func fakeAPI(t *testing.T, interested bool, post func(w http.ResponseWriter, req models.InterestRequest)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	posts := &atomic.Int32{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/interested" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "p1", r.URL.Query().Get("propertyId"))
			_ = json.NewEncoder(w).Encode(models.InterestStatusResponse{Interested: interested})
		case http.MethodPost:
			posts.Add(1)

			var req models.InterestRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			post(w, req)
		}
	}))

	t.Cleanup(srv.Close)

	return srv, posts
}

func TestSubmitCreated(t *testing.T) {
	srv, posts := fakeAPI(t, false, func(w http.ResponseWriter, req models.InterestRequest) {
		assert.Equal(t, "user_1", req.UserID)
		assert.Equal(t, "tia@example.com", req.Email)
		assert.Equal(t, "p1", req.PropertyID)

		_ = json.NewEncoder(w).Encode(models.InterestResponse{Success: true})
	})

	var created int

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), signedIn("user_1"), "p1", "owner_1",
		client.OnCreated(func() { created++ }),
	)
	require.NoError(t, err)

	action.Refresh(context.Background())
	assert.False(t, action.Interested())

	outcome, err := action.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.OutcomeCreated, outcome)
	assert.Equal(t, "Interest shown successfully", outcome.Message())
	assert.True(t, action.Interested())
	assert.Equal(t, 1, created)

	outcome, err = action.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.OutcomeAlreadyInterested, outcome)
	assert.EqualValues(t, 1, posts.Load(), "interested state short-circuits")
}

func TestSubmitAlreadyInterested(t *testing.T) {
	srv, _ := fakeAPI(t, false, func(w http.ResponseWriter, _ models.InterestRequest) {
		_ = json.NewEncoder(w).Encode(models.InterestResponse{Success: false, Message: "Already interested"})
	})

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), signedIn("user_1"), "p1", "owner_1")
	require.NoError(t, err)

	outcome, err := action.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.OutcomeAlreadyInterested, outcome)
	assert.Equal(t, "You have already shown interest", outcome.Message())
	assert.True(t, action.Interested())
}

func TestSubmitFailure(t *testing.T) {
	srv, _ := fakeAPI(t, false, func(w http.ResponseWriter, _ models.InterestRequest) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.APIError{Error: "internal server error"})
	})

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), signedIn("user_1"), "p1", "owner_1")
	require.NoError(t, err)

	outcome, err := action.Submit(context.Background())
	require.Error(t, err)

	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "internal server error", statusErr.Message)

	assert.Equal(t, client.OutcomeFailed, outcome)
	assert.Equal(t, "Failed to show interest. Please try again.", outcome.Message())
	assert.False(t, action.Interested())
	assert.False(t, action.Busy())
}

func TestSubmitWithoutPrincipal(t *testing.T) {
	srv, posts := fakeAPI(t, false, nil)
	id := &identity{}

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), id, "p1", "owner_1")
	require.NoError(t, err)

	outcome, err := action.Submit(context.Background())
	assert.ErrorIs(t, err, client.ErrAuthRequired)
	assert.Equal(t, client.OutcomeSignInRequired, outcome)
	assert.Equal(t, 1, id.signIns)
	assert.Zero(t, posts.Load())
}

func TestSubmitOwnProperty(t *testing.T) {
	srv, posts := fakeAPI(t, false, nil)

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), signedIn("owner_1"), "p1", "owner_1")
	require.NoError(t, err)

	assert.False(t, action.Visible(context.Background()))

	outcome, err := action.Submit(context.Background())
	assert.ErrorIs(t, err, client.ErrSelfInterest)
	assert.Equal(t, "You cannot show interest in your own property", outcome.Message())
	assert.Zero(t, posts.Load())
}

func TestRefresh(t *testing.T) {
	srv, _ := fakeAPI(t, true, nil)

	action, err := client.NewInterestAction(client.NewAPI(srv.URL), signedIn("user_1"), "p1", "owner_1")
	require.NoError(t, err)

	action.Refresh(context.Background())
	assert.True(t, action.Interested())
}

type blockingAPI struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) ExpressInterest(context.Context, models.InterestRequest) (models.InterestResponse, error) {
	close(b.entered)
	<-b.release

	return models.InterestResponse{Success: true}, nil
}

func (b *blockingAPI) InterestStatus(context.Context, string, string) (bool, error) {
	return false, errors.New("unreachable")
}

func TestSubmitRejectsReentry(t *testing.T) {
	api := &blockingAPI{entered: make(chan struct{}), release: make(chan struct{})}

	action, err := client.NewInterestAction(api, signedIn("user_1"), "p1", "owner_1")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		outcome client.Outcome
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		outcome, _ = action.Submit(context.Background())
	}()

	<-api.entered
	assert.True(t, action.Busy())

	second, err := action.Submit(context.Background())
	assert.ErrorIs(t, err, client.ErrBusy)
	assert.Equal(t, client.OutcomeBusy, second)

	close(api.release)
	wg.Wait()

	assert.Equal(t, client.OutcomeCreated, outcome)
	assert.False(t, action.Busy())
}

func TestRefreshFailureIsNotInterested(t *testing.T) {
	api := &blockingAPI{}

	action, err := client.NewInterestAction(api, signedIn("user_1"), "p1", "owner_1")
	require.NoError(t, err)

	action.Refresh(context.Background())
	assert.False(t, action.Interested())
}

func TestNewInterestActionRequiresIDs(t *testing.T) {
	_, err := client.NewInterestAction(&blockingAPI{}, &identity{}, "", "owner_1")
	assert.Error(t, err)

	_, err = client.NewInterestAction(&blockingAPI{}, &identity{}, "p1", " ")
	assert.Error(t, err)
}

func TestAPISendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sess_123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.InterestStatusResponse{Interested: true})
	}))
	defer srv.Close()

	api := client.NewAPI(srv.URL+"/", client.WithTokenSource(func(context.Context) (string, error) {
		return "sess_123", nil
	}))

	ok, err := api.InterestStatus(context.Background(), "user_1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}
