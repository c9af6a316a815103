package interest_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/interest"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/notify"
	"github.com/housinglord/housing-lord/storetest"
	"github.com/housinglord/housing-lord/web/memory"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recorder) Dispatch(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.sent = append(r.sent, n)

	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}

type failingStore struct {
	models.Store
	err error
}

func (f *failingStore) CreateInterest(context.Context, *models.Interest) error {
	return f.err
}

// lostRaceStore misses the first lookup and then loses the insert to a
// concurrent writer, the way SQL and Sanity stores report a conflict after
// assigning their own id
type lostRaceStore struct {
	models.Store
	winner  models.Interest
	lookups int
}

func (s *lostRaceStore) FindInterest(ctx context.Context, userID, propertyID string) (models.Interest, error) {
	s.lookups++
	if s.lookups == 1 {
		return models.Interest{}, models.ErrNotFound
	}

	return s.Store.FindInterest(ctx, userID, propertyID)
}

func (s *lostRaceStore) CreateInterest(ctx context.Context, i *models.Interest) error {
	s.winner = *i
	if err := s.Store.CreateInterest(ctx, &s.winner); err != nil {
		return err
	}

	i.ID = "never-stored"

	return models.ErrAlreadyExists
}

func request(userID, propertyID string) models.InterestRequest {
	return models.InterestRequest{
		UserID:     userID,
		Email:      "ann@example.com",
		Name:       "Ann",
		Phone:      "+91 99999 00000",
		PropertyID: propertyID,
	}
}

func TestExpressCreatesInterestAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	property := storetest.SeedProperty(t, store, "Sea View", "owner@example.com")

	rec := &recorder{}
	svc := interest.New(store, rec)

	res, err := svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.InterestID)

	user, err := store.FindUserByExternalID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)

	got, err := store.FindInterest(ctx, user.ID, property.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterestStatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	require.Equal(t, 1, rec.count())

	n := rec.sent[0]
	assert.Equal(t, notify.TypeInterest, n.Type)
	require.NotNil(t, n.Interest)
	assert.Equal(t, "Sea View", n.Interest.PropertyTitle)
	assert.Equal(t, "owner@example.com", n.Interest.OwnerEmail)
	assert.Equal(t, "ann@example.com", n.Interest.UserEmail)
	assert.Equal(t, "+91 99999 00000", n.Interest.UserPhone)
}

func TestExpressDuplicate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	property := storetest.SeedProperty(t, store, "Sea View", "owner@example.com")

	rec := &recorder{}
	svc := interest.New(store, rec)

	first, err := svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, interest.MessageAlreadyInterested, second.Message)
	assert.Equal(t, first.InterestID, second.InterestID)

	assert.Equal(t, 1, rec.count(), "duplicates must not notify")
}

func TestExpressReusesUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := storetest.SeedProperty(t, store, "A", "owner@example.com")
	b := storetest.SeedProperty(t, store, "B", "owner@example.com")

	svc := interest.New(store, &recorder{})

	_, err := svc.Express(ctx, request("user_1", a.ID))
	require.NoError(t, err)

	req := request("user_1", b.ID)
	req.Name = "Renamed"

	_, err = svc.Express(ctx, req)
	require.NoError(t, err)

	user, err := store.FindUserByExternalID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name, "the interest flow never updates users")

	views, err := store.ListInterests(ctx, models.InterestQuery{UserID: user.ID})
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestExpressNotificationFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	property := storetest.SeedProperty(t, store, "Sea View", "owner@example.com")

	svc := interest.New(store, &recorder{err: errors.New("queue down")})

	res, err := svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExpressUnknownPropertySkipsNotification(t *testing.T) {
	rec := &recorder{}
	svc := interest.New(memory.New(), rec)

	res, err := svc.Express(context.Background(), request("user_1", "missing"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, rec.count())
}

func TestExpressConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	property := storetest.SeedProperty(t, store, "Sea View", "owner@example.com")

	rec := &recorder{}
	svc := interest.New(store, rec)

	const n = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		already  int
		failures []error
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := svc.Express(ctx, request("user_race", property.ID))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				failures = append(failures, err)
			case res.Success:
				created++
			default:
				already++
			}
		}()
	}

	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, already)
	assert.Equal(t, 1, rec.count())

	views, err := store.ListInterests(ctx, models.InterestQuery{PropertyID: property.ID})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestExpressValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.InterestRequest
	}{
		{name: "missing user", req: models.InterestRequest{PropertyID: "p1"}},
		{name: "missing property", req: models.InterestRequest{UserID: "user_1"}},
		{name: "blank ids", req: models.InterestRequest{UserID: "  ", PropertyID: "\t"}},
		{name: "bad email", req: models.InterestRequest{UserID: "user_1", PropertyID: "p1", Email: "not-an-email"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			svc := interest.New(store, &recorder{})

			_, err := svc.Express(context.Background(), tc.req)
			require.ErrorIs(t, err, interest.ErrValidation)

			_, err = store.FindUserByExternalID(context.Background(), "user_1")
			assert.ErrorIs(t, err, models.ErrNotFound, "validation failures must not mutate")
		})
	}
}

func TestExpressStoreFailure(t *testing.T) {
	store := &failingStore{Store: memory.New(), err: errors.New("connection reset")}
	svc := interest.New(store, &recorder{})

	_, err := svc.Express(context.Background(), request("user_1", "p1"))
	require.ErrorIs(t, err, interest.ErrStore)
	assert.NotErrorIs(t, err, interest.ErrValidation)
}

func TestExpressLostRaceReportsStoredInterest(t *testing.T) {
	ctx := context.Background()
	store := &lostRaceStore{Store: memory.New()}
	property := storetest.SeedProperty(t, store.Store, "Sea View", "owner@example.com")
	rec := &recorder{}
	svc := interest.New(store, rec)

	res, err := svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, interest.MessageAlreadyInterested, res.Message)
	require.NotEmpty(t, store.winner.ID)
	assert.Equal(t, store.winner.ID, res.InterestID)
	assert.Empty(t, rec.sent)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	property := storetest.SeedProperty(t, store, "Sea View", "owner@example.com")
	svc := interest.New(store, &recorder{})

	ok, err := svc.Check(ctx, "user_1", property.ID)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")

	_, err = svc.Express(ctx, request("user_1", property.ID))
	require.NoError(t, err)

	ok, err = svc.Check(ctx, "user_1", property.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Check(ctx, "user_1", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Check(ctx, "", property.ID)
	assert.ErrorIs(t, err, interest.ErrValidation)
}
