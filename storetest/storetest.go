// Package storetest holds the behavior every models.Store backend must share
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/models"
)

// Factory returns an empty store; it is called once per subtest
type Factory func(t *testing.T) models.Store

// Run exercises s against the models.Store contract
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("concurrent users", func(t *testing.T) { testConcurrentUsers(t, newStore(t)) })
	t.Run("properties", func(t *testing.T) { testProperties(t, newStore(t)) })
	t.Run("approval", func(t *testing.T) { testApproval(t, newStore(t)) })
	t.Run("interests", func(t *testing.T) { testInterests(t, newStore(t)) })
	t.Run("concurrent interests", func(t *testing.T) { testConcurrentInterests(t, newStore(t)) })
}

func testUsers(t *testing.T, s models.Store) {
	ctx := context.Background()

	_, err := s.FindUserByExternalID(ctx, "user_1")
	require.ErrorIs(t, err, models.ErrNotFound)

	u := models.User{ExternalID: "user_1", Name: "Ann", Email: "ann@example.com"}
	require.NoError(t, s.CreateUser(ctx, &u))
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.FindUserByExternalID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Ann", got.Name)

	dup := models.User{ExternalID: "user_1", Name: "Other"}
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), models.ErrAlreadyExists)
}

func testConcurrentUsers(t *testing.T, s models.Store) {
	ctx := context.Background()

	const n = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dups    int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			u := models.User{ExternalID: "user_race", Name: fmt.Sprintf("u%d", i)}
			err := s.CreateUser(ctx, &u)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				created++
			case errors.Is(err, models.ErrAlreadyExists):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, dups)
}

// SeedProperty stores an owner (if new) and an unapproved listing
func SeedProperty(t *testing.T, s models.Store, title, ownerEmail string) models.Property {
	t.Helper()

	ctx := context.Background()

	owner, err := s.FindOwnerByEmail(ctx, ownerEmail)
	if errors.Is(err, models.ErrNotFound) {
		owner = models.Owner{Name: "Owner of " + title, Email: ownerEmail, ExternalID: "ext_" + ownerEmail}
		require.NoError(t, s.CreateOwner(ctx, &owner))
	} else {
		require.NoError(t, err)
	}

	p := models.Property{
		Title:          title,
		Description:    "A place",
		Price:          12000,
		Bedrooms:       2,
		Bathrooms:      1,
		Size:           750,
		PropertyType:   "apartment",
		Amenities:      []string{"parking", "wifi"},
		TargetAudience: []string{"family"},
		Images:         []models.ImageRef{models.NewImageRef("image-abc", "https://cdn.example.com/a.jpg")},
		Available:      true,
		OwnerID:        owner.ID,
		Location:       &models.Location{City: "Pune", State: "MH", Country: "India"},
	}
	require.NoError(t, s.CreateProperty(ctx, &p))

	return p
}

func testProperties(t *testing.T, s models.Store) {
	ctx := context.Background()

	_, err := s.GetProperty(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	p := SeedProperty(t, s, "Loft", "owner@example.com")
	assert.NotEmpty(t, p.ID)
	assert.NotEmpty(t, p.LocationID)

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loft", got.Title)
	assert.Equal(t, []string{"parking", "wifi"}, got.Amenities)
	assert.Equal(t, "image-abc", got.Images[0].Asset.Ref)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "owner@example.com", got.Owner.Email)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Pune", got.Location.City)
	assert.False(t, got.Approved())
	assert.Nil(t, got.Approval)

	owner, err := s.FindOwnerByEmail(ctx, "owner@example.com")
	require.NoError(t, err)

	dup := models.Owner{Email: "owner@example.com"}
	assert.ErrorIs(t, s.CreateOwner(ctx, &dup), models.ErrAlreadyExists)

	other := SeedProperty(t, s, "Villa", "other@example.com")

	all, err := s.ListProperties(ctx, models.PropertyQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListProperties(ctx, models.PropertyQuery{OwnerID: owner.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)

	approved := true

	visible, err := s.ListProperties(ctx, models.PropertyQuery{Approved: &approved})
	require.NoError(t, err)
	assert.Empty(t, visible)

	assert.NotEqual(t, p.ID, other.ID)
}

func testApproval(t *testing.T, s models.Store) {
	ctx := context.Background()

	_, err := s.ApproveProperty(ctx, "missing", models.Approval{ApprovedBy: "admin"})
	require.ErrorIs(t, err, models.ErrNotFound)

	p := SeedProperty(t, s, "Loft", "owner@example.com")
	SeedProperty(t, s, "Pending", "owner@example.com")

	at := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)

	got, err := s.ApproveProperty(ctx, p.ID, models.Approval{ApprovedBy: "Admin", ApprovedAt: at, Source: "admin_dashboard"})
	require.NoError(t, err)
	assert.True(t, got.Approved())
	require.NotNil(t, got.Approval)
	assert.Equal(t, "Admin", got.Approval.ApprovedBy)
	assert.True(t, at.Equal(got.Approval.ApprovedAt))
	assert.Equal(t, "admin_dashboard", got.Approval.Source)

	approved := true

	visible, err := s.ListProperties(ctx, models.PropertyQuery{Approved: &approved})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, p.ID, visible[0].ID)

	pending := false

	rest, err := s.ListProperties(ctx, models.PropertyQuery{Approved: &pending})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "Pending", rest[0].Title)
}

func testInterests(t *testing.T, s models.Store) {
	ctx := context.Background()

	p := SeedProperty(t, s, "Loft", "owner@example.com")

	u := models.User{ExternalID: "user_1", Name: "Ann", Email: "ann@example.com"}
	require.NoError(t, s.CreateUser(ctx, &u))

	_, err := s.FindInterest(ctx, u.ID, p.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	i := models.Interest{UserID: u.ID, PropertyID: p.ID}
	require.NoError(t, s.CreateInterest(ctx, &i))
	assert.NotEmpty(t, i.ID)
	assert.Equal(t, models.InterestStatusPending, i.Status)

	found, err := s.FindInterest(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, i.ID, found.ID)

	dup := models.Interest{UserID: u.ID, PropertyID: p.ID}
	assert.ErrorIs(t, s.CreateInterest(ctx, &dup), models.ErrAlreadyExists)

	byProperty, err := s.ListInterests(ctx, models.InterestQuery{PropertyID: p.ID})
	require.NoError(t, err)
	require.Len(t, byProperty, 1)
	assert.Equal(t, "Ann", byProperty[0].User.Name)
	assert.Equal(t, "Loft", byProperty[0].PropertyTitle)

	byUser, err := s.ListInterests(ctx, models.InterestQuery{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	none, err := s.ListInterests(ctx, models.InterestQuery{PropertyID: "other"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testConcurrentInterests(t *testing.T, s models.Store) {
	ctx := context.Background()

	u := models.User{ExternalID: "user_1"}
	require.NoError(t, s.CreateUser(ctx, &u))

	const n = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			in := models.Interest{UserID: u.ID, PropertyID: "p1"}
			err := s.CreateInterest(ctx, &in)

			if err != nil && !errors.Is(err, models.ErrAlreadyExists) {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)

	views, err := s.ListInterests(ctx, models.InterestQuery{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
