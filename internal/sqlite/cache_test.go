package sqlite

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/stretchr/testify/require"
)

func TestCacheRepository_SaveLoad(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCacheRepository(db)
	key := dailycache.Key{UserID: "user1", PetID: "pet1"}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	_, ok, err := repo.Load(ctx, key, now)
	require.NoError(t, err)
	require.False(t, ok)

	s := dailycache.Empty(civil.DateOf(now), true).Merge(treatment.Session{
		ID: "s1", PetID: "pet1", UserID: "user1",
		Kind:      treatment.KindFluid,
		DateTime:  now,
		CreatedAt: now,
		Fluid:     &treatment.Fluid{VolumeGiven: 120},
	})
	require.NoError(t, repo.Save(ctx, key, s))

	loaded, ok, err := repo.Load(ctx, key, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, loaded.FluidSessionCount)
	require.True(t, loaded.Hydrated)

	_, ok, err = repo.Load(ctx, key, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, ok, "yesterday's snapshot is absent")

	next := dailycache.Empty(civil.DateOf(now.AddDate(0, 0, 1)), true)
	require.NoError(t, repo.Save(ctx, key, next))
	_, ok, err = repo.Load(ctx, key, now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheRepository_Pets(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCacheRepository(db)
	today := civil.Date{Year: 2024, Month: time.May, Day: 1}

	for _, key := range []dailycache.Key{
		{UserID: "user1", PetID: "pet2"},
		{UserID: "user1", PetID: "pet1"},
		{UserID: "user2", PetID: "pet3"},
	} {
		require.NoError(t, repo.Save(ctx, key, dailycache.Empty(today, false)))
	}

	pets, err := repo.Pets(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, []string{"pet1", "pet2"}, pets)

	pets, err = repo.Pets(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, pets)
}
