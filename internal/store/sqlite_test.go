package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_BenchCRUD(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.CreateBench(ctx, model.Bench{
		Latitude:     52.52,
		Longitude:    13.40,
		Description:  "by the fountain",
		MainPhotoURL: "https://x/a.jpg",
		CreatedBy:    "u1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.BenchStatusPending, created.Status)

	require.NoError(t, s.InsertPhotos(ctx, created.ID, []model.BenchPhoto{
		{URL: "https://x/a.jpg", IsMain: true},
		{URL: "https://x/b.jpg"},
	}))

	got, err := s.GetBench(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "by the fountain", got.Description)
	assert.Equal(t, []string{"https://x/a.jpg", "https://x/b.jpg"}, got.PhotoURLs)

	// Partial update leaves coordinates alone.
	desc := "moved to the shade"
	require.NoError(t, s.UpdateBench(ctx, created.ID, BenchUpdate{Description: &desc}))
	got, err = s.GetBench(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.InDelta(t, 52.52, got.Latitude, 1e-9)

	require.NoError(t, s.UpdateBenchStatus(ctx, created.ID, model.BenchStatusApproved))
	got, err = s.GetBench(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BenchStatusApproved, got.Status)

	require.NoError(t, s.DeleteBench(ctx, created.ID))
	got, err = s.GetBench(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	photos, err := s.ListPhotos(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestSQLiteStore_ListBenchesCursor(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.CreateBench(ctx, model.Bench{
			Latitude:  float64(i),
			Longitude: float64(i),
			Status:    model.BenchStatusPending,
			CreatedBy: "u1",
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct created_at per row
	}

	page1, err := s.ListBenches(ctx, BenchFilter{Status: model.BenchStatusPending, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt), "newest first")

	cursor := page1[1].CreatedAt
	page2, err := s.ListBenches(ctx, BenchFilter{Status: model.BenchStatusPending, Limit: 2, Before: &cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.True(t, page2[0].CreatedAt.Before(cursor))

	// Final partial page signals exhaustion to the caller.
	cursor = page2[1].CreatedAt
	page3, err := s.ListBenches(ctx, BenchFilter{Status: model.BenchStatusPending, Limit: 2, Before: &cursor})
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func TestSQLiteStore_ListBenchesInBounds(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	inside, err := s.CreateBench(ctx, model.Bench{Latitude: 52.5, Longitude: 13.4, Status: model.BenchStatusApproved})
	require.NoError(t, err)
	_, err = s.CreateBench(ctx, model.Bench{Latitude: 48.8, Longitude: 2.35, Status: model.BenchStatusApproved})
	require.NoError(t, err)

	benches, err := s.ListBenchesInBounds(ctx, geo.NewBounds(52.0, 13.0, 53.0, 14.0), model.BenchStatusApproved)
	require.NoError(t, err)
	require.Len(t, benches, 1)
	assert.Equal(t, inside.ID, benches[0].ID)
}

func TestSQLiteStore_DeletePhotosByURL(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	bench, err := s.CreateBench(ctx, model.Bench{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	require.NoError(t, s.InsertPhotos(ctx, bench.ID, []model.BenchPhoto{
		{URL: "https://x/keep.jpg", IsMain: true},
		{URL: "https://x/drop.jpg"},
	}))

	require.NoError(t, s.DeletePhotosByURL(ctx, bench.ID, []string{"https://x/drop.jpg"}))

	photos, err := s.ListPhotos(ctx, bench.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://x/keep.jpg", photos[0].URL)
}

func TestSQLiteStore_Profiles(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.UpsertProfile(ctx, model.Profile{UserID: "u1", Username: "sam", IsAdmin: false}))
	require.NoError(t, s.UpsertProfile(ctx, model.Profile{UserID: "u1", Username: "sam", IsAdmin: true}))

	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsAdmin)
	assert.Equal(t, "sam", p.Username)
}
