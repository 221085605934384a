package store

import (
	"context"
	"time"

	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
)

// BenchFilter specifies criteria for listing benches. Cursor pagination uses
// the creation timestamp of the last row from the previous page: rows are
// ordered created_at DESC and a non-nil Before restricts to strictly older
// rows.
type BenchFilter struct {
	Status model.BenchStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Before *time.Time        `json:"before,omitempty"`
}

// BenchUpdate carries a partial bench update; nil fields are left untouched.
type BenchUpdate struct {
	Latitude     *float64
	Longitude    *float64
	Description  *string
	MainPhotoURL *string
}

// Store defines the persistence interface for benches, their photos, and
// user profiles.
type Store interface {
	// Benches
	ListBenches(ctx context.Context, filter BenchFilter) ([]model.AdminRow, error)
	ListBenchesInBounds(ctx context.Context, bounds geo.Bounds, status model.BenchStatus) ([]model.Bench, error)
	GetBench(ctx context.Context, id string) (*model.Bench, error)
	CreateBench(ctx context.Context, bench model.Bench) (*model.Bench, error)
	UpdateBench(ctx context.Context, id string, upd BenchUpdate) error
	UpdateBenchStatus(ctx context.Context, id string, status model.BenchStatus) error
	DeleteBench(ctx context.Context, id string) error

	// Photos
	InsertPhotos(ctx context.Context, benchID string, photos []model.BenchPhoto) error
	DeletePhotosByURL(ctx context.Context, benchID string, urls []string) error
	ListPhotos(ctx context.Context, benchID string) ([]model.BenchPhoto, error)

	// Profiles
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p model.Profile) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
