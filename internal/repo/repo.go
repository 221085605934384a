// Package repo wraps the backend services (relational store, object
// storage, auth) in typed operations. Every operation returns either a
// value or an error carrying one static user-facing message; the raw
// cause is logged, never surfaced.
package repo

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/benchradar/benchradar/internal/config"
	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/store"
	"github.com/benchradar/benchradar/pkg/authapi"
	"github.com/benchradar/benchradar/pkg/objstore"
)

// User-facing failure messages, one per operation.
const (
	MsgFetchFailed       = "Loading benches failed."
	MsgCreateFailed      = "Saving the bench failed."
	MsgUpdateFailed      = "Updating the bench failed."
	MsgDeleteFailed      = "Deleting bench failed."
	MsgUploadFailed      = "Uploading photos failed."
	MsgPhotoInsertFailed = "Saving photo records failed."
	MsgPhotoDeleteFailed = "Removing photo records failed."
	MsgSignInFailed      = "Signing in failed."
	MsgSignOutFailed     = "Signing out failed."
	MsgRoleFailed        = "Loading your profile failed."
	MsgModerateFailed    = "Updating moderation status failed."
)

// OpError is a repository failure with a static user-facing message.
type OpError struct {
	Message string
	cause   error
}

func (e *OpError) Error() string { return e.Message }
func (e *OpError) Unwrap() error { return e.cause }

// opErr logs the cause and returns the user-facing error.
func opErr(msg string, cause error) error {
	zap.L().Error("repo: operation failed", zap.String("message", msg), zap.Error(cause))
	return &OpError{Message: msg, cause: cause}
}

// Repositories bundles the backend clients behind typed operations.
type Repositories struct {
	store   store.Store
	storage objstore.Client
	auth    authapi.Client
	upload  config.UploadConfig
}

// New creates the repository layer.
func New(st store.Store, storage objstore.Client, auth authapi.Client, upload config.UploadConfig) *Repositories {
	return &Repositories{store: st, storage: storage, auth: auth, upload: upload}
}

// CurrentUser returns the signed-in user, nil when signed out.
func (r *Repositories) CurrentUser(ctx context.Context) (*model.User, error) {
	s, err := r.auth.Session(ctx)
	if err != nil {
		return nil, opErr(MsgSignInFailed, err)
	}
	if s == nil {
		return nil, nil
	}
	return &model.User{ID: s.User.ID, Email: s.User.Email}, nil
}

// OnSessionChange subscribes to auth state changes; the callback receives
// the new user, nil on sign-out.
func (r *Repositories) OnSessionChange(fn func(*model.User)) func() {
	return r.auth.OnSessionChange(func(s *authapi.Session) {
		if s == nil {
			fn(nil)
			return
		}
		fn(&model.User{ID: s.User.ID, Email: s.User.Email})
	})
}

// SignInWithPassword authenticates with email and password.
func (r *Repositories) SignInWithPassword(ctx context.Context, email, password string) (*model.User, error) {
	s, err := r.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, opErr(MsgSignInFailed, err)
	}
	return &model.User{ID: s.User.ID, Email: s.User.Email}, nil
}

// SignInWithProvider starts federated sign-in by building the identity
// provider redirect URL; the session arrives via OnSessionChange once
// the provider calls back.
func (r *Repositories) SignInWithProvider(provider, redirectTo string) string {
	return r.auth.OAuthURL(provider, redirectTo)
}

// RefreshSession renews the current session's tokens.
func (r *Repositories) RefreshSession(ctx context.Context) (*model.User, error) {
	s, err := r.auth.RefreshSession(ctx)
	if err != nil {
		return nil, opErr(MsgSignInFailed, err)
	}
	if s == nil {
		return nil, nil
	}
	return &model.User{ID: s.User.ID, Email: s.User.Email}, nil
}

// SignOut ends the current session.
func (r *Repositories) SignOut(ctx context.Context) error {
	if err := r.auth.SignOut(ctx); err != nil {
		return opErr(MsgSignOutFailed, err)
	}
	return nil
}

// FetchRole looks up the profile (admin flag) for a user. A missing
// profile is returned as a non-admin default, not an error.
func (r *Repositories) FetchRole(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, opErr(MsgRoleFailed, err)
	}
	if p == nil {
		return &model.Profile{UserID: userID}, nil
	}
	return p, nil
}

// FetchBenches returns one page of benches with the given moderation
// status, newest first, strictly older than the cursor when set.
func (r *Repositories) FetchBenches(ctx context.Context, status model.BenchStatus, limit int, before *time.Time) ([]model.AdminRow, error) {
	rows, err := r.store.ListBenches(ctx, store.BenchFilter{Status: status, Limit: limit, Before: before})
	if err != nil {
		return nil, opErr(MsgFetchFailed, err)
	}
	return rows, nil
}

// FetchBenchesInBounds returns benches inside a map viewport.
func (r *Repositories) FetchBenchesInBounds(ctx context.Context, bounds geo.Bounds, status model.BenchStatus) ([]model.Bench, error) {
	benches, err := r.store.ListBenchesInBounds(ctx, bounds, status)
	if err != nil {
		return nil, opErr(MsgFetchFailed, err)
	}
	return benches, nil
}

// GetBench fetches one bench with its photo URL list, nil when absent.
func (r *Repositories) GetBench(ctx context.Context, id string) (*model.Bench, error) {
	b, err := r.store.GetBench(ctx, id)
	if err != nil {
		return nil, opErr(MsgFetchFailed, err)
	}
	return b, nil
}

// CreateBench persists a new bench row with status pending.
func (r *Repositories) CreateBench(ctx context.Context, bench model.Bench) (*model.Bench, error) {
	bench.Status = model.BenchStatusPending
	bench.Description = norm.NFC.String(bench.Description)
	created, err := r.store.CreateBench(ctx, bench)
	if err != nil {
		return nil, opErr(MsgCreateFailed, err)
	}
	return created, nil
}

// UpdateBench applies a partial update to a bench row.
func (r *Repositories) UpdateBench(ctx context.Context, id string, upd store.BenchUpdate) error {
	if upd.Description != nil {
		d := norm.NFC.String(*upd.Description)
		upd.Description = &d
	}
	if err := r.store.UpdateBench(ctx, id, upd); err != nil {
		return opErr(MsgUpdateFailed, err)
	}
	return nil
}

// SetBenchStatus transitions a bench's moderation status. Status changes
// happen only through this explicit admin action.
func (r *Repositories) SetBenchStatus(ctx context.Context, id string, status model.BenchStatus) error {
	if err := r.store.UpdateBenchStatus(ctx, id, status); err != nil {
		return opErr(MsgModerateFailed, err)
	}
	return nil
}

// DeleteBench removes a bench and its photo records, photo records first.
func (r *Repositories) DeleteBench(ctx context.Context, id string) error {
	if err := r.store.DeleteBench(ctx, id); err != nil {
		return opErr(MsgDeleteFailed, err)
	}
	return nil
}

// InsertBenchPhotos records photo association rows for a bench, marking
// the one matching mainURL as main.
func (r *Repositories) InsertBenchPhotos(ctx context.Context, benchID string, urls []string, mainURL string) error {
	photos := make([]model.BenchPhoto, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, model.BenchPhoto{BenchID: benchID, URL: u, IsMain: u == mainURL})
	}
	if err := r.store.InsertPhotos(ctx, benchID, photos); err != nil {
		return opErr(MsgPhotoInsertFailed, err)
	}
	return nil
}

// DeleteBenchPhotos removes photo association rows by URL.
func (r *Repositories) DeleteBenchPhotos(ctx context.Context, benchID string, urls []string) error {
	if err := r.store.DeletePhotosByURL(ctx, benchID, urls); err != nil {
		return opErr(MsgPhotoDeleteFailed, err)
	}
	return nil
}

// CanEditBench answers whether the user may mutate the bench: true for
// admins and for the bench's recorded creator, false otherwise, including
// when no user is signed in.
func (r *Repositories) CanEditBench(user *model.User, profile *model.Profile, bench model.Bench) bool {
	if user == nil {
		return false
	}
	if profile != nil && profile.IsAdmin {
		return true
	}
	return bench.CreatedBy != "" && bench.CreatedBy == user.ID
}
