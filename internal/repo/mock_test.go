package repo

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/store"
	"github.com/benchradar/benchradar/pkg/authapi"
	"github.com/benchradar/benchradar/pkg/objstore"
)

var errBoom = errors.New("boom")

// mockStore implements store.Store and records mutating calls.
type mockStore struct {
	benches  map[string]model.Bench
	photos   map[string][]model.BenchPhoto
	profiles map[string]model.Profile

	listCalls []store.BenchFilter
	failAll   bool
}

func newMockStore() *mockStore {
	return &mockStore{
		benches:  map[string]model.Bench{},
		photos:   map[string][]model.BenchPhoto{},
		profiles: map[string]model.Profile{},
	}
}

func (m *mockStore) ListBenches(_ context.Context, f store.BenchFilter) ([]model.AdminRow, error) {
	if m.failAll {
		return nil, errBoom
	}
	m.listCalls = append(m.listCalls, f)
	rows := make([]model.AdminRow, 0, len(m.benches))
	for _, b := range m.benches {
		rows = append(rows, model.AdminRow{Bench: b, CreatedAt: b.CreatedAt})
	}
	return rows, nil
}

func (m *mockStore) ListBenchesInBounds(context.Context, geo.Bounds, model.BenchStatus) ([]model.Bench, error) {
	if m.failAll {
		return nil, errBoom
	}
	return nil, nil
}

func (m *mockStore) GetBench(_ context.Context, id string) (*model.Bench, error) {
	if m.failAll {
		return nil, errBoom
	}
	b, ok := m.benches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *mockStore) CreateBench(_ context.Context, b model.Bench) (*model.Bench, error) {
	if m.failAll {
		return nil, errBoom
	}
	if b.ID == "" {
		b.ID = "bench-1"
	}
	b.CreatedAt = time.Now()
	m.benches[b.ID] = b
	return &b, nil
}

func (m *mockStore) UpdateBench(_ context.Context, id string, upd store.BenchUpdate) error {
	if m.failAll {
		return errBoom
	}
	b := m.benches[id]
	if upd.Latitude != nil {
		b.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil {
		b.Longitude = *upd.Longitude
	}
	if upd.Description != nil {
		b.Description = *upd.Description
	}
	if upd.MainPhotoURL != nil {
		b.MainPhotoURL = *upd.MainPhotoURL
	}
	m.benches[id] = b
	return nil
}

func (m *mockStore) UpdateBenchStatus(_ context.Context, id string, s model.BenchStatus) error {
	if m.failAll {
		return errBoom
	}
	b := m.benches[id]
	b.Status = s
	m.benches[id] = b
	return nil
}

func (m *mockStore) DeleteBench(_ context.Context, id string) error {
	if m.failAll {
		return errBoom
	}
	delete(m.benches, id)
	delete(m.photos, id)
	return nil
}

func (m *mockStore) InsertPhotos(_ context.Context, benchID string, photos []model.BenchPhoto) error {
	if m.failAll {
		return errBoom
	}
	m.photos[benchID] = append(m.photos[benchID], photos...)
	return nil
}

func (m *mockStore) DeletePhotosByURL(_ context.Context, benchID string, urls []string) error {
	if m.failAll {
		return errBoom
	}
	drop := map[string]bool{}
	for _, u := range urls {
		drop[u] = true
	}
	kept := m.photos[benchID][:0]
	for _, p := range m.photos[benchID] {
		if !drop[p.URL] {
			kept = append(kept, p)
		}
	}
	m.photos[benchID] = kept
	return nil
}

func (m *mockStore) ListPhotos(_ context.Context, benchID string) ([]model.BenchPhoto, error) {
	return m.photos[benchID], nil
}

func (m *mockStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	if m.failAll {
		return nil, errBoom
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockStore) UpsertProfile(_ context.Context, p model.Profile) error {
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// mockStorage implements objstore.Client in memory and tracks the peak
// number of concurrent uploads.
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	inFlight    int
	maxInFlight int
	delay       time.Duration
	failPath    string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}}
}

func (m *mockStorage) Upload(_ context.Context, path, _ string, body io.Reader) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	fail := m.failPath != "" && path == m.failPath
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	data, err := io.ReadAll(body)

	m.mu.Lock()
	m.inFlight--
	if err == nil && !fail {
		m.objects[path] = data
	}
	m.mu.Unlock()

	if fail {
		return errBoom
	}
	return err
}

func (m *mockStorage) PublicURL(path string) string {
	return "https://storage.example.com/object/public/bench-photos/" + path
}

func (m *mockStorage) Download(context.Context, string) ([]byte, error) {
	return nil, errBoom
}

func (m *mockStorage) List(context.Context, string) ([]objstore.Object, error) {
	return nil, nil
}

func (m *mockStorage) Remove(context.Context, []string) error { return nil }

// mockAuth implements authapi.Client with a fixed session.
type mockAuth struct {
	session    *authapi.Session
	sessionErr error
	signOutErr error
	subs       []func(*authapi.Session)
}

func (m *mockAuth) Session(context.Context) (*authapi.Session, error) {
	return m.session, m.sessionErr
}

func (m *mockAuth) SignInWithPassword(context.Context, string, string) (*authapi.Session, error) {
	if m.session == nil {
		return nil, errBoom
	}
	return m.session, nil
}

func (m *mockAuth) RefreshSession(context.Context) (*authapi.Session, error) {
	return m.session, m.sessionErr
}

func (m *mockAuth) OAuthURL(provider, redirectTo string) string {
	return "https://auth.example.com/authorize?provider=" + provider
}

func (m *mockAuth) SignOut(context.Context) error {
	if m.signOutErr != nil {
		return m.signOutErr
	}
	m.session = nil
	for _, fn := range m.subs {
		fn(nil)
	}
	return nil
}

func (m *mockAuth) OnSessionChange(fn func(*authapi.Session)) func() {
	m.subs = append(m.subs, fn)
	return func() {}
}
