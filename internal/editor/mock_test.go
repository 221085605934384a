package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/repo"
	"github.com/benchradar/benchradar/internal/store"
)

var errBackend = errors.New("backend down")

type photoInsert struct {
	benchID string
	urls    []string
	main    string
}

type photoDelete struct {
	benchID string
	urls    []string
}

// fakeBackend implements Backend and records every call.
type fakeBackend struct {
	user    *model.User
	profile *model.Profile

	uploadCalls [][]repo.PhotoFile
	uploadErr   error
	uploadSeq   int

	created   []model.Bench
	createErr error

	updates   map[string]store.BenchUpdate
	updateErr error

	deleted   []string
	deleteErr error

	inserts   []photoInsert
	insertErr error

	photoDeletes    []photoDelete
	deletePhotosErr error

	calls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{updates: map[string]store.BenchUpdate{}}
}

func (f *fakeBackend) CurrentUser(context.Context) (*model.User, error) {
	return f.user, nil
}

func (f *fakeBackend) FetchRole(_ context.Context, userID string) (*model.Profile, error) {
	if f.profile != nil {
		return f.profile, nil
	}
	return &model.Profile{UserID: userID}, nil
}

func (f *fakeBackend) UploadPhotos(_ context.Context, files []repo.PhotoFile) ([]string, error) {
	f.calls++
	f.uploadCalls = append(f.uploadCalls, files)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	urls := make([]string, len(files))
	for i := range files {
		f.uploadSeq++
		urls[i] = fmt.Sprintf("https://cdn.example.com/benches/p%d.jpg", f.uploadSeq)
	}
	return urls, nil
}

func (f *fakeBackend) CreateBench(_ context.Context, b model.Bench) (*model.Bench, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	b.ID = fmt.Sprintf("bench-%d", len(f.created)+1)
	b.Status = model.BenchStatusPending
	f.created = append(f.created, b)
	return &b, nil
}

func (f *fakeBackend) UpdateBench(_ context.Context, id string, upd store.BenchUpdate) error {
	f.calls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = upd
	return nil
}

func (f *fakeBackend) DeleteBench(_ context.Context, id string) error {
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) InsertBenchPhotos(_ context.Context, benchID string, urls []string, mainURL string) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts = append(f.inserts, photoInsert{benchID: benchID, urls: urls, main: mainURL})
	return nil
}

func (f *fakeBackend) DeleteBenchPhotos(_ context.Context, benchID string, urls []string) error {
	f.calls++
	if f.deletePhotosErr != nil {
		return f.deletePhotosErr
	}
	f.photoDeletes = append(f.photoDeletes, photoDelete{benchID: benchID, urls: urls})
	return nil
}

func (f *fakeBackend) CanEditBench(user *model.User, profile *model.Profile, bench model.Bench) bool {
	if user == nil {
		return false
	}
	if profile != nil && profile.IsAdmin {
		return true
	}
	return bench.CreatedBy != "" && bench.CreatedBy == user.ID
}

// fakeMap records recenter calls and serves a fixed center.
type fakeMap struct {
	centerLat, centerLng float64
	recenters            []Location
}

func (m *fakeMap) Center() (float64, float64) { return m.centerLat, m.centerLng }

func (m *fakeMap) Recenter(lat, lng float64) {
	m.recenters = append(m.recenters, Location{Lat: lat, Lng: lng})
}

type fakeLocator struct {
	lat, lng float64
	err      error
	calls    int
}

func (g *fakeLocator) Locate(context.Context) (float64, float64, error) {
	g.calls++
	return g.lat, g.lng, g.err
}

type fakeConfirmer struct {
	answer   bool
	messages []string
}

func (c *fakeConfirmer) Confirm(msg string) bool {
	c.messages = append(c.messages, msg)
	return c.answer
}
