// Package editor holds the bench submission workflow: an observable
// draft store for the in-progress create/edit form and a controller
// that drives the workflow against the repository layer.
package editor

import (
	"sync"

	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/repo"
)

// Location is a chosen coordinate pair.
type Location struct {
	Lat float64
	Lng float64
}

// State is a snapshot of the draft. Slices are copies; mutating a
// snapshot does not affect the store.
type State struct {
	// Editing is the bench being edited, nil in create mode.
	Editing *model.Bench

	Pending []repo.PhotoFile

	Location      *Location
	LocationInput string
	LocationError string
	LocationDirty bool

	Description string

	// ExistingPhotos are URLs retained from the bench being edited.
	// RemovedPhotos collects URLs the user dropped, for deletion at
	// submit time.
	ExistingPhotos []string
	RemovedPhotos  []string

	Submitting  bool
	SubmitError string
}

// Draft is the single active form state. Mutators notify subscribers
// after every change.
type Draft struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewDraft creates an empty draft store.
func NewDraft() *Draft {
	return &Draft{subs: map[int]func(State){}}
}

// Subscribe registers fn to run after every mutation with a snapshot of
// the new state. The returned function unsubscribes.
func (d *Draft) Subscribe(fn func(State)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (d *Draft) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Draft) snapshotLocked() State {
	s := d.state
	s.Pending = append([]repo.PhotoFile(nil), d.state.Pending...)
	s.ExistingPhotos = append([]string(nil), d.state.ExistingPhotos...)
	s.RemovedPhotos = append([]string(nil), d.state.RemovedPhotos...)
	if d.state.Location != nil {
		loc := *d.state.Location
		s.Location = &loc
	}
	if d.state.Editing != nil {
		b := *d.state.Editing
		s.Editing = &b
	}
	return s
}

// mutate applies fn under the lock and notifies subscribers outside it.
func (d *Draft) mutate(fn func(*State)) {
	d.mu.Lock()
	fn(&d.state)
	snap := d.snapshotLocked()
	subs := make([]func(State), 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	d.mu.Unlock()
	for _, s := range subs {
		s(snap)
	}
}

// Reset clears the draft back to empty.
func (d *Draft) Reset() {
	d.mutate(func(s *State) { *s = State{} })
}

// SetEditing enters edit mode for a bench, or create mode when nil.
func (d *Draft) SetEditing(b *model.Bench) {
	d.mutate(func(s *State) { s.Editing = b })
}

func (d *Draft) SetPendingFiles(files []repo.PhotoFile) {
	d.mutate(func(s *State) { s.Pending = files })
}

func (d *Draft) AppendFiles(files ...repo.PhotoFile) {
	d.mutate(func(s *State) { s.Pending = append(s.Pending, files...) })
}

// RemovePendingAt drops one pending file; out-of-range indices are a
// no-op.
func (d *Draft) RemovePendingAt(i int) {
	d.mutate(func(s *State) {
		if i < 0 || i >= len(s.Pending) {
			return
		}
		s.Pending = append(s.Pending[:i], s.Pending[i+1:]...)
	})
}

// ReorderPending moves a pending file from one index to another;
// out-of-range indices are a no-op.
func (d *Draft) ReorderPending(from, to int) {
	d.mutate(func(s *State) {
		if from < 0 || from >= len(s.Pending) || to < 0 || to >= len(s.Pending) {
			return
		}
		f := s.Pending[from]
		s.Pending = append(s.Pending[:from], s.Pending[from+1:]...)
		rest := append([]repo.PhotoFile(nil), s.Pending[to:]...)
		s.Pending = append(append(s.Pending[:to], f), rest...)
	})
}

func (d *Draft) SetLocation(lat, lng float64) {
	d.mutate(func(s *State) { s.Location = &Location{Lat: lat, Lng: lng} })
}

func (d *Draft) ClearLocation() {
	d.mutate(func(s *State) { s.Location = nil })
}

func (d *Draft) SetLocationInput(text string) {
	d.mutate(func(s *State) { s.LocationInput = text })
}

func (d *Draft) SetLocationError(msg string) {
	d.mutate(func(s *State) { s.LocationError = msg })
}

func (d *Draft) SetLocationDirty(dirty bool) {
	d.mutate(func(s *State) { s.LocationDirty = dirty })
}

func (d *Draft) SetDescription(text string) {
	d.mutate(func(s *State) { s.Description = text })
}

func (d *Draft) SetSubmitting(v bool) {
	d.mutate(func(s *State) { s.Submitting = v })
}

func (d *Draft) SetSubmitError(msg string) {
	d.mutate(func(s *State) { s.SubmitError = msg })
}

func (d *Draft) SetExistingPhotos(urls []string) {
	d.mutate(func(s *State) { s.ExistingPhotos = urls })
}

// RemoveExistingPhotoAt drops one retained photo URL and records it for
// deletion from storage at submit time. Out-of-range indices are a no-op.
func (d *Draft) RemoveExistingPhotoAt(i int) {
	d.mutate(func(s *State) {
		if i < 0 || i >= len(s.ExistingPhotos) {
			return
		}
		s.RemovedPhotos = append(s.RemovedPhotos, s.ExistingPhotos[i])
		s.ExistingPhotos = append(s.ExistingPhotos[:i], s.ExistingPhotos[i+1:]...)
	})
}
