package editor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/benchradar/benchradar/internal/exif"
	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/repo"
	"github.com/benchradar/benchradar/internal/store"
)

// Mode is the editor workflow state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeChoosingLocation
	ModeDetails
)

func (m Mode) String() string {
	switch m {
	case ModeChoosingLocation:
		return "choosing-location"
	case ModeDetails:
		return "details"
	default:
		return "idle"
	}
}

// Validation messages surfaced before any backend call.
const (
	MsgNoPhoto        = "Add at least one photo."
	MsgNoLocation     = "Choose a location on the map."
	MsgSignInRequired = "Sign in to save a bench."
)

// Backend is the slice of the repository layer the controller drives.
type Backend interface {
	CurrentUser(ctx context.Context) (*model.User, error)
	FetchRole(ctx context.Context, userID string) (*model.Profile, error)
	UploadPhotos(ctx context.Context, files []repo.PhotoFile) ([]string, error)
	CreateBench(ctx context.Context, bench model.Bench) (*model.Bench, error)
	UpdateBench(ctx context.Context, id string, upd store.BenchUpdate) error
	DeleteBench(ctx context.Context, id string) error
	InsertBenchPhotos(ctx context.Context, benchID string, urls []string, mainURL string) error
	DeleteBenchPhotos(ctx context.Context, benchID string, urls []string) error
	CanEditBench(user *model.User, profile *model.Profile, bench model.Bench) bool
}

// MapView is the controller's view of the map widget.
type MapView interface {
	Center() (lat, lng float64)
	Recenter(lat, lng float64)
}

// Geolocator resolves the user's live position.
type Geolocator interface {
	Locate(ctx context.Context) (lat, lng float64, err error)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Controller orchestrates the create/edit/delete workflow over the draft
// store, the repositories, and the geo/photo utilities. It also owns the
// local in-memory bench list, replaced wholesale on each successful
// mutation.
type Controller struct {
	draft   *Draft
	backend Backend
	extract *exif.Extractor

	mapView MapView
	locator Geolocator
	confirm Confirmer
	signIn  func()

	mu      sync.Mutex
	mode    Mode
	benches []model.Bench
}

// Option configures a Controller.
type Option func(*Controller)

func WithMapView(m MapView) Option       { return func(c *Controller) { c.mapView = m } }
func WithGeolocator(g Geolocator) Option { return func(c *Controller) { c.locator = g } }
func WithConfirmer(cf Confirmer) Option  { return func(c *Controller) { c.confirm = cf } }

// WithSignInPrompt sets the callback fired when an action requires a
// signed-in user and there is none.
func WithSignInPrompt(fn func()) Option { return func(c *Controller) { c.signIn = fn } }

// WithExtractor overrides the EXIF GPS extractor.
func WithExtractor(e *exif.Extractor) Option { return func(c *Controller) { c.extract = e } }

// NewController wires a controller over a draft store and backend.
func NewController(draft *Draft, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		draft:   draft,
		backend: backend,
		extract: exif.NewExtractor(),
		signIn:  func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the current workflow mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// Benches returns a copy of the local bench list.
func (c *Controller) Benches() []model.Bench {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Bench(nil), c.benches...)
}

// SetBenches replaces the local bench list, e.g. after an initial fetch.
func (c *Controller) SetBenches(benches []model.Bench) {
	c.mu.Lock()
	c.benches = benches
	c.mu.Unlock()
}

func (c *Controller) appendBench(b model.Bench) {
	c.mu.Lock()
	c.benches = append(append([]model.Bench(nil), c.benches...), b)
	c.mu.Unlock()
}

func (c *Controller) patchBench(b model.Bench) {
	c.mu.Lock()
	next := append([]model.Bench(nil), c.benches...)
	for i := range next {
		if next[i].ID == b.ID {
			next[i] = b
		}
	}
	c.benches = next
	c.mu.Unlock()
}

func (c *Controller) removeBench(id string) {
	c.mu.Lock()
	next := c.benches[:0:0]
	for _, b := range c.benches {
		if b.ID != id {
			next = append(next, b)
		}
	}
	c.benches = next
	c.mu.Unlock()
}

// Cancel abandons the draft and returns to idle.
func (c *Controller) Cancel() {
	c.draft.Reset()
	c.setMode(ModeIdle)
}

// SelectFiles appends newly picked files to the pending list. When no
// location is chosen yet it tries GPS extraction from the new files and,
// on success, sets the chosen location and recenters the map. Always
// advances to the details form.
func (c *Controller) SelectFiles(ctx context.Context, files []repo.PhotoFile) {
	c.draft.AppendFiles(files...)

	if c.draft.Snapshot().Location == nil {
		candidates := make([]exif.File, 0, len(files))
		for _, f := range files {
			candidates = append(candidates, exif.File{Name: f.Name, Data: f.Data})
		}
		if coords := c.extract.Extract(candidates); coords != nil {
			c.draft.SetLocation(coords.Latitude, coords.Longitude)
			if c.mapView != nil {
				c.mapView.Recenter(coords.Latitude, coords.Longitude)
			}
		}
	}
	c.setMode(ModeDetails)
}

// LocationInputChanged updates the free-text coordinate field and
// revalidates on every keystroke, marking the field dirty on first edit.
func (c *Controller) LocationInputChanged(text string) {
	c.draft.SetLocationInput(text)
	if !c.draft.Snapshot().LocationDirty {
		c.draft.SetLocationDirty(true)
	}
	c.draft.SetLocationError(geo.Validate(text))
}

// LocationInputBlurred revalidates and, when valid, adopts the parsed
// coordinates, recenters the map, and rewrites the input in canonical
// form.
func (c *Controller) LocationInputBlurred() {
	text := c.draft.Snapshot().LocationInput
	msg := geo.Validate(text)
	c.draft.SetLocationError(msg)
	if msg != "" {
		return
	}
	p, _ := geo.ParseAndFormat(text)
	if p == nil {
		return
	}
	c.draft.SetLocation(p.Lat, p.Lng)
	c.draft.SetLocationInput(p.Formatted)
	if c.mapView != nil {
		c.mapView.Recenter(p.Lat, p.Lng)
	}
}

// ChooseOnMap enters choosing-location mode. With a map available it
// first recenters on the best-known target: parsed input text, else the
// previously chosen location, else the user's live position.
func (c *Controller) ChooseOnMap(ctx context.Context) {
	if c.mapView == nil {
		c.setMode(ModeChoosingLocation)
		return
	}

	st := c.draft.Snapshot()
	var target *Location
	if p, _ := geo.ParseAndFormat(st.LocationInput); p != nil {
		target = &Location{Lat: p.Lat, Lng: p.Lng}
	} else if st.Location != nil {
		target = st.Location
	} else if c.locator != nil {
		if lat, lng, err := c.locator.Locate(ctx); err == nil {
			target = &Location{Lat: lat, Lng: lng}
		}
	}
	if target != nil {
		c.mapView.Recenter(target.Lat, target.Lng)
		c.draft.SetLocationInput(geo.FormatCoordinates(target.Lat, target.Lng))
	}
	c.setMode(ModeChoosingLocation)
}

// ConfirmMapLocation adopts the current map center as the chosen
// location and advances to the details form. Outside choosing-location
// mode, or without a map, it is a no-op.
func (c *Controller) ConfirmMapLocation() {
	if c.Mode() != ModeChoosingLocation || c.mapView == nil {
		return
	}
	lat, lng := c.mapView.Center()
	c.draft.SetLocation(lat, lng)
	c.draft.SetLocationInput(geo.FormatCoordinates(lat, lng))
	c.draft.SetLocationError("")
	c.setMode(ModeDetails)
}

// StartEdit loads a bench into the draft for editing. With no signed-in
// user it triggers the sign-in flow instead; a signed-in but
// unauthorized user is refused silently.
func (c *Controller) StartEdit(ctx context.Context, bench model.Bench) {
	user, err := c.backend.CurrentUser(ctx)
	if err != nil {
		zap.L().Warn("editor: session lookup failed", zap.Error(err))
		return
	}
	if user == nil {
		c.signIn()
		return
	}
	profile, err := c.backend.FetchRole(ctx, user.ID)
	if err != nil {
		zap.L().Warn("editor: role lookup failed", zap.Error(err))
		return
	}
	if !c.backend.CanEditBench(user, profile, bench) {
		return
	}

	c.draft.Reset()
	b := bench
	c.draft.SetEditing(&b)
	c.draft.SetLocation(bench.Latitude, bench.Longitude)
	c.draft.SetLocationInput(geo.FormatCoordinates(bench.Latitude, bench.Longitude))
	c.draft.SetDescription(bench.Description)

	photos := bench.PhotoURLs
	if len(photos) == 0 && bench.MainPhotoURL != "" {
		photos = []string{bench.MainPhotoURL}
	}
	c.draft.SetExistingPhotos(photos)
	c.setMode(ModeDetails)
}

// SubmitCreate runs the create workflow: validate locally, upload the
// pending photos, create the bench row with status pending, insert the
// photo rows, append the bench to the local list, and reset. A failure
// at any backend step records a submit error and halts; uploads already
// stored are not rolled back.
func (c *Controller) SubmitCreate(ctx context.Context) {
	st := c.draft.Snapshot()
	if len(st.Pending) == 0 {
		c.draft.SetSubmitError(MsgNoPhoto)
		return
	}
	if st.Location == nil {
		c.draft.SetSubmitError(MsgNoLocation)
		return
	}

	user, err := c.backend.CurrentUser(ctx)
	if err != nil || user == nil {
		c.draft.SetSubmitError(MsgSignInRequired)
		return
	}

	c.draft.SetSubmitting(true)
	defer c.draft.SetSubmitting(false)
	c.draft.SetSubmitError("")

	urls, err := c.backend.UploadPhotos(ctx, st.Pending)
	if err != nil {
		c.draft.SetSubmitError(err.Error())
		return
	}

	created, err := c.backend.CreateBench(ctx, model.Bench{
		Latitude:     st.Location.Lat,
		Longitude:    st.Location.Lng,
		Description:  st.Description,
		MainPhotoURL: urls[0],
		CreatedBy:    user.ID,
	})
	if err != nil {
		c.draft.SetSubmitError(err.Error())
		return
	}

	if err := c.backend.InsertBenchPhotos(ctx, created.ID, urls, urls[0]); err != nil {
		c.draft.SetSubmitError(err.Error())
		return
	}

	created.PhotoURLs = urls
	c.appendBench(*created)
	c.draft.Reset()
	c.setMode(ModeIdle)
}

// SubmitEdit runs the edit workflow: resolve effective coordinates,
// require at least one photo remaining, upload newly added files, pick
// the main photo, persist the bench update, delete removed photo rows,
// insert new ones, patch the local list, and reset.
func (c *Controller) SubmitEdit(ctx context.Context) {
	st := c.draft.Snapshot()
	bench := st.Editing
	if bench == nil {
		return
	}

	user, err := c.backend.CurrentUser(ctx)
	if err != nil || user == nil {
		c.draft.SetSubmitError(MsgSignInRequired)
		return
	}

	if len(st.ExistingPhotos)+len(st.Pending) == 0 {
		c.draft.SetSubmitError(MsgNoPhoto)
		return
	}

	lat, lng := bench.Latitude, bench.Longitude
	if st.Location != nil {
		lat, lng = st.Location.Lat, st.Location.Lng
	}

	c.draft.SetSubmitting(true)
	defer c.draft.SetSubmitting(false)
	c.draft.SetSubmitError("")

	var newURLs []string
	if len(st.Pending) > 0 {
		newURLs, err = c.backend.UploadPhotos(ctx, st.Pending)
		if err != nil {
			c.draft.SetSubmitError(err.Error())
			return
		}
	}

	var main string
	switch {
	case len(st.ExistingPhotos) > 0:
		main = st.ExistingPhotos[0]
	case bench.MainPhotoURL != "":
		main = bench.MainPhotoURL
	case len(newURLs) > 0:
		main = newURLs[0]
	}

	upd := store.BenchUpdate{Latitude: &lat, Longitude: &lng, Description: &st.Description}
	if main != bench.MainPhotoURL {
		upd.MainPhotoURL = &main
	}
	if err := c.backend.UpdateBench(ctx, bench.ID, upd); err != nil {
		c.draft.SetSubmitError(err.Error())
		return
	}

	if len(st.RemovedPhotos) > 0 {
		if err := c.backend.DeleteBenchPhotos(ctx, bench.ID, st.RemovedPhotos); err != nil {
			c.draft.SetSubmitError(err.Error())
			return
		}
	}
	if len(newURLs) > 0 {
		if err := c.backend.InsertBenchPhotos(ctx, bench.ID, newURLs, main); err != nil {
			c.draft.SetSubmitError(err.Error())
			return
		}
	}

	updated := *bench
	updated.Latitude = lat
	updated.Longitude = lng
	updated.Description = st.Description
	updated.MainPhotoURL = main
	updated.PhotoURLs = append(append([]string(nil), st.ExistingPhotos...), newURLs...)
	c.patchBench(updated)
	c.draft.Reset()
	c.setMode(ModeIdle)
}

// Delete removes a bench after interactive confirmation. A signed-out
// user is sent to sign-in; a signed-in but unauthorized user is refused
// silently. On failure the local list is left unchanged.
func (c *Controller) Delete(ctx context.Context, bench model.Bench) {
	user, err := c.backend.CurrentUser(ctx)
	if err != nil {
		zap.L().Warn("editor: session lookup failed", zap.Error(err))
		return
	}
	if user == nil {
		c.signIn()
		return
	}
	profile, err := c.backend.FetchRole(ctx, user.ID)
	if err != nil {
		zap.L().Warn("editor: role lookup failed", zap.Error(err))
		return
	}
	if !c.backend.CanEditBench(user, profile, bench) {
		return
	}
	if c.confirm != nil && !c.confirm.Confirm("Delete this bench?") {
		return
	}

	if err := c.backend.DeleteBench(ctx, bench.ID); err != nil {
		c.draft.SetSubmitError(err.Error())
		return
	}
	c.removeBench(bench.ID)
	c.draft.Reset()
	c.setMode(ModeIdle)
}
