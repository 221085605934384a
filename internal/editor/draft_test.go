package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/repo"
)

func TestDraftResetClearsEverything(t *testing.T) {
	d := NewDraft()
	d.SetEditing(&model.Bench{ID: "b1"})
	d.AppendFiles(repo.PhotoFile{Name: "a.jpg"})
	d.SetLocation(1, 2)
	d.SetLocationInput("1,2")
	d.SetDescription("shady spot")
	d.SetSubmitError("nope")

	d.Reset()

	st := d.Snapshot()
	assert.Nil(t, st.Editing)
	assert.Empty(t, st.Pending)
	assert.Nil(t, st.Location)
	assert.Empty(t, st.LocationInput)
	assert.Empty(t, st.Description)
	assert.Empty(t, st.SubmitError)
}

func TestDraftRemovePendingOutOfRange(t *testing.T) {
	d := NewDraft()
	d.AppendFiles(repo.PhotoFile{Name: "a.jpg"}, repo.PhotoFile{Name: "b.jpg"})

	d.RemovePendingAt(-1)
	d.RemovePendingAt(2)
	assert.Len(t, d.Snapshot().Pending, 2)

	d.RemovePendingAt(0)
	st := d.Snapshot()
	require.Len(t, st.Pending, 1)
	assert.Equal(t, "b.jpg", st.Pending[0].Name)
}

func TestDraftReorderPending(t *testing.T) {
	d := NewDraft()
	d.AppendFiles(
		repo.PhotoFile{Name: "a"},
		repo.PhotoFile{Name: "b"},
		repo.PhotoFile{Name: "c"},
	)

	d.ReorderPending(2, 0)
	st := d.Snapshot()
	assert.Equal(t, "c", st.Pending[0].Name)
	assert.Equal(t, "a", st.Pending[1].Name)
	assert.Equal(t, "b", st.Pending[2].Name)

	d.ReorderPending(0, 5)
	assert.Equal(t, "c", d.Snapshot().Pending[0].Name, "out of range is a no-op")
}

func TestDraftRemoveExistingPhotoRecordsRemoval(t *testing.T) {
	d := NewDraft()
	d.SetExistingPhotos([]string{"https://x/a.jpg", "https://x/b.jpg"})

	d.RemoveExistingPhotoAt(0)
	st := d.Snapshot()
	assert.Equal(t, []string{"https://x/b.jpg"}, st.ExistingPhotos)
	assert.Equal(t, []string{"https://x/a.jpg"}, st.RemovedPhotos)

	d.RemoveExistingPhotoAt(7)
	assert.Len(t, d.Snapshot().RemovedPhotos, 1, "out of range is a no-op")
}

func TestDraftSubscribe(t *testing.T) {
	d := NewDraft()

	var seen []string
	unsubscribe := d.Subscribe(func(s State) { seen = append(seen, s.Description) })

	d.SetDescription("first")
	d.SetDescription("second")
	require.Equal(t, []string{"first", "second"}, seen)

	unsubscribe()
	d.SetDescription("third")
	assert.Len(t, seen, 2, "no notifications after unsubscribe")
}

func TestDraftSnapshotIsACopy(t *testing.T) {
	d := NewDraft()
	d.SetExistingPhotos([]string{"a"})

	st := d.Snapshot()
	st.ExistingPhotos[0] = "mutated"
	assert.Equal(t, "a", d.Snapshot().ExistingPhotos[0])
}
