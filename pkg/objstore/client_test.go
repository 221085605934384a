package objstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage(t *testing.T) (*fakeStorage, *httptest.Server) {
	t.Helper()
	fs := &fakeStorage{objects: map[string][]byte{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /object/list/photos", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prefix string `json:"prefix"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		fs.mu.Lock()
		defer fs.mu.Unlock()
		out := []Object{}
		for name, data := range fs.objects {
			if strings.HasPrefix(name, req.Prefix) {
				out = append(out, Object{Name: name, Size: int64(len(data))})
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("POST /object/photos/{path...}", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		fs.mu.Lock()
		fs.objects[r.PathValue("path")] = data
		fs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /object/photos/{path...}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		data, ok := fs.objects[r.PathValue("path")]
		fs.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write(data)
	})
	mux.HandleFunc("DELETE /object/photos", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prefixes []string `json:"prefixes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fs.mu.Lock()
		for _, p := range req.Prefixes {
			delete(fs.objects, p)
		}
		fs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	fs, srv := newFakeStorage(t)
	c := NewClient(srv.URL, "photos", "service-key")
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, "benches/b1/a.jpg", "image/jpeg", strings.NewReader("jpeg-bytes")))
	assert.Equal(t, []byte("jpeg-bytes"), fs.objects["benches/b1/a.jpg"])

	data, err := c.Download(ctx, "benches/b1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestDownloadMissing(t *testing.T) {
	_, srv := newFakeStorage(t)
	c := NewClient(srv.URL, "photos", "service-key")

	_, err := c.Download(context.Background(), "benches/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestPublicURL(t *testing.T) {
	c := NewClient("https://storage.example.com", "photos", "service-key")
	assert.Equal(t,
		"https://storage.example.com/object/public/photos/benches/b1/a.jpg",
		c.PublicURL("benches/b1/a.jpg"))
	assert.Equal(t,
		"https://storage.example.com/object/public/photos/a.jpg",
		c.PublicURL("/a.jpg"))
}

func TestListByPrefix(t *testing.T) {
	fs, srv := newFakeStorage(t)
	fs.objects["benches/b1/a.jpg"] = []byte("x")
	fs.objects["benches/b1/b.jpg"] = []byte("y")
	fs.objects["benches/b2/c.jpg"] = []byte("z")

	c := NewClient(srv.URL, "photos", "service-key")
	objects, err := c.List(context.Background(), "benches/b1/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestRemove(t *testing.T) {
	fs, srv := newFakeStorage(t)
	fs.objects["benches/b1/a.jpg"] = []byte("x")
	fs.objects["benches/b1/b.jpg"] = []byte("y")

	c := NewClient(srv.URL, "photos", "service-key")
	require.NoError(t, c.Remove(context.Background(), []string{"benches/b1/a.jpg"}))

	assert.NotContains(t, fs.objects, "benches/b1/a.jpg")
	assert.Contains(t, fs.objects, "benches/b1/b.jpg")

	// Removing nothing is a no-op without a network call.
	require.NoError(t, c.Remove(context.Background(), nil))
}
