// Package session persists the auth session across restarts under a fixed
// namespace key, mirroring the key-value session storage of the hosted
// auth SDK.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/benchradar/benchradar/pkg/authapi"
)

// Key is the fixed namespace key the session is stored under.
const Key = "benchradar.auth.session"

// FileStore implements authapi.TokenStore on the local filesystem.
type FileStore struct {
	dir string
}

// NewFileStore creates a session store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, eris.Wrapf(err, "session: create dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path() string {
	return filepath.Join(f.dir, Key+".json")
}

// Load returns the persisted session, or nil when none is stored.
func (f *FileStore) Load() (*authapi.Session, error) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "session: read")
	}

	var s authapi.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "session: unmarshal")
	}
	return &s, nil
}

// Save persists the session atomically via temp file and rename.
func (f *FileStore) Save(s *authapi.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "session: marshal")
	}

	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return eris.Wrap(err, "session: write temp")
	}
	if err := os.Rename(tmp, f.path()); err != nil {
		return eris.Wrap(err, "session: rename")
	}
	return nil
}

// Clear removes the persisted session. Clearing an absent session is not
// an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path()); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "session: remove")
	}
	return nil
}
