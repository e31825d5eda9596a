package session

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStore persists a single developer session on disk. It is not keyed by chat
// session: whoever signed in last is the local user.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Read() (*Auth, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read session file")
	}
	var a Auth
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(err, "decode session file")
	}
	if a.AccessToken == "" {
		return nil, nil
	}
	return &a, nil
}

func (f *FileStore) Write(a *Auth) error {
	if a == nil || a.AccessToken == "" || a.UserID == "" {
		return errors.New("invalid session")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	out := *a
	out.SessionID = ""
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "replace session file")
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "remove session file")
	}
	return nil
}
