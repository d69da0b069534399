package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"modelboot-go/internal/backend"
	booterrors "modelboot-go/internal/errors"
)

// FileStore keeps one JSON record per backend family under a fixed
// per-user directory. Saves replace the prior file atomically
// (write-temp-then-rename), so an interrupted write never leaves a
// truncated credential behind.
type FileStore struct {
	dir string
}

// NewFileStore constructs a file store. dir should be absolute or have ~
// expanded already.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: filepath.Clean(dir)}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id backend.Identity) string {
	return filepath.Join(s.dir, string(id)+".json")
}

// Load reads the record for a backend family. A missing file is not an
// error; it yields the none credential.
func (s *FileStore) Load(_ context.Context, id backend.Identity) (Credential, error) {
	path := s.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return None(), nil
		}
		return None(), fmt.Errorf("%w: read %s: %v", booterrors.ErrStoreCorrupt, path, err)
	}
	cred, err := decodeRecord(data)
	if err != nil {
		// Reference the path, never the contents.
		return None(), fmt.Errorf("%w: %s: %v", booterrors.ErrStoreCorrupt, path, err)
	}
	return cred, nil
}

// Save atomically replaces the record for a backend family. Unknown fields
// from a prior version of the format survive the rewrite.
func (s *FileStore) Save(_ context.Context, id backend.Identity, cred Credential) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("prepare credential directory: %w", err)
	}
	path := s.path(id)

	base := []byte(`{}`)
	if existing, err := os.ReadFile(path); err == nil && gjson.ValidBytes(existing) {
		base = existing
	}
	data, err := mergeRecord(base, cred)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp credential %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename credential %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"component": "credential_store",
		"backend":   string(id),
		"kind":      string(cred.Kind),
	}).Debug("credential saved")
	return nil
}

// Clear removes the record for a backend family. Missing files are fine.
func (s *FileStore) Clear(_ context.Context, id backend.Identity) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credential %s: %w", s.path(id), err)
	}
	return nil
}
