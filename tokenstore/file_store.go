package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the token in a single file, readable only by the current user.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	return &FileStore{path: path}, nil
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Get(_ context.Context) (string, error) {
	b, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return "", interrors.ErrNoToken
	}
	if err != nil {
		return "", errors.Wrap(err, "[FileStore.Get] read token file")
	}

	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", interrors.ErrNoToken
	}
	return token, nil
}

func (fs *FileStore) Set(_ context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.Wrap(interrors.ErrInvalidInput, "[FileStore.Set] empty token")
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Set] create data folder")
	}

	// Write then rename so a crash never leaves a truncated token behind
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore.Set] write temp file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore.Set] chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore.Set] close temp file")
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return errors.Wrap(err, "[FileStore.Set] replace token file")
	}
	return nil
}

func (fs *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Delete] remove token file")
	}
	return nil
}
