package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store is the opaque persisted credential store. Get returns ErrNoSession
// when no credential is saved.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Remove() error
}

// FileStore persists the access credential in a single file, created with
// owner-only permissions.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".livechat", "credential")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoSession
		}
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

func (s *FileStore) Set(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileStore) Remove() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
