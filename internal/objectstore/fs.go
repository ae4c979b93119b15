package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes blobs under a local directory. Dev and test backend; the
// base URL is whatever serves that directory.
type FSStore struct {
	dir     string
	baseURL string
}

// NewFS creates the base directory if needed.
func NewFS(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating object dir: %w", err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put implements Store.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("storing object %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
