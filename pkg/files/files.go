// Package files stores uploaded prompt attachments on local disk and serves
// them back over the API for multimodal model input.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"coscribe/pkg/store"
)

// Store keeps one file per storage ID under a root directory.
type Store struct {
	root    string
	baseURL string
}

var _ store.FileStore = (*Store)(nil)

// New creates the root directory if needed. baseURL is the externally
// reachable prefix download URLs are built from, e.g.
// "http://localhost:8081/api/files".
func New(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating files dir: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *Store) SaveFile(ctx context.Context, fileName string, r io.Reader) (string, error) {
	id := uuid.New().String()
	ext := filepath.Ext(fileName)
	// The extension is kept so providers can infer content type from the URL.
	storageID := id + sanitizeExt(ext)

	f, err := os.Create(filepath.Join(s.root, storageID))
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing file: %w", err)
	}
	return storageID, nil
}

func (s *Store) OpenFile(ctx context.Context, storageID string) (io.ReadCloser, error) {
	path, err := s.safePath(storageID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

func (s *Store) ResolveDownloadURL(ctx context.Context, storageID string) (string, error) {
	path, err := s.safePath(storageID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("checking file: %w", err)
	}
	return s.baseURL + "/" + storageID, nil
}

// safePath rejects storage IDs that escape the root directory.
func (s *Store) safePath(storageID string) (string, error) {
	if storageID == "" || storageID != filepath.Base(storageID) {
		return "", fmt.Errorf("invalid storage ID %q", storageID)
	}
	return filepath.Join(s.root, storageID), nil
}

func sanitizeExt(ext string) string {
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return strings.ToLower(ext)
}
