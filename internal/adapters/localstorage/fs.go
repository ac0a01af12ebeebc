package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"postsync/internal/core/domain"
)

const (
	// DefaultPublicDir is the directory served as the site root.
	DefaultPublicDir = "public"
	// DefaultRelPath is the CSV location relative to the public directory.
	DefaultRelPath = "data/instagram.csv"
)

// LocalStorage implements ports.FileStore for the local filesystem.
type LocalStorage struct {
	BaseDir       string
	RelPath       string
	PublicBaseURL string
}

// NewLocalStorage creates a new LocalStorage writing under baseDir/public.
func NewLocalStorage(baseDir, publicBaseURL string) *LocalStorage {
	return &LocalStorage{
		BaseDir:       baseDir,
		RelPath:       DefaultRelPath,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Write replaces the CSV file, creating parent directories first.
func (s *LocalStorage) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := s.Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// Read returns the CSV file contents.
func (s *LocalStorage) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := s.Path()
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// URL returns the address the public directory serves the file at.
func (s *LocalStorage) URL() string {
	return s.PublicBaseURL + "/" + path.Clean(s.RelPath)
}

// Path returns the file path on disk.
func (s *LocalStorage) Path() string {
	return filepath.Join(s.BaseDir, DefaultPublicDir, filepath.FromSlash(s.RelPath))
}
