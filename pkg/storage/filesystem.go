package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrForeignReference is returned when a reference does not point inside the storage root.
var ErrForeignReference = errors.New("reference outside storage")

// LocalStorage persists uploaded photos on disk under a base directory and maps them
// to public references served below publicPath.
type LocalStorage struct {
	baseDir    string
	publicPath string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, publicPath string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if publicPath == "" {
		publicPath = "/uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicPath: "/" + strings.Trim(publicPath, "/")}, nil
}

// Dir returns the directory served at PublicPath.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

// PublicPath returns the URL prefix of stored references.
func (s *LocalStorage) PublicPath() string {
	return s.publicPath
}

// Save writes data under sub with a fresh UUID file name and returns its public reference,
// e.g. /uploads/items/<uuid>.jpg.
func (s *LocalStorage) Save(sub, ext string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, filepath.Clean("/"+sub))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}

	name := uuid.NewString() + ext
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path.Join(s.publicPath, strings.Trim(sub, "/"), name), nil
}

// Delete removes the file behind a public reference. Missing files are not an error.
func (s *LocalStorage) Delete(ref string) error {
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Exists reports whether the file behind a public reference is present.
func (s *LocalStorage) Exists(ref string) bool {
	target, err := s.resolve(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

func (s *LocalStorage) resolve(ref string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(ref))
	if !strings.HasPrefix(cleaned, s.publicPath+"/") {
		return "", fmt.Errorf("%w: %s", ErrForeignReference, ref)
	}
	rel := strings.TrimPrefix(cleaned, s.publicPath+"/")
	return filepath.Join(s.baseDir, filepath.FromSlash(rel)), nil
}
