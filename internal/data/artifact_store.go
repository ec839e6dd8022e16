package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/target/repo-analyzer/internal/core"
)

var (
	// ErrInvalidArtifactName is returned for names that contain separators or parent references.
	ErrInvalidArtifactName = errors.New("invalid artifact name")
	// ErrArtifactOutsideDir is returned when a name resolves outside the output directory.
	ErrArtifactOutsideDir = errors.New("artifact path escapes output directory")
	// ErrArtifactNotFound is returned when no artifact exists under the name.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// FileArtifactStore keeps artifacts as flat files in one output directory, created on demand.
type FileArtifactStore struct {
	dir string
}

var _ core.ArtifactStore = (*FileArtifactStore)(nil)

// NewFileArtifactStore constructs a store rooted at dir.
func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("output directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	return &FileArtifactStore{dir: abs}, nil
}

// Dir returns the absolute output directory.
func (s *FileArtifactStore) Dir() string { return s.dir }

// ValidateArtifactName rejects empty names and names containing "..", "/" or "\".
// It performs no filesystem access.
func ValidateArtifactName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	}
	return nil
}

// Save writes data under name, replacing any previous artifact with the same name.
func (s *FileArtifactStore) Save(_ context.Context, name string, data []byte) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish artifact %s: %w", name, err)
	}
	return nil
}

// Read returns the artifact bytes after checking the name and confirming the resolved path,
// symlinks included, stays under the output directory.
func (s *FileArtifactStore) Read(_ context.Context, name string) ([]byte, error) {
	if err := ValidateArtifactName(name); err != nil {
		return nil, err
	}
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

func (s *FileArtifactStore) resolve(name string) (string, error) {
	p := filepath.Clean(filepath.Join(s.dir, name))
	if !within(s.dir, p) {
		return "", fmt.Errorf("%w: %s", ErrArtifactOutsideDir, name)
	}

	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return "", fmt.Errorf("resolve artifact %s: %w", name, err)
	}
	realDir, err := filepath.EvalSymlinks(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	if !within(realDir, real) {
		return "", fmt.Errorf("%w: %s", ErrArtifactOutsideDir, name)
	}
	return real, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
