package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StagingDirName is the directory below the system temp dir that holds run directories
const StagingDirName = "temp-otltemplate"

// Stage is the private working directory of one run. Concurrent runs never share one.
type Stage struct {
	RunID string
	Dir   string
}

// NewStage creates a fresh run directory below root, or below the system temp dir when root
// is empty
func NewStage(root string) (*Stage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), StagingDirName)
	}
	runID := uuid.New().String()
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Stage{RunID: runID, Dir: dir}, nil
}

// Path returns the staged path of name
func (s *Stage) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Cleanup removes the run directory
func (s *Stage) Cleanup() error {
	return os.RemoveAll(s.Dir)
}

// Commit moves a finished staged file to dest. A rename is tried first; across filesystems
// the file is copied next to dest and renamed there, so dest is never half written.
func (s *Stage) Commit(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".otltemplate-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move template into place: %w", err)
	}
	return nil
}
