package fsops

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/petasbytes/fig2code/internal/safety"
)

// WriteFile writes data to a path relative to the store root, creating
// parent directories as needed.
func (s *Store) WriteFile(relPath string, data []byte) error {
	absPath, err := safety.ValidateWritePath(s.root, relPath)
	if err != nil {
		return err
	}
	return writeAtomic(absPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteArtifact renders into a temporary file next to relPath and renames it
// into place, so a failed render never leaves a partial artifact.
func (s *Store) WriteArtifact(relPath string, render func(io.Writer) error) error {
	absPath, err := safety.ValidateArtifactPath(s.root, relPath, ArtifactExtensions...)
	if err != nil {
		return err
	}
	return writeAtomic(absPath, render)
}

func writeAtomic(absPath string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), absPath)
}
