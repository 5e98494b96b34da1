package fsops

import (
	"os"

	"github.com/petasbytes/fig2code/internal/safety"
)

// ReadFile reads a file addressed by a path relative to the store root.
// Policy violations are safety.PolicyError.
func (s *Store) ReadFile(relPath string) ([]byte, error) {
	absPath, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, safety.PolicyError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}
	return os.ReadFile(absPath)
}
