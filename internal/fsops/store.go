// Package fsops reads and writes session outputs under a confined root.
package fsops

import (
	"fmt"
	"os"

	"github.com/petasbytes/fig2code/internal/safety"
)

// ArtifactExtensions are the file extensions WriteArtifact accepts.
var ArtifactExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".svg", ".pdf", ".eps"}

// Store is rooted at one output directory. All paths given to it are
// relative to that root and validated by package safety.
type Store struct {
	root string
}

// NewStore creates root if needed and returns a Store confined to it.
func NewStore(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	_, abs, err := safety.InitRoots(root, root)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute output root.
func (s *Store) Root() string { return s.root }

// Resolve validates relPath for reading and returns its absolute form.
func (s *Store) Resolve(relPath string) (string, error) {
	return safety.ValidateRelPath(s.root, relPath)
}
