package fsops

import (
	"os"
	"sort"
	"strings"
)

// ListFiles lists the non-recursive entries of a directory under the root,
// directories suffixed by "/". With suffix set, only files ending in it are
// returned.
func (s *Store) ListFiles(relDir, suffix string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := s.Resolve(relDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if suffix != "" {
				continue
			}
			name += "/"
		} else if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
