// Package safety confines artifact and record writes to an output root.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Error codes carried by PolicyError.
const (
	CodeOutsideRoot  = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead   = "ERR_DENIED_READ"
	CodeDeniedWrite  = "ERR_DENIED_WRITE"
	CodeNotAFile     = "ERR_NOT_A_FILE"
	CodeBadExtension = "ERR_BAD_EXTENSION"
)

// PolicyError is a machine-readable path policy violation. The server
// returns it to clients as-is.
type PolicyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string.
func (e PolicyError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// InitRoots resolves absolute roots for reads and writes. An empty readRoot
// means the working directory; an empty writeRoot means readRoot.
func InitRoots(readRoot, writeRoot string) (absRead string, absWrite string, err error) {
	if readRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("getwd: %w", err)
		}
		readRoot = cwd
	}
	if writeRoot == "" {
		writeRoot = readRoot
	}
	if absRead, err = ResolveRoot(readRoot); err != nil {
		return "", "", fmt.Errorf("abs(readRoot): %w", err)
	}
	if absWrite, err = ResolveRoot(writeRoot); err != nil {
		return "", "", fmt.Errorf("abs(writeRoot): %w", err)
	}
	return absRead, absWrite, nil
}

// ResolveRoot makes root absolute and resolves symlinks where it exists, so
// later boundary checks compare like with like.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// ValidateRelPath resolves relPath against absRoot and returns an absolute
// path inside it. It rejects absolute inputs, parent traversal and symlink
// escapes, and denies reads under the reserved directories.
func ValidateRelPath(absRoot, relPath string) (string, error) {
	candidate, rel, err := confine(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underReserved(rel) {
		return "", PolicyError{Code: CodeDeniedRead, Message: "reads under .git/ or .fig2code/ are not allowed"}
	}
	return candidate, nil
}

// confine joins relPath under absRoot and checks that the result, after
// symlink resolution, stays inside. It returns the candidate and its
// slash-separated form relative to the root.
func confine(absRoot, relPath string) (string, string, error) {
	if filepath.IsAbs(relPath) {
		return "", "", PolicyError{Code: CodeOutsideRoot, Message: "absolute paths are not allowed"}
	}
	cleaned := filepath.Clean(relPath)
	candidate := filepath.Join(absRoot, cleaned)

	// Resolve the whole candidate if it exists, otherwise its parent, so a
	// symlinked ancestor of a not-yet-written file is caught.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", "", PolicyError{Code: CodeOutsideRoot, Message: "requested path resolves outside the output root"}
	}
	return candidate, filepath.ToSlash(rel), nil
}

var reservedDirs = []string{".git", ".fig2code"}

func underReserved(rel string) bool {
	for _, d := range reservedDirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}
