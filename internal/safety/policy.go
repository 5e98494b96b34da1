package safety

import (
	"path/filepath"
	"strings"
)

// protectedBase names files that are never overwritten at any depth.
var protectedBase = map[string]bool{
	"go.mod":        true,
	"go.sum":        true,
	".env":          true,
	"fig2code.toml": true,
}

// ValidateWritePath applies the read checks plus the write denylist:
// reserved directories and protected basenames.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	candidate, rel, err := confine(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underReserved(rel) {
		return "", PolicyError{Code: CodeDeniedWrite, Message: "writes under .git/ or .fig2code/ are not allowed"}
	}
	if protectedBase[filepath.Base(candidate)] {
		return "", PolicyError{Code: CodeDeniedWrite, Message: "writes to " + filepath.Base(candidate) + " are not allowed"}
	}
	return candidate, nil
}

// ValidateArtifactPath is ValidateWritePath restricted to the given
// extensions (lowercase, with dot).
func ValidateArtifactPath(absRoot, relPath string, exts ...string) (string, error) {
	ext := strings.ToLower(filepath.Ext(relPath))
	ok := len(exts) == 0
	for _, e := range exts {
		if ext == e {
			ok = true
			break
		}
	}
	if !ok {
		return "", PolicyError{Code: CodeBadExtension, Message: "unexpected file extension " + ext}
	}
	return ValidateWritePath(absRoot, relPath)
}
