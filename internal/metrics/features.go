package metrics

import (
	"regexp"
	"strings"
)

// CodeFeatures are size and shape counts of a generated program. They are
// safe to log since they carry nothing of the code itself.
type CodeFeatures struct {
	Bytes        int
	Lines        int
	BlankLines   int
	CommentLines int
	// PlotCalls counts method calls on plt or an axes/figure handle.
	PlotCalls int
	// Imports counts import statements, including the stripped pyplot one.
	Imports int
}

var plotCall = regexp.MustCompile(`\b(?:plt|ax|axes|fig)\.[A-Za-z_]\w*\s*\(`)

// AnalyzeCode computes CodeFeatures. An empty string has zero lines; a
// trailing newline does not start a new line.
func AnalyzeCode(code string) CodeFeatures {
	f := CodeFeatures{Bytes: len(code)}
	if code == "" {
		return f
	}
	for _, line := range strings.Split(strings.TrimSuffix(code, "\n"), "\n") {
		f.Lines++
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			f.BlankLines++
		case strings.HasPrefix(trimmed, "#"):
			f.CommentLines++
		case strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from "):
			f.Imports++
		}
	}
	f.PlotCalls = len(plotCall.FindAllStringIndex(code, -1))
	return f
}
