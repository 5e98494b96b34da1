package telemetry

import (
	"context"

	"github.com/petasbytes/fig2code/internal/metrics"
)

// EmitCodeFeatures records shape features of extracted code without the code itself.
func EmitCodeFeatures(ctx context.Context, code string) {
	if !ObserveEnabled() {
		return
	}
	f := metrics.AnalyzeCode(code)
	EmitContext(ctx, "code_features", map[string]any{
		"features_version": "2",
		"code": map[string]any{
			"bytes":         f.Bytes,
			"lines":         f.Lines,
			"blank_lines":   f.BlankLines,
			"comment_lines": f.CommentLines,
			"imports":       f.Imports,
			"plot_calls":    f.PlotCalls,
		},
	})
}
