package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/petasbytes/fig2code/internal/conversation"
)

// Record is the persisted outcome of a successful session.
type Record struct {
	Code                string              `json:"code" jsonschema_description:"Accepted plotting code."`
	Doc                 string              `json:"doc" jsonschema_description:"Code wrapped in a documented generate_figure function; empty when the step was skipped or failed."`
	ConversationHistory []conversation.Turn `json:"conversation_history" jsonschema_description:"Every turn sent to the model, seed turn first."`

	Image     string             `json:"image,omitempty" jsonschema_description:"Name of the uploaded reference image."`
	Artifact  string             `json:"artifact,omitempty" jsonschema_description:"Rendered figure, relative to the output directory."`
	RunID     string             `json:"run_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Attempts  int                `json:"attempts,omitempty" jsonschema_description:"Model invocations made by the repair loop."`
	Usage     conversation.Usage `json:"usage"`
	CostUSD   float64            `json:"cost_usd,omitempty"`
}

const timeLayout = "20060102_1504"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Stem returns <YYYYMMDD_HHMM>_<image base> for an image name. The base has
// its extension removed and anything outside [A-Za-z0-9._-] replaced.
func Stem(now time.Time, imageName string) string {
	base := filepath.Base(imageName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "_" {
		base = "image"
	}
	return now.Format(timeLayout) + "_" + base
}

// RecordFilename returns the record file name for an image.
func RecordFilename(now time.Time, imageName string) string {
	return Stem(now, imageName) + ".json"
}

// ArtifactFilename returns the artifact file name for an image and format.
func ArtifactFilename(now time.Time, imageName, format string) string {
	if format == "" {
		format = "png"
	}
	return Stem(now, imageName) + "." + strings.ToLower(format)
}

// Marshal encodes r as indented JSON without HTML escaping, so code with
// comparison operators stays readable.
func Marshal(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a record.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRecord reads a record. A missing file yields (nil, nil).
func LoadRecord(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Unmarshal(b)
}

// SaveRecord writes r to path.
func SaveRecord(path string, r *Record) error {
	b, err := Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
