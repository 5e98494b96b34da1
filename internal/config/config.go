// Package config loads settings from defaults, an optional TOML file and the
// environment, in that order of precedence (later wins). Command-line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/petasbytes/fig2code/internal/extract"
	"github.com/petasbytes/fig2code/internal/fsops"
	"github.com/petasbytes/fig2code/internal/metrics"
	"github.com/petasbytes/fig2code/internal/plotting"
	"github.com/petasbytes/fig2code/internal/provider"
	"github.com/petasbytes/fig2code/internal/runner"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "fig2code.toml"

// Doc backends.
const (
	DocBackendAnthropic = "anthropic"
	DocBackendGollm     = "gollm"
)

type Config struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// SDKRetries is the HTTP client's retry count for transient failures.
	SDKRetries        int `toml:"sdk_retries"`
	RequestsPerMinute int `toml:"requests_per_minute"`

	MaxRetries  int    `toml:"max_retries"`
	MaxTokens   int64  `toml:"max_tokens"`
	Language    string `toml:"language"`
	Format      string `toml:"format"`
	OutputDir   string `toml:"output_dir"`
	Instruction string `toml:"instruction"`

	GenerateDoc bool   `toml:"generate_doc"`
	DocBackend  string `toml:"doc_backend"`
	DocModel    string `toml:"doc_model"`

	Pricing Pricing `toml:"pricing"`
	Server  Server  `toml:"server"`
	Batch   Batch   `toml:"batch"`

	Debug bool `toml:"debug"`
}

type Pricing struct {
	InputPerMTok  float64 `toml:"input_per_mtok"`
	OutputPerMTok float64 `toml:"output_per_mtok"`
}

type Server struct {
	Listen        string `toml:"listen"`
	MaxConcurrent int    `toml:"max_concurrent"`
	MaxUploadMB   int    `toml:"max_upload_mb"`
}

type Batch struct {
	Concurrency int `toml:"concurrency"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Model:             string(provider.DefaultModel),
		SDKRetries:        2,
		RequestsPerMinute: 0,
		MaxRetries:        runner.DefaultMaxRetries,
		MaxTokens:         runner.DefaultMaxTokens,
		Language:          extract.DefaultLanguage,
		Format:            runner.DefaultFormat,
		OutputDir:         ".",
		GenerateDoc:       true,
		DocBackend:        DocBackendAnthropic,
		Pricing: Pricing{
			InputPerMTok:  metrics.DefaultPricing.InputPerMTok,
			OutputPerMTok: metrics.DefaultPricing.OutputPerMTok,
		},
		Server: Server{Listen: ":8080", MaxConcurrent: 4, MaxUploadMB: 10},
		Batch:  Batch{Concurrency: 2},
	}
}

// Load layers defaults, the TOML file at path and the environment. An empty
// path reads DefaultFile when it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		md, err := toml.DecodeFile(file, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("read config %s: unknown keys %v", file, undecoded)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str("ANTHROPIC_API_KEY", &cfg.APIKey)
	str("ANTHROPIC_BASE_URL", &cfg.BaseURL)
	str("F2C_MODEL", &cfg.Model)
	num("F2C_SDK_RETRIES", &cfg.SDKRetries)
	num("F2C_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute)
	num("F2C_MAX_RETRIES", &cfg.MaxRetries)
	maxTokens := int(cfg.MaxTokens)
	num("F2C_MAX_TOKENS", &maxTokens)
	cfg.MaxTokens = int64(maxTokens)
	str("F2C_LANGUAGE", &cfg.Language)
	str("F2C_FORMAT", &cfg.Format)
	str("F2C_OUTPUT_DIR", &cfg.OutputDir)
	flag("F2C_GENERATE_DOC", &cfg.GenerateDoc)
	str("F2C_DOC_BACKEND", &cfg.DocBackend)
	str("F2C_DOC_MODEL", &cfg.DocModel)
	str("F2C_LISTEN", &cfg.Server.Listen)
	num("F2C_SERVER_MAX_CONCURRENT", &cfg.Server.MaxConcurrent)
	num("F2C_BATCH_CONCURRENCY", &cfg.Batch.Concurrency)
	flag("F2C_DEBUG", &cfg.Debug)

	return errors.Join(errs...)
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("max_retries must be at least 1"))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, errors.New("max_tokens must be at least 1"))
	}
	if err := checkFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.DocBackend {
	case DocBackendAnthropic, DocBackendGollm:
	default:
		errs = append(errs, fmt.Errorf("doc_backend %q: want %q or %q", c.DocBackend, DocBackendAnthropic, DocBackendGollm))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, errors.New("server.max_concurrent must be at least 1"))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, errors.New("batch.concurrency must be at least 1"))
	}
	if c.Pricing.InputPerMTok < 0 || c.Pricing.OutputPerMTok < 0 {
		errs = append(errs, errors.New("pricing must not be negative"))
	}
	return errors.Join(errs...)
}

// MetricsPricing converts the configured prices.
func (c Config) MetricsPricing() metrics.Pricing {
	return metrics.Pricing{InputPerMTok: c.Pricing.InputPerMTok, OutputPerMTok: c.Pricing.OutputPerMTok}
}

// checkFormat accepts formats that can be both rendered and written.
func checkFormat(format string) error {
	if err := plotting.CheckFormat(format); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	ext := "." + strings.ToLower(strings.TrimPrefix(format, "."))
	if !slices.Contains(fsops.ArtifactExtensions, ext) {
		return fmt.Errorf("format %q: not an accepted artifact extension", format)
	}
	return nil
}
