// Package config loads run configuration from HCL files.
//
//	log_level            = "info"
//	log_format           = "text"
//	mock                 = false
//	max_completion_calls = 50
//	budget               = 2.5
//
//	provider "openai" {
//	  model       = "gpt-4o-mini"
//	  api_key     = env("OPENAI_API_KEY")
//	  temperature = 0.7
//	}
//
//	price "gpt-4o-mini" {
//	  prompt     = 0.15
//	  completion = 0.60
//	}
//
//	vault {
//	  root = "./notes"
//	}
//
// Expressions may call env(name) and a few string functions (upper, lower,
// trimspace, coalesce).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hupe1980/canvasmesh/engine"
	"github.com/hupe1980/canvasmesh/logging"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// ErrInvalidConfig wraps semantic faults found after decoding.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the decoded run configuration.
type Config struct {
	LogLevel           string     `hcl:"log_level,optional"`
	LogFormat          string     `hcl:"log_format,optional"`
	Mock               bool       `hcl:"mock,optional"`
	MaxCompletionCalls int        `hcl:"max_completion_calls,optional"`
	Budget             float64    `hcl:"budget,optional"`
	Providers          []Provider `hcl:"provider,block"`
	Prices             []Price    `hcl:"price,block"`
	Vault              *Vault     `hcl:"vault,block"`
}

// Provider selects and parameterizes the completion provider.
type Provider struct {
	Name        string   `hcl:"name,label"`
	Model       string   `hcl:"model,optional"`
	APIKey      string   `hcl:"api_key,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	MaxTokens   int64    `hcl:"max_tokens,optional"`
}

// Price is the cost of a model per million tokens.
type Price struct {
	Model      string  `hcl:"model,label"`
	Prompt     float64 `hcl:"prompt"`
	Completion float64 `hcl:"completion"`
}

// Vault points at the note directory used by reference and output nodes.
type Vault struct {
	Root string `hcl:"root"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{LogLevel: "info", LogFormat: "text"}
}

// Load reads and decodes the HCL file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	cfg := Default()
	diags = gohcl.DecodeBody(file.Body, evalContext(), cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the decoded values.
func (c *Config) Validate() error {
	if len(c.Providers) > 1 {
		return fmt.Errorf("%w: at most one provider block is allowed, got %d", ErrInvalidConfig, len(c.Providers))
	}
	for _, p := range c.Providers {
		switch p.Name {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, p.Name)
		}
	}
	seen := make(map[string]bool, len(c.Prices))
	for _, p := range c.Prices {
		if seen[p.Model] {
			return fmt.Errorf("%w: duplicate price for %q", ErrInvalidConfig, p.Model)
		}
		seen[p.Model] = true
		if p.Prompt < 0 || p.Completion < 0 {
			return fmt.Errorf("%w: negative price for %q", ErrInvalidConfig, p.Model)
		}
	}
	if c.MaxCompletionCalls < 0 {
		return fmt.Errorf("%w: max_completion_calls must not be negative", ErrInvalidConfig)
	}
	if c.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Provider returns the configured provider block, if any.
func (c *Config) Provider() (Provider, bool) {
	if len(c.Providers) == 0 {
		return Provider{}, false
	}
	return c.Providers[0], true
}

// PriceTable converts the price blocks for engine.Options.Prices.
func (c *Config) PriceTable() map[string]engine.Price {
	out := make(map[string]engine.Price, len(c.Prices))
	for _, p := range c.Prices {
		out[p.Model] = engine.Price{PromptPerMillion: p.Prompt, CompletionPerMillion: p.Completion}
	}
	return out
}

// Logger builds the run logger described by log_level and log_format. It
// writes to stderr so that stdout stays free for run reports.
func (c *Config) Logger() *logging.RunLogger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(c.LogLevel)
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	lc.Output = os.Stderr
	lc.Component = "canvasmesh"
	return logging.NewLogger(lc)
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env":       envFunc,
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"coalesce":  stdlib.CoalesceFunc,
		},
	}
}

// envFunc returns the value of an environment variable, or "" when unset.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})
