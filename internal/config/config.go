// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smileynet/vcf2csv/internal/convert"
	"github.com/smileynet/vcf2csv/internal/logging"
	"github.com/smileynet/vcf2csv/internal/vcard"
)

// Config holds all vcf2csv configuration.
type Config struct {
	Output  Output  `yaml:"output"`
	Convert Convert `yaml:"convert"`
	Log     Log     `yaml:"log"`
}

// Output holds output file settings.
type Output struct {
	Path string `yaml:"path"`
}

// Convert holds conversion settings.
type Convert struct {
	OnMissingRequired string   `yaml:"on_missing_required"` // "abort" | "skip"
	Exclude           []string `yaml:"exclude"`             // Properties left out of the attributes column
	Decode            string   `yaml:"decode"`              // "replace" | "latin1"
}

// Log holds diagnostic output settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "TEXT" | "JSON"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Output: Output{
			Path: "output.csv",
		},
		Convert: Convert{
			OnMissingRequired: string(convert.PolicySkip),
			Exclude:           []string{"EMAIL", "VERSION", "PRODID"},
			Decode:            string(vcard.DecodeReplace),
		},
		Log: Log{
			Level:  "INFO",
			Format: string(logging.FormatText),
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files and empty paths are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return errors.New("config: output.path cannot be empty")
	}
	if _, err := convert.ParsePolicy(c.Convert.OnMissingRequired); err != nil {
		return fmt.Errorf("config: convert.on_missing_required: %w", err)
	}
	for _, name := range c.Convert.Exclude {
		if strings.TrimSpace(name) == "" {
			return errors.New("config: convert.exclude cannot contain empty names")
		}
	}
	if _, err := vcard.ParseDecode(c.Convert.Decode); err != nil {
		return fmt.Errorf("config: convert.decode: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config: log.format: %w", err)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: VCF2CSV_OUTPUT, VCF2CSV_ON_MISSING, VCF2CSV_EXCLUDE
// (comma separated), VCF2CSV_DECODE, VCF2CSV_LOG_LEVEL, VCF2CSV_LOG_FORMAT.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("VCF2CSV_OUTPUT"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("VCF2CSV_ON_MISSING"); v != "" {
		c.Convert.OnMissingRequired = v
	}
	if v := os.Getenv("VCF2CSV_EXCLUDE"); v != "" {
		c.Convert.Exclude = SplitList(v)
	}
	if v := os.Getenv("VCF2CSV_DECODE"); v != "" {
		c.Convert.Decode = v
	}
	if v := os.Getenv("VCF2CSV_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VCF2CSV_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Output  *rawOutput  `yaml:"output"`
	Convert *rawConvert `yaml:"convert"`
	Log     *rawLog     `yaml:"log"`
}

type rawOutput struct {
	Path *string `yaml:"path"`
}

type rawConvert struct {
	OnMissingRequired *string   `yaml:"on_missing_required"`
	Exclude           *[]string `yaml:"exclude"`
	Decode            *string   `yaml:"decode"`
}

type rawLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
// A layer's exclude list replaces the current one rather than extending it.
func (c *Config) merge(layer *rawConfig) {
	if layer.Output != nil {
		if layer.Output.Path != nil {
			c.Output.Path = *layer.Output.Path
		}
	}
	if layer.Convert != nil {
		if layer.Convert.OnMissingRequired != nil {
			c.Convert.OnMissingRequired = *layer.Convert.OnMissingRequired
		}
		if layer.Convert.Exclude != nil {
			c.Convert.Exclude = slices.Clone(*layer.Convert.Exclude)
		}
		if layer.Convert.Decode != nil {
			c.Convert.Decode = *layer.Convert.Decode
		}
	}
	if layer.Log != nil {
		if layer.Log.Level != nil {
			c.Log.Level = *layer.Log.Level
		}
		if layer.Log.Format != nil {
			c.Log.Format = *layer.Log.Format
		}
	}
}
