// Package config loads morphc settings from TOML.
//
// Defaults are embedded (defaults.toml); a user file only needs the keys it
// overrides. Values map 1:1 to morphc.toml.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/roach88/morphc/internal/ir"
)

//go:embed defaults.toml
var defaultsTOML string

// MaxVariableNames is the size of the single-letter variable alphabet.
const MaxVariableNames = 52

// Config holds compiler ceilings, naming conventions and unit factors.
type Config struct {
	// MaxTerms is the maximum number of bound variables per expression.
	MaxTerms int `toml:"max_terms"`

	// MaxExprLen is the maximum rendered expression length.
	MaxExprLen int `toml:"max_expr_len"`

	// Precision is the number of decimals kept in numeric literals.
	Precision int `toml:"precision"`

	// FinalSuffix names the derived channel of a control: "Smile" -> "Smile(fin)".
	FinalSuffix string `toml:"final_suffix"`

	// LocationAdjuster is the channel wrapped around joint translation batches.
	LocationAdjuster string `toml:"location_adjuster"`

	// JointSuffixes are stripped from joint names before alias lookup.
	JointSuffixes []string `toml:"joint_suffixes"`

	// JointAliases maps external joint names to canonical ones.
	JointAliases map[string]string `toml:"joint_aliases"`

	// Units holds runtime units per asset unit.
	Units Units `toml:"units"`
}

// Units are the per-transform-kind unit factors.
type Units struct {
	Translation float64 `toml:"translation"`
	Rotation    float64 `toml:"rotation"`
	Scale       float64 `toml:"scale"`
}

// Factor returns the unit factor for kind.
func (u Units) Factor(kind ir.TransformKind) float64 {
	switch kind {
	case ir.Translation:
		return u.Translation
	case ir.Rotation:
		return u.Rotation
	}
	return u.Scale
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if _, err := toml.Decode(defaultsTOML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	if cfg.JointAliases == nil {
		cfg.JointAliases = map[string]string{}
	}
	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the ceilings and unit factors.
func (c *Config) Validate() error {
	if c.MaxTerms < 1 || c.MaxTerms > MaxVariableNames {
		return fmt.Errorf("max_terms must be between 1 and %d, got %d", MaxVariableNames, c.MaxTerms)
	}
	if c.MaxExprLen < 1 {
		return fmt.Errorf("max_expr_len must be positive, got %d", c.MaxExprLen)
	}
	if c.Precision < 1 || c.Precision > 17 {
		return fmt.Errorf("precision must be between 1 and 17, got %d", c.Precision)
	}
	if c.FinalSuffix == "" {
		return fmt.Errorf("final_suffix must not be empty")
	}
	for _, kind := range []ir.TransformKind{ir.Translation, ir.Rotation, ir.Scale} {
		if c.Units.Factor(kind) == 0 {
			return fmt.Errorf("units.%s must be non-zero", kind)
		}
	}
	return nil
}
