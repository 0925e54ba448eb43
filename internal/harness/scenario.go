package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/morphc/internal/scene"
)

// Scenario defines an import test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene is the path of a scene YAML file, relative to the scenario.
	Scene string `yaml:"scene,omitempty"`

	// Inline is a scene given in the scenario itself. Used when Scene is empty.
	Inline *scene.File `yaml:"inline_scene,omitempty"`

	// Limits override compiler ceilings.
	Limits Limits `yaml:"limits,omitempty"`

	// Passes are run in order against the same store.
	Passes []Pass `yaml:"passes"`

	// Assertions validate the store after the last pass.
	Assertions []Assertion `yaml:"assertions"`
}

// Limits override compiler ceilings; zero keeps the default.
type Limits struct {
	MaxTerms   int `yaml:"max_terms,omitempty"`
	MaxExprLen int `yaml:"max_expr_len,omitempty"`
}

// Pass is one import session.
type Pass struct {
	// Assets are CUE files, relative to the scenario.
	Assets []string `yaml:"assets,omitempty"`

	// Source is inline CUE, used in addition to Assets.
	Source string `yaml:"source,omitempty"`

	// Rest activates rest contributions for these joints.
	Rest []string `yaml:"rest,omitempty"`
}

// Assertion validates the final store.
type Assertion struct {
	// Type specifies the assertion type:
	// - "value": evaluate Target with Set applied and compare to Expect
	// - "driver": check the kind (and optionally the text) attached to Target
	// - "detached": check that Target has no driver
	// - "problems": count report problems with Code in the last pass
	// - "parent": check Joint's parent is Parent ("" for a root)
	Type string `yaml:"type"`

	Target    string             `yaml:"target,omitempty"`
	Set       map[string]float64 `yaml:"set,omitempty"`
	Expect    *float64           `yaml:"expect,omitempty"`
	Tolerance float64            `yaml:"tolerance,omitempty"`
	Kind      string             `yaml:"kind,omitempty"`
	Text      string             `yaml:"text,omitempty"`
	Code      string             `yaml:"code,omitempty"`
	Count     int                `yaml:"count,omitempty"`
	Joint     string             `yaml:"joint,omitempty"`
	Parent    string             `yaml:"parent,omitempty"`
}

// Assertion type constants.
const (
	AssertValue    = "value"
	AssertDriver   = "driver"
	AssertDetached = "detached"
	AssertProblems = "problems"
	AssertParent   = "parent"
)

// LoadScenario reads and parses a scenario YAML file. Relative asset and
// scene paths are resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if s.Scene != "" && !filepath.IsAbs(s.Scene) {
		s.Scene = filepath.Join(base, s.Scene)
	}
	for i := range s.Passes {
		for j, a := range s.Passes[i].Assets {
			if !filepath.IsAbs(a) {
				s.Passes[i].Assets[j] = filepath.Join(base, a)
			}
		}
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Passes) == 0 {
		return fmt.Errorf("passes list is required and must be non-empty")
	}
	if s.Scene != "" {
		if _, err := os.Stat(s.Scene); os.IsNotExist(err) {
			return fmt.Errorf("scene file not found: %s", s.Scene)
		}
	}
	for i, p := range s.Passes {
		if len(p.Assets) == 0 && p.Source == "" {
			return fmt.Errorf("passes[%d]: assets or source is required", i)
		}
		for _, a := range p.Assets {
			if _, err := os.Stat(a); os.IsNotExist(err) {
				return fmt.Errorf("passes[%d]: asset file not found: %s", i, a)
			}
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertValue:
		if a.Target == "" || a.Expect == nil {
			return fmt.Errorf("assertions[%d]: target and expect are required for value", index)
		}
	case AssertDriver:
		if a.Target == "" || a.Kind == "" {
			return fmt.Errorf("assertions[%d]: target and kind are required for driver", index)
		}
	case AssertDetached:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for detached", index)
		}
	case AssertProblems:
		if a.Code == "" || a.Count < 0 {
			return fmt.Errorf("assertions[%d]: code and a non-negative count are required for problems", index)
		}
	case AssertParent:
		if a.Joint == "" {
			return fmt.Errorf("assertions[%d]: joint is required for parent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
