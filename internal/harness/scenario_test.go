package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario and an empty asset next to it.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("morph: A: {}\n"), 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
passes:
  - assets: [a.cue]
    rest: [lShldrBend]
assertions:
  - type: value
    target: "A(fin)"
    set: {A: 1}
    expect: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, "Test scenario for validation", s.Description)
	require.Len(t, s.Passes, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.cue"), s.Passes[0].Assets[0])
	assert.Equal(t, []string{"lShldrBend"}, s.Passes[0].Rest)
	require.Len(t, s.Assertions, 1)
	require.NotNil(t, s.Assertions[0].Expect)
	assert.Equal(t, 1.0, *s.Assertions[0].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "unknown key"
passes:
  - assets: [a.cue]
assertion:
  - type: value
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\npasses: [{assets: [a.cue]}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\npasses: [{assets: [a.cue]}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no passes",
			content: "name: n\ndescription: d\n",
			wantErr: "passes list is required",
		},
		{
			name:    "empty pass",
			content: "name: n\ndescription: d\npasses: [{rest: [x]}]\n",
			wantErr: "assets or source is required",
		},
		{
			name:    "missing asset",
			content: "name: n\ndescription: d\npasses: [{assets: [missing.cue]}]\n",
			wantErr: "asset file not found",
		},
		{
			name:    "missing scene",
			content: "name: n\ndescription: d\nscene: none.yaml\npasses: [{assets: [a.cue]}]\n",
			wantErr: "scene file not found",
		},
		{
			name:    "value without expect",
			content: "name: n\ndescription: d\npasses: [{assets: [a.cue]}]\nassertions: [{type: value, target: x}]\n",
			wantErr: "target and expect are required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\npasses: [{assets: [a.cue]}]\nassertions: [{type: vibes}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "parent without joint",
			content: "name: n\ndescription: d\npasses: [{assets: [a.cue]}]\nassertions: [{type: parent}]\n",
			wantErr: "joint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
