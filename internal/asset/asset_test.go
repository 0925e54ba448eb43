package asset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morphc/internal/ir"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
		str  string
	}{
		{
			in:   "Smile_L:?value",
			want: Ref{Name: "Smile_L", Kind: RefValue, Channel: "value"},
			str:  "Smile_L:?value",
		},
		{
			in:   "eCTRLBlink",
			want: Ref{Name: "eCTRLBlink", Kind: RefValue, Channel: "value"},
			str:  "eCTRLBlink:?value",
		},
		{
			in:   "lForearmBend:?rotation/x",
			want: Ref{Name: "lForearmBend", Kind: RefTransform, Transform: ir.Rotation, Axis: 0, Channel: "rotation"},
			str:  "lForearmBend:?rotation/x",
		},
		{
			in:   "hip:?translation/2",
			want: Ref{Name: "hip", Kind: RefTransform, Transform: ir.Translation, Axis: 2, Channel: "translation"},
			str:  "hip:?translation/z",
		},
		{
			in:   "lShin:?end_point/y",
			want: Ref{Name: "lShin", Kind: RefRest, Transform: ir.Translation, Axis: 1, Channel: "end_point"},
			str:  "lShin:?end_point/y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseRefErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"  ",
		":?value",
		"hip:?rotation",
		"hip:?rotation/w",
		"hip:?orient/x",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRef(in)
			assert.Error(t, err)
		})
	}
}

const faceCUE = `
morph: eCTRLSmile: {
	formulas: [{
		output: "Smile_L:?value"
		inputs: [{ref: "eCTRLSmile:?value", factor: 0.5}, "eCTRLHappy"]
	}, {
		output: "pJCMForeArmFwd:?value"
		inputs: [{ref: "lForearmBend:?rotation/x", points: [[0, 0], [135, 1]]}]
	}, {
		output: "Smile_L:?value"
		stage: "mult"
		inputs: [{ref: "Strength", factor: -1}]
	}]
}
morph: "Plain Morph": {}
`

func TestLoadString(t *testing.T) {
	result, errs := LoadString("face.cue", faceCUE)
	require.Empty(t, errs)
	require.Len(t, result.Assets, 2)
	assert.Equal(t, 1, result.FileCount)

	smile := result.Assets[0]
	assert.Equal(t, "eCTRLSmile", smile.Name)
	assert.Equal(t, "face.cue", smile.File)
	require.Len(t, smile.Formulas, 3)

	f0 := smile.Formulas[0]
	assert.Equal(t, "Smile_L", f0.Output.Name)
	assert.Equal(t, StageSum, f0.Stage)
	require.Len(t, f0.Inputs, 2)
	assert.Equal(t, 0.5, f0.Inputs[0].Factor)
	assert.Equal(t, "eCTRLHappy", f0.Inputs[1].Ref.Name)
	assert.Equal(t, 1.0, f0.Inputs[1].Factor, "shorthand inputs default to factor 1")

	f1 := smile.Formulas[1]
	require.Len(t, f1.Inputs, 1)
	assert.Equal(t, RefTransform, f1.Inputs[0].Ref.Kind)
	assert.Equal(t, []Point{{0, 0}, {135, 1}}, f1.Inputs[0].Points)
	assert.Equal(t, 1.0, f1.Inputs[0].Factor)

	f2 := smile.Formulas[2]
	assert.Equal(t, StageMult, f2.Stage)
	assert.Equal(t, -1.0, f2.Inputs[0].Factor)

	plain := result.Assets[1]
	assert.Equal(t, "Plain Morph", plain.Name)
	assert.Empty(t, plain.Formulas)
}

func loadErrorCodes(errs []error) []string {
	var codes []string
	for _, err := range errs {
		var le *LoadError
		if errors.As(err, &le) {
			codes = append(codes, le.Code)
		} else {
			codes = append(codes, "?")
		}
	}
	return codes
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", "morph: {", ErrCodeBuildFailed},
		{"no morphs", "other: 1", ErrCodeGeneric},
		{"missing output", `morph: A: formulas: [{inputs: ["x"]}]`, ErrCodeBadOutput},
		{"bad output ref", `morph: A: formulas: [{output: "a:?rotation", inputs: ["x"]}]`, ErrCodeBadOutput},
		{"missing inputs", `morph: A: formulas: [{output: "a"}]`, ErrCodeBadInput},
		{"bad shorthand", `morph: A: formulas: [{output: "a", inputs: ["b:?scale/q"]}]`, ErrCodeBadInput},
		{"missing ref", `morph: A: formulas: [{output: "a", inputs: [{factor: 2}]}]`, ErrCodeBadInput},
		{"bad stage", `morph: A: formulas: [{output: "a", stage: "div", inputs: ["x"]}]`, ErrCodeBadStage},
		{"one point", `morph: A: formulas: [{output: "a", inputs: [{ref: "x", points: [[0, 1]]}]}]`, ErrCodeBadPoints},
		{"short point", `morph: A: formulas: [{output: "a", inputs: [{ref: "x", points: [[0, 1], [2]]}]}]`, ErrCodeBadPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadString("bad.cue", tt.src)
			require.Len(t, errs, 1)
			assert.Equal(t, []string{tt.code}, loadErrorCodes(errs))
		})
	}
}

func TestLoadStringCollectsAll(t *testing.T) {
	src := `
morph: A: formulas: [{output: "a", stage: "div", inputs: ["x"]}]
morph: B: formulas: [{output: "b", inputs: ["y"]}]
morph: C: formulas: [{inputs: ["z"]}]
`
	result, errs := LoadString("mixed.cue", src)
	assert.Equal(t, []string{ErrCodeBadStage, ErrCodeBadOutput}, loadErrorCodes(errs))
	require.Len(t, result.Assets, 1)
	assert.Equal(t, "B", result.Assets[0].Name)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"formulas[0].output":              ErrCodeBadOutput,
		"formulas[0].inputs":              ErrCodeBadInput,
		"formulas[0].inputs[2]":           ErrCodeBadInput,
		"formulas[0].inputs[2].ref":       ErrCodeBadInput,
		"formulas[1].stage":               ErrCodeBadStage,
		"formulas[1].inputs[0].points":    ErrCodeBadPoints,
		"formulas[1].inputs[0].points[3]": ErrCodeBadPoints,
		"cue":                             ErrCodeBuildFailed,
		"something":                       ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(`package face

morph: Blink: formulas: [{output: "Blink_L", inputs: ["Blink"]}]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(`package face

morph: Smile: formulas: [{output: "Smile_L", inputs: ["Smile"]}]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	result, errs := LoadDir(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Assets, 2)
	assert.Equal(t, "Smile", result.Assets[0].Name)
	assert.Equal(t, "Blink", result.Assets[1].Name)
}

func TestLoadDirErrors(t *testing.T) {
	empty := t.TempDir()
	_, errs := LoadDir(empty, LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNoFiles}, loadErrorCodes(errs))

	_, errs = LoadDir(filepath.Join(empty, "missing"), LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNotFound}, loadErrorCodes(errs))

	file := filepath.Join(empty, "plain.cue")
	require.NoError(t, os.WriteFile(file, []byte("morph: {}\n"), 0o644))
	_, errs = LoadDir(file, LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNotFound}, loadErrorCodes(errs))
}

func TestLoadDirFailFast(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(`package face

morph: A: formulas: [{output: "a", stage: "div", inputs: ["x"]}]
morph: B: formulas: [{output: "b", stage: "div", inputs: ["y"]}]
`), 0o644))

	_, errs := LoadDir(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)

	_, errs = LoadDir(dir, LoadModeCollectAll)
	assert.Len(t, errs, 2)
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())

	de := &DecodeError{Field: "formulas[0].output", Message: "output is required"}
	assert.Equal(t, "formulas[0].output: output is required", de.Error())
}
