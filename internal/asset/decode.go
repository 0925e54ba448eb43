package asset

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// DecodeAsset parses a CUE value into an Asset.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the morph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`morph: Smile: { formulas: [...] }`)
//	a, err := DecodeAsset(v.LookupPath(cue.ParsePath("morph.Smile")))
func DecodeAsset(v cue.Value) (*Asset, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	a := &Asset{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		a.Name = labels[len(labels)-1].String()
		if unq, err := strconv.Unquote(a.Name); err == nil {
			a.Name = unq
		}
	}
	if pos := v.Pos(); pos.IsValid() {
		a.File = pos.Filename()
	}

	formulasVal := v.LookupPath(cue.ParsePath("formulas"))
	if !formulasVal.Exists() {
		// A morph with no formulas only exposes its own channel.
		return a, nil
	}

	iter, err := formulasVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		f, err := decodeFormula(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		a.Formulas = append(a.Formulas, f)
	}
	return a, nil
}

func decodeFormula(v cue.Value, index int) (Formula, error) {
	var f Formula
	field := fmt.Sprintf("formulas[%d]", index)

	outVal := v.LookupPath(cue.ParsePath("output"))
	if !outVal.Exists() {
		return f, &DecodeError{Field: field + ".output", Message: "output is required", Pos: v.Pos()}
	}
	outStr, err := outVal.String()
	if err != nil {
		return f, formatCUEError(err)
	}
	if f.Output, err = ParseRef(outStr); err != nil {
		return f, &DecodeError{Field: field + ".output", Message: err.Error(), Pos: outVal.Pos()}
	}

	f.Stage = StageSum
	if stageVal := v.LookupPath(cue.ParsePath("stage")); stageVal.Exists() {
		stage, err := stageVal.String()
		if err != nil {
			return f, formatCUEError(err)
		}
		switch Stage(stage) {
		case StageSum, StageMult:
			f.Stage = Stage(stage)
		default:
			return f, &DecodeError{
				Field:   field + ".stage",
				Message: fmt.Sprintf("stage must be %q or %q, got %q", StageSum, StageMult, stage),
				Pos:     stageVal.Pos(),
			}
		}
	}

	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if !inputsVal.Exists() {
		return f, &DecodeError{Field: field + ".inputs", Message: "inputs are required", Pos: v.Pos()}
	}
	iter, err := inputsVal.List()
	if err != nil {
		return f, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		in, err := decodeInput(iter.Value(), fmt.Sprintf("%s.inputs[%d]", field, i))
		if err != nil {
			return f, err
		}
		f.Inputs = append(f.Inputs, in)
	}
	return f, nil
}

func decodeInput(v cue.Value, field string) (Input, error) {
	in := Input{Factor: 1}

	// Plain string shorthand: "name:?value" with factor 1.
	if s, err := v.String(); err == nil {
		ref, err := ParseRef(s)
		if err != nil {
			return in, &DecodeError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		in.Ref = ref
		return in, nil
	}

	refVal := v.LookupPath(cue.ParsePath("ref"))
	if !refVal.Exists() {
		return in, &DecodeError{Field: field + ".ref", Message: "ref is required", Pos: v.Pos()}
	}
	refStr, err := refVal.String()
	if err != nil {
		return in, formatCUEError(err)
	}
	if in.Ref, err = ParseRef(refStr); err != nil {
		return in, &DecodeError{Field: field + ".ref", Message: err.Error(), Pos: refVal.Pos()}
	}

	if factorVal := v.LookupPath(cue.ParsePath("factor")); factorVal.Exists() {
		if in.Factor, err = factorVal.Float64(); err != nil {
			return in, formatCUEError(err)
		}
	}

	pointsVal := v.LookupPath(cue.ParsePath("points"))
	if !pointsVal.Exists() {
		return in, nil
	}
	iter, err := pointsVal.List()
	if err != nil {
		return in, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		var pair []float64
		if err := iter.Value().Decode(&pair); err != nil {
			return in, formatCUEError(err)
		}
		if len(pair) != 2 {
			return in, &DecodeError{
				Field:   fmt.Sprintf("%s.points[%d]", field, i),
				Message: "control point must be [x, y]",
				Pos:     iter.Value().Pos(),
			}
		}
		in.Points = append(in.Points, Point{X: pair[0], Y: pair[1]})
	}
	if len(in.Points) < 2 {
		return in, &DecodeError{Field: field + ".points", Message: "need at least two control points", Pos: pointsVal.Pos()}
	}
	return in, nil
}

// DecodeError represents a decoding error with source position.
type DecodeError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DecodeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &DecodeError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
