package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during asset loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants for asset loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeBadOutput = "E201" // Invalid or missing formula output
	ErrCodeBadInput  = "E202" // Invalid or missing formula input
	ErrCodeBadStage  = "E203" // Unknown formula stage
	ErrCodeBadPoints = "E204" // Malformed control points
)

// LoadResult contains the assets loaded from a directory.
type LoadResult struct {
	Assets    []Asset
	FileCount int
}

// LoadError represents an error that occurred during asset loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads every morph declared by the CUE files in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("assets directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing assets directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result, errs := decodeMorphs(value, mode)
	result.FileCount = len(cueFiles)
	return result, errs
}

// LoadString decodes morphs from CUE source text. filename is used only
// for error positions.
func LoadString(filename, src string) (*LoadResult, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	result, errs := decodeMorphs(value, LoadModeCollectAll)
	result.FileCount = 1
	return result, errs
}

func decodeMorphs(value cue.Value, mode LoadMode) (*LoadResult, []error) {
	var errs []error
	result := &LoadResult{}

	morphsVal := value.LookupPath(cue.ParsePath("morph"))
	if !morphsVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no morphs found in assets"}}
	}
	iter, err := morphsVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating morphs: %v", err)}}
	}
	for iter.Next() {
		a, err := DecodeAsset(iter.Value())
		if err != nil {
			errs = append(errs, convertDecodeError(err, "morph."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Assets = append(result.Assets, *a)
	}

	// CUE field order follows file order; keep a stable order across
	// packages split over several files.
	sort.SliceStable(result.Assets, func(i, j int) bool {
		return result.Assets[i].File < result.Assets[j].File
	})
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertDecodeError converts a decode error to a LoadError with position info.
func convertDecodeError(err error, context string) *LoadError {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(decodeErr.Field),
			Message: fmt.Sprintf("%s: %s", context, decodeErr.Message),
			Pos:     decodeErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a decode error field to an error code.
func MapFieldToErrorCode(field string) string {
	// "formulas[0].inputs[1]" classifies as ".inputs".
	if i := strings.LastIndexByte(field, '['); i > 0 && strings.HasSuffix(field, "]") {
		field = field[:i]
	}
	switch ext := filepath.Ext(field); ext {
	case ".output":
		return ErrCodeBadOutput
	case ".ref", ".inputs":
		return ErrCodeBadInput
	case ".stage":
		return ErrCodeBadStage
	case ".points":
		return ErrCodeBadPoints
	}
	if field == "cue" {
		return ErrCodeBuildFailed
	}
	return ErrCodeGeneric
}
