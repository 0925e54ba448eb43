package compiler

import (
	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/ir"
)

// Options are the compiler settings taken from config.Config.
type Options struct {
	MaxTerms         int
	MaxExprLen       int
	Precision        int
	FinalSuffix      string
	LocationAdjuster string
	JointSuffixes    []string
	JointAliases     map[string]string

	// RestJoints activates rest contributions for the named joints.
	RestJoints []string

	// AllRest activates every rest contribution.
	AllRest bool
}

// OptionsFromConfig copies the compiler-relevant settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxTerms:         cfg.MaxTerms,
		MaxExprLen:       cfg.MaxExprLen,
		Precision:        cfg.Precision,
		FinalSuffix:      cfg.FinalSuffix,
		LocationAdjuster: cfg.LocationAdjuster,
		JointSuffixes:    cfg.JointSuffixes,
		JointAliases:     cfg.JointAliases,
	}
}

// DefaultOptions returns the options of config.Default.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func (o Options) precision() int {
	if o.Precision <= 0 {
		return ir.DefaultPrecision
	}
	return o.Precision
}

func (o Options) batcher() Batcher {
	return Batcher{MaxTerms: o.MaxTerms, MaxExprLen: o.MaxExprLen, Precision: o.precision()}
}
