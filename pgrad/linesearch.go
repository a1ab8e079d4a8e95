package pgrad

import (
	"fmt"

	"github.com/dcchut/tensorforce"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Default line-search decay factor.
const DefaultLineSearchDecay = 0.7

// Default maximum number of line-search iterations.
const DefaultMaxLineSearch = 20

// Arguments bundles the callbacks a comparison-based
// optimizer uses to evaluate a model.
//
// For likelihood-ratio models, use
// (*ProbRatio).OptimizerArguments.
type Arguments struct {
	// Params are the variables the optimizer may adjust.
	Params []*anydiff.Var

	// Reference snapshots the current policy on a batch.
	Reference func(b *tensorforce.Batch) anyvec.Vector

	// Compare measures the gain of the current policy
	// over a reference snapshot of it.
	Compare func(reference anyvec.Vector, b *tensorforce.Batch) anyvec.Numeric
}

// LineSearch applies gradient steps by exponentially
// decaying them until the step improves the comparison
// gain of a model.
type LineSearch struct {
	// Decay is the exponential decay factor applied to
	// rejected steps.
	// It should be between 0 and 1.
	//
	// If 0, DefaultLineSearchDecay is used.
	Decay float64

	// MaxIters is the maximum number of step sizes to
	// try before giving up on the step.
	//
	// If 0, DefaultMaxLineSearch is used.
	MaxIters int

	// Log, if non-nil, is used to log information about
	// line-search iterations.
	Log func(str string)
}

// Run searches for a scale of the step which improves the
// comparison gain on the batch and applies the scaled
// step if one is found.
//
// It returns the achieved gain and true, or a nil gain
// and false if every scale was rejected and the
// parameters were left unchanged.
//
// This temporarily modifies the parameters.
// Thus, it is not safe to use Run() while using the model
// on a different Goroutine.
func (l *LineSearch) Run(args *Arguments, b *tensorforce.Batch,
	step anydiff.Grad) (gain anyvec.Numeric, ok bool) {
	if len(step) == 0 {
		return nil, false
	}
	c := creatorFromGrad(step)
	ops := c.NumOps()

	reference := args.Reference(b)
	base := args.Compare(reference, b)
	l.logf("line search: base gain is %v", base)

	for i := 0; i < l.maxIters(); i++ {
		backup := backupParams(args.Params)
		step.AddToVars()
		gain := args.Compare(reference, b)
		if ops.Greater(gain, base) {
			l.logf("line search: accepted gain %v after %d decays", gain, i)
			return gain, true
		}
		restoreParams(args.Params, backup)
		step.Scale(c.MakeNumeric(l.decay()))
	}

	l.logf("line search: no acceptable step")
	return nil, false
}

func (l *LineSearch) decay() float64 {
	if l.Decay == 0 {
		return DefaultLineSearchDecay
	} else {
		return l.Decay
	}
}

func (l *LineSearch) maxIters() int {
	if l.MaxIters == 0 {
		return DefaultMaxLineSearch
	} else {
		return l.MaxIters
	}
}

func (l *LineSearch) logf(format string, args ...interface{}) {
	if l.Log != nil {
		l.Log(fmt.Sprintf(format, args...))
	}
}

func backupParams(params []*anydiff.Var) []anyvec.Vector {
	var res []anyvec.Vector
	for _, p := range params {
		res = append(res, p.Vector.Copy())
	}
	return res
}

func restoreParams(params []*anydiff.Var, backup []anyvec.Vector) {
	for i, x := range backup {
		params[i].Vector.Set(x)
	}
}

func creatorFromGrad(g anydiff.Grad) anyvec.Creator {
	for v := range g {
		return v.Vector.Creator()
	}
	panic("empty gradient")
}
