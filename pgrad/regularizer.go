package pgrad

import (
	"github.com/unixpickle/anydiff"
)

// A Regularizer produces named penalty terms for a batch
// of states.
//
// Each term is a single value which is subtracted from
// comparison gains.
type Regularizer interface {
	// Losses produces the named penalty terms.
	// Every term has length one.
	//
	// The internals argument may be nil for stateless
	// policies.
	Losses(states, internals anydiff.Res, batchSize int) map[string]anydiff.Res
}

// L2Reg penalizes parameters with large magnitudes.
type L2Reg struct {
	// Params are the parameters to decay.
	Params []*anydiff.Var

	// Coeff controls the strength of the regularizer.
	Coeff float64
}

// Losses produces an "l2-regularization" term containing
// the scaled squared norm of the parameters.
func (l *L2Reg) Losses(states, internals anydiff.Res,
	batchSize int) map[string]anydiff.Res {
	c := states.Output().Creator()
	var sum anydiff.Res
	for _, p := range l.Params {
		sq := anydiff.Sum(anydiff.Square(p))
		if sum == nil {
			sum = sq
		} else {
			sum = anydiff.Add(sum, sq)
		}
	}
	return map[string]anydiff.Res{
		"l2-regularization": anydiff.Scale(sum, c.MakeNumeric(l.Coeff)),
	}
}

// EntropyReg rewards policies with high-entropy action
// distributions by producing a negative penalty term.
type EntropyReg struct {
	// Entropy computes per-instance entropies for a batch
	// of states, e.g. (*ProbRatio).Entropy.
	Entropy func(states, internals anydiff.Res, batchSize int) anydiff.Res

	// Coeff controls the strength of the regularizer.
	// A value of 0.01 is a good starting point.
	Coeff float64
}

// Losses produces an "entropy-regularization" term
// containing the scaled negative mean entropy.
func (e *EntropyReg) Losses(states, internals anydiff.Res,
	batchSize int) map[string]anydiff.Res {
	c := states.Output().Creator()
	ent := e.Entropy(states, internals, batchSize)
	mean := anydiff.Scale(anydiff.Sum(ent),
		c.MakeNumeric(1/float64(batchSize)))
	return map[string]anydiff.Res{
		"entropy-regularization": anydiff.Scale(mean, c.MakeNumeric(-e.Coeff)),
	}
}

// MultiRegularizer combines the terms of several
// regularizers.
//
// The combined regularizers must produce distinct names.
type MultiRegularizer []Regularizer

// Losses merges the terms of every regularizer.
func (m MultiRegularizer) Losses(states, internals anydiff.Res,
	batchSize int) map[string]anydiff.Res {
	res := map[string]anydiff.Res{}
	for _, r := range m {
		for name, loss := range r.Losses(states, internals, batchSize) {
			if _, ok := res[name]; ok {
				panic("duplicate loss name: " + name)
			}
			res[name] = loss
		}
	}
	return res
}
