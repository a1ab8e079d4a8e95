package tensorforce

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Sampler samples from a parametric distribution.
//
// For an example, see Categorical.
type Sampler interface {
	// Sample samples a batch of vectors given a batch
	// of parameter vectors.
	Sample(params anyvec.Vector, batchSize int) anyvec.Vector
}

// A LogProber can compute the log-likelihood of a given
// output of a parametric distribution.
//
// For an example, see Categorical.
type LogProber interface {
	// LogProb produces, for each parameter-output pair
	// in the batch, a log-probability of the parameters
	// producing that output.
	//
	// For continuous distributions, this is the log of
	// the density rather than of the probability.
	LogProb(params anydiff.Res, output anyvec.Vector,
		batchSize int) anydiff.Res
}

// A KLer can compute the KL divergence between two
// batches of distributions.
type KLer interface {
	// KL computes the KL divergence between distributions,
	// given the parameters for each.
	//
	// This is batched, just like LogProb.
	// It produces one value per entry in the batch.
	KL(params1, params2 anydiff.Res, batchSize int) anydiff.Res
}

// An Entropyer can measure the entropy of a batch of
// distributions.
type Entropyer interface {
	// Entropy produces one entropy measure per entry in
	// the batch of parameters.
	Entropy(params anydiff.Res, batchSize int) anydiff.Res
}

// A Distribution is a parameterized action distribution
// for one action channel.
//
// Unlike a bare Sampler or LogProber, a Distribution owns
// the projection from a network embedding to its
// parameter space, so its Parameterize output is what the
// other methods expect as params.
type Distribution interface {
	Sampler
	LogProber
	KLer
	Entropyer

	// Parameterize produces distribution parameters from
	// a batch of network embeddings.
	Parameterize(embedding anydiff.Res, batchSize int) anydiff.Res

	// Parameters returns the parameters of the projection
	// owned by the distribution.
	Parameters() []*anydiff.Var
}

func batchedDot(vecs1, vecs2 anydiff.Res, batchSize int) anydiff.Res {
	products := anydiff.Mul(vecs1, vecs2)
	return anydiff.SumCols(&anydiff.Matrix{
		Data: products,
		Rows: batchSize,
		Cols: vecs1.Output().Len() / batchSize,
	})
}
