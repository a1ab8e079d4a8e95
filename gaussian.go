package tensorforce

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Gaussian is a Distribution over continuous action
// vectors with a diagonal covariance.
//
// Parameter vectors contain the means for the entire
// batch followed by the log standard deviations for the
// entire batch.
type Gaussian struct {
	// Mean projects embeddings to action means.
	Mean *anynet.FC

	// LogStd projects embeddings to log standard
	// deviations.
	LogStd *anynet.FC
}

// NewGaussian creates a Gaussian whose log standard
// deviation projection starts out at zero, giving unit
// variance around a learned mean.
func NewGaussian(c anyvec.Creator, embeddingSize, actionSize int) *Gaussian {
	return &Gaussian{
		Mean:   anynet.NewFC(c, embeddingSize, actionSize),
		LogStd: anynet.NewFCZero(c, embeddingSize, actionSize),
	}
}

// Parameterize produces a batch of parameter vectors.
func (g *Gaussian) Parameterize(embedding anydiff.Res, batchSize int) anydiff.Res {
	return anydiff.Concat(
		g.Mean.Apply(embedding, batchSize),
		g.LogStd.Apply(embedding, batchSize),
	)
}

// Sample samples action vectors from the distributions.
func (g *Gaussian) Sample(params anyvec.Vector, batchSize int) anyvec.Vector {
	if params.Len()%2 != 0 {
		panic("parameter count must be even")
	}
	half := params.Len() / 2
	if half%batchSize != 0 {
		panic("batch size must divide parameter count")
	}
	stds := params.Slice(half, params.Len()).Copy()
	anyvec.Exp(stds)
	noise := params.Creator().MakeVector(half)
	anyvec.Rand(noise, anyvec.Normal, nil)
	noise.Mul(stds)
	noise.Add(params.Slice(0, half))
	return noise
}

// LogProb computes the log-densities of outputs.
// There is one log-density per batch entry, summed over
// the action components.
func (g *Gaussian) LogProb(params anydiff.Res, output anyvec.Vector,
	batchSize int) anydiff.Res {
	if params.Output().Len() != 2*output.Len() {
		panic("length mismatch")
	}
	if output.Len()%batchSize != 0 {
		panic("batch size does not divide output count")
	}
	chunkSize := output.Len() / batchSize
	c := params.Output().Creator()
	return anydiff.Pool(params, func(params anydiff.Res) anydiff.Res {
		mean, logStd := splitGaussianParams(params)
		invStd := anydiff.Exp(anydiff.Scale(logStd, c.MakeNumeric(-1)))
		normalized := anydiff.Mul(anydiff.Sub(anydiff.NewConst(output), mean), invStd)
		comps := anydiff.Sub(
			anydiff.Scale(anydiff.Square(normalized), c.MakeNumeric(-0.5)),
			logStd,
		)
		summed := anydiff.SumCols(&anydiff.Matrix{
			Data: comps,
			Rows: batchSize,
			Cols: chunkSize,
		})
		return anydiff.Add(summed, constantVec(c, batchSize,
			-0.5*math.Log(2*math.Pi)*float64(chunkSize)))
	})
}

// KL computes the KL divergences between two batches of
// distributions.
func (g *Gaussian) KL(params1, params2 anydiff.Res, batchSize int) anydiff.Res {
	if params1.Output().Len() != params2.Output().Len() {
		panic("length mismatch")
	}
	half := params1.Output().Len() / 2
	if half%batchSize != 0 {
		panic("batch size does not divide parameter count")
	}
	chunkSize := half / batchSize
	c := params1.Output().Creator()
	return anydiff.Pool(params1, func(params1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(params2, func(params2 anydiff.Res) anydiff.Res {
			mean1, logStd1 := splitGaussianParams(params1)
			mean2, logStd2 := splitGaussianParams(params2)
			variance1 := anydiff.Exp(anydiff.Scale(logStd1, c.MakeNumeric(2)))
			invVariance2 := anydiff.Exp(anydiff.Scale(logStd2, c.MakeNumeric(-2)))
			meanDist := anydiff.Square(anydiff.Sub(mean1, mean2))
			comps := anydiff.Add(
				anydiff.Sub(logStd2, logStd1),
				anydiff.Scale(
					anydiff.Mul(anydiff.Add(variance1, meanDist), invVariance2),
					c.MakeNumeric(0.5),
				),
			)
			summed := anydiff.SumCols(&anydiff.Matrix{
				Data: comps,
				Rows: batchSize,
				Cols: chunkSize,
			})
			return anydiff.Add(summed, constantVec(c, batchSize,
				-0.5*float64(chunkSize)))
		})
	})
}

// Entropy computes the entropy of each distribution in
// the batch.
func (g *Gaussian) Entropy(params anydiff.Res, batchSize int) anydiff.Res {
	half := params.Output().Len() / 2
	if half%batchSize != 0 {
		panic("batch size does not divide parameter count")
	}
	chunkSize := half / batchSize
	c := params.Output().Creator()
	return anydiff.Pool(params, func(params anydiff.Res) anydiff.Res {
		_, logStd := splitGaussianParams(params)
		summed := anydiff.SumCols(&anydiff.Matrix{
			Data: logStd,
			Rows: batchSize,
			Cols: chunkSize,
		})
		return anydiff.Add(summed, constantVec(c, batchSize,
			0.5*float64(chunkSize)*math.Log(2*math.Pi*math.E)))
	})
}

// Parameters returns the parameters of both projections.
func (g *Gaussian) Parameters() []*anydiff.Var {
	return append(g.Mean.Parameters(), g.LogStd.Parameters()...)
}

func splitGaussianParams(params anydiff.Res) (mean, logStd anydiff.Res) {
	half := params.Output().Len() / 2
	mean = anydiff.Slice(params, 0, half)
	logStd = anydiff.Slice(params, half, half*2)
	return
}

func constantVec(c anyvec.Creator, length int, value float64) anydiff.Res {
	vec := c.MakeVector(length)
	vec.AddScalar(c.MakeNumeric(value))
	return anydiff.NewConst(vec)
}
