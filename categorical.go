package tensorforce

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Categorical is a Distribution over a fixed number of
// discrete options.
// It applies the softmax function to a learned projection
// of the embedding and produces one-hot vector samples.
type Categorical struct {
	// Logits projects embeddings to one logit per option.
	Logits *anynet.FC
}

// NewCategorical creates a Categorical with a zero logit
// projection, so that all options start out equally
// likely.
func NewCategorical(c anyvec.Creator, embeddingSize, numOptions int) *Categorical {
	return &Categorical{
		Logits: anynet.NewFCZero(c, embeddingSize, numOptions),
	}
}

// Parameterize produces a batch of logit vectors.
func (c *Categorical) Parameterize(embedding anydiff.Res, batchSize int) anydiff.Res {
	return c.Logits.Apply(embedding, batchSize)
}

// Sample samples one-hot vectors from the softmax
// distribution.
func (c *Categorical) Sample(params anyvec.Vector, batchSize int) anyvec.Vector {
	if params.Len()%batchSize != 0 {
		panic("batch size must divide parameter count")
	}

	chunkSize := params.Len() / batchSize
	p := params.Copy()
	anyvec.LogSoftmax(p, chunkSize)
	anyvec.Exp(p)

	var oneHots []anyvec.Vector
	for i := 0; i < batchSize; i++ {
		subset := p.Slice(i*chunkSize, (i+1)*chunkSize)
		oneHots = append(oneHots, sampleProbabilities(subset))
	}

	return p.Creator().Concat(oneHots...)
}

// LogProb computes the output log probabilities.
func (c *Categorical) LogProb(params anydiff.Res, output anyvec.Vector,
	batchSize int) anydiff.Res {
	if params.Output().Len() != output.Len() {
		panic("length mismatch")
	}
	if params.Output().Len()%batchSize != 0 {
		panic("batch size does not divide param count")
	}
	chunkSize := params.Output().Len() / batchSize
	logs := anydiff.LogSoftmax(params, chunkSize)
	return batchedDot(logs, anydiff.NewConst(output), batchSize)
}

// KL computes the KL divergences between two batches of
// softmax distributions.
func (c *Categorical) KL(params1, params2 anydiff.Res, batchSize int) anydiff.Res {
	if params1.Output().Len() != params2.Output().Len() {
		panic("length mismatch")
	}
	if params1.Output().Len()%batchSize != 0 {
		panic("batch size does not divide param count")
	}
	chunkSize := params1.Output().Len() / batchSize
	log1 := anydiff.LogSoftmax(params1, chunkSize)
	log2 := anydiff.LogSoftmax(params2, chunkSize)
	return anydiff.Pool(log1, func(log1 anydiff.Res) anydiff.Res {
		probs := anydiff.Exp(log1)
		diff := anydiff.Sub(log1, log2)
		return batchedDot(probs, diff, batchSize)
	})
}

// Entropy computes the entropy of each distribution in
// the batch.
func (c *Categorical) Entropy(params anydiff.Res, batchSize int) anydiff.Res {
	if params.Output().Len()%batchSize != 0 {
		panic("batch size does not divide param count")
	}
	chunkSize := params.Output().Len() / batchSize
	cr := params.Output().Creator()
	logs := anydiff.LogSoftmax(params, chunkSize)
	return anydiff.Pool(logs, func(logs anydiff.Res) anydiff.Res {
		probs := anydiff.Exp(logs)
		return anydiff.Scale(
			batchedDot(probs, logs, batchSize),
			cr.MakeNumeric(-1),
		)
	})
}

// Parameters returns the parameters of the logit
// projection.
func (c *Categorical) Parameters() []*anydiff.Var {
	return c.Logits.Parameters()
}

func sampleProbabilities(p anyvec.Vector) anyvec.Vector {
	randNum := rand.Float64()
	idx := p.Len() - 1
	switch data := p.Data().(type) {
	case []float32:
		for i, x := range data {
			randNum -= float64(x)
			if randNum < 0 {
				idx = i
				break
			}
		}
	case []float64:
		for i, x := range data {
			randNum -= x
			if randNum < 0 {
				idx = i
				break
			}
		}
	default:
		panic(fmt.Sprintf("cannot sample from %T", data))
	}

	oneHot := make([]float64, p.Len())
	oneHot[idx] = 1
	return p.Creator().MakeVectorData(p.Creator().MakeNumericList(oneHot))
}
