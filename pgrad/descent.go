package pgrad

import (
	"github.com/dcchut/tensorforce"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
)

// Descent trains a model by gradient descent on its mean
// surrogate loss.
type Descent struct {
	// Model computes surrogate losses.
	Model *ProbRatio

	// Params specifies which parameters to include in
	// the gradients.
	Params []*anydiff.Var

	// Transformer, if non-nil, is applied to every
	// gradient before the step.
	Transformer anysgd.Transformer

	// StepSize is the length of gradient steps.
	StepSize float64
}

// Gradient computes the gradient of the mean surrogate
// loss on the batch.
func (d *Descent) Gradient(b *tensorforce.Batch) anydiff.Grad {
	grad := anydiff.NewGrad(d.Params...)
	if len(grad) == 0 {
		return grad
	}
	c := b.Creator()
	loss := d.Model.LossPerInstance(b)
	mean := anydiff.Scale(anydiff.Sum(loss),
		c.MakeNumeric(1/float64(b.Size())))
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	mean.Propagate(one, grad)
	return grad
}

// Run takes a single descent step on the batch and
// returns the step that was added to the parameters.
func (d *Descent) Run(b *tensorforce.Batch) anydiff.Grad {
	grad := d.Gradient(b)
	if len(grad) == 0 {
		return grad
	}
	if d.Transformer != nil {
		grad = d.Transformer.Transform(grad)
	}
	c := b.Creator()
	grad.Scale(c.MakeNumeric(-d.StepSize))
	grad.AddToVars()
	return grad
}
