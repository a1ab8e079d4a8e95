package tensorforce

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
)

// A Network produces a batch of embeddings from a batch
// of observations.
//
// The internals argument carries the agent's internal
// state and is nil for stateless agents.
type Network interface {
	Apply(states, internals anydiff.Res, batchSize int) anydiff.Res
}

// FeedForward is a stateless Network backed by an
// anynet.Layer.
type FeedForward struct {
	Layer anynet.Layer
}

// Apply applies the layer to the states, ignoring the
// internals.
func (f *FeedForward) Apply(states, internals anydiff.Res, batchSize int) anydiff.Res {
	return f.Layer.Apply(states, batchSize)
}

// Parameters returns the parameters of the underlying
// layer.
func (f *FeedForward) Parameters() []*anydiff.Var {
	return anynet.AllParameters(f.Layer)
}
