// Package pgrad implements likelihood-ratio policy
// gradients for Reinforcement Learning.
package pgrad

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcchut/tensorforce"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A ProbRatio is a policy optimization model based on
// likelihood ratios between the current policy and a
// snapshot of itself.
//
// Surrogate losses are phrased in terms of the ratio
// exp(logProb - fixedLogProb), where fixedLogProb is
// treated as a constant.
// At the point where the snapshot is taken, every ratio
// is exactly 1 and the gradient of the surrogate matches
// the vanilla policy gradient.
type ProbRatio struct {
	// Estimator is used to turn the raw rewards of a
	// batch into per-transition reward estimates.
	//
	// If nil, the raw rewards are used directly.
	Estimator RewardEstimator

	// Regularizer produces named penalty terms which are
	// subtracted from comparison gains.
	//
	// If nil, no regularization is applied.
	Regularizer Regularizer

	network  tensorforce.Network
	dists    map[string]tensorforce.Distribution
	channels []string
	clipping float64
}

// NewProbRatio creates an unclipped model for the network
// and action distributions.
//
// There must be at least one action channel.
func NewProbRatio(network tensorforce.Network,
	dists map[string]tensorforce.Distribution) (*ProbRatio, error) {
	return newProbRatio(network, dists, 0)
}

// NewClippedProbRatio creates a model which clips
// likelihood ratios to [1/(1+epsilon), 1+epsilon] in the
// pessimistic fashion of Proximal Policy Optimization.
//
// The epsilon must be greater than 0.
func NewClippedProbRatio(network tensorforce.Network,
	dists map[string]tensorforce.Distribution,
	epsilon float64) (*ProbRatio, error) {
	if epsilon <= 0 {
		return nil, fmt.Errorf("create ratio model: clipping must be "+
			"positive (got %v)", epsilon)
	}
	return newProbRatio(network, dists, epsilon)
}

func newProbRatio(network tensorforce.Network,
	dists map[string]tensorforce.Distribution,
	clipping float64) (model *ProbRatio, err error) {
	defer essentials.AddCtxTo("create ratio model", &err)
	if network == nil {
		return nil, errors.New("network is nil")
	}
	if len(dists) == 0 {
		return nil, errors.New("no action channels")
	}
	res := &ProbRatio{
		network:  network,
		dists:    dists,
		clipping: clipping,
	}
	for name, dist := range dists {
		if dist == nil {
			return nil, fmt.Errorf("nil distribution for channel: %s", name)
		}
		res.channels = append(res.channels, name)
	}
	sort.Strings(res.channels)
	return res, nil
}

// Clipping returns the clipping epsilon, or 0 if the
// model is unclipped.
func (p *ProbRatio) Clipping() float64 {
	return p.clipping
}

// Parameters returns the parameters of the network
// followed by the parameters of every distribution in
// sorted channel order.
func (p *ProbRatio) Parameters() []*anydiff.Var {
	res := anynet.AllParameters(p.network)
	for _, name := range p.channels {
		res = append(res, p.dists[name].Parameters()...)
	}
	return res
}

// LossPerInstance computes the surrogate loss for each
// transition in the batch.
//
// Each channel's ratio is taken against a snapshot of
// that channel's current log-probabilities, so the result
// is -reward for every transition while the gradient is
// the policy gradient of the batch.
func (p *ProbRatio) LossPerInstance(b *tensorforce.Batch) anydiff.Res {
	n := b.Size()
	c := b.Creator()
	rewards := p.rewardConst(b)
	embedding := p.applyNetwork(b, n)
	return anydiff.Pool(embedding, func(embedding anydiff.Res) anydiff.Res {
		var sum anydiff.Res
		for _, name := range p.channels {
			logProb := p.channelLogProb(embedding, b, name, n)
			fixed := anydiff.NewConst(logProb.Output().Copy())
			ratio := anydiff.Exp(anydiff.Sub(logProb, fixed))
			if sum == nil {
				sum = ratio
			} else {
				sum = anydiff.Add(sum, ratio)
			}
		}
		ratio := anydiff.Scale(sum, c.MakeNumeric(1/float64(len(p.channels))))
		gain := p.objective(ratio, rewards)
		return anydiff.Scale(gain, c.MakeNumeric(-1))
	})
}

// Reference evaluates the current policy on the batch and
// returns one reference value per transition.
//
// The result belongs to the caller and is not affected by
// later parameter updates.
func (p *ProbRatio) Reference(b *tensorforce.Batch) anyvec.Vector {
	n := b.Size()
	embedding := p.applyNetwork(b, n)
	return p.meanLogProb(embedding, b, n).Output().Copy()
}

// Compare computes the gain of the current policy over
// the policy that produced the reference.
//
// The gain is the mean clipped surrogate objective minus
// the regularization losses, if any.
// The reference is never modified, so one reference may
// be shared by many calls.
func (p *ProbRatio) Compare(reference anyvec.Vector,
	b *tensorforce.Batch) anyvec.Numeric {
	n := b.Size()
	if reference.Len() != n {
		panic("length mismatch")
	}
	c := b.Creator()
	rewards := p.rewardConst(b)
	embedding := p.applyNetwork(b, n)
	logProb := p.meanLogProb(embedding, b, n)
	ratio := anydiff.Exp(anydiff.Sub(logProb,
		anydiff.NewConst(reference.Copy())))
	perInstance := p.objective(ratio, rewards)
	gain := anydiff.Scale(anydiff.Sum(perInstance),
		c.MakeNumeric(1/float64(n)))
	gain = p.subtractLosses(gain, b, n)
	return anyvec.Sum(gain.Output())
}

// OptimizerArguments bundles the model's evaluation
// functions for comparison-based optimizers such as
// LineSearch.
func (p *ProbRatio) OptimizerArguments() *Arguments {
	return &Arguments{
		Params:    p.Parameters(),
		Reference: p.Reference,
		Compare:   p.Compare,
	}
}

// Entropy computes the mean distribution entropy for each
// input state, averaged over action channels.
//
// This is the entropy function expected by EntropyReg.
func (p *ProbRatio) Entropy(states, internals anydiff.Res,
	batchSize int) anydiff.Res {
	c := states.Output().Creator()
	embedding := p.network.Apply(states, internals, batchSize)
	return anydiff.Pool(embedding, func(embedding anydiff.Res) anydiff.Res {
		var sum anydiff.Res
		for _, name := range p.channels {
			dist := p.dists[name]
			params := dist.Parameterize(embedding, batchSize)
			ent := dist.Entropy(params, batchSize)
			if sum == nil {
				sum = ent
			} else {
				sum = anydiff.Add(sum, ent)
			}
		}
		return anydiff.Scale(sum, c.MakeNumeric(1/float64(len(p.channels))))
	})
}

func (p *ProbRatio) applyNetwork(b *tensorforce.Batch, n int) anydiff.Res {
	states := anydiff.NewConst(b.States)
	var internals anydiff.Res
	if b.Internals != nil {
		internals = anydiff.NewConst(b.Internals)
	}
	return p.network.Apply(states, internals, n)
}

func (p *ProbRatio) channelLogProb(embedding anydiff.Res,
	b *tensorforce.Batch, name string, n int) anydiff.Res {
	actions, ok := b.Actions[name]
	if !ok {
		panic("missing actions for channel: " + name)
	}
	dist := p.dists[name]
	params := dist.Parameterize(embedding, n)
	return dist.LogProb(params, actions, n)
}

func (p *ProbRatio) meanLogProb(embedding anydiff.Res, b *tensorforce.Batch,
	n int) anydiff.Res {
	c := embedding.Output().Creator()
	return anydiff.Pool(embedding, func(embedding anydiff.Res) anydiff.Res {
		var sum anydiff.Res
		for _, name := range p.channels {
			logProb := p.channelLogProb(embedding, b, name, n)
			if sum == nil {
				sum = logProb
			} else {
				sum = anydiff.Add(sum, logProb)
			}
		}
		return anydiff.Scale(sum, c.MakeNumeric(1/float64(len(p.channels))))
	})
}

// objective computes the per-transition surrogate
// objective for a vector of likelihood ratios.
func (p *ProbRatio) objective(ratio, rewards anydiff.Res) anydiff.Res {
	if p.clipping == 0 {
		return anydiff.Mul(ratio, rewards)
	}
	c := ratio.Output().Creator()
	return anydiff.Pool(ratio, func(ratio anydiff.Res) anydiff.Res {
		clipped := anydiff.ClipRange(ratio,
			c.MakeNumeric(1/(1+p.clipping)),
			c.MakeNumeric(1+p.clipping))
		return anydiff.ElemMin(
			anydiff.Mul(ratio, rewards),
			anydiff.Mul(clipped, rewards),
		)
	})
}

func (p *ProbRatio) subtractLosses(gain anydiff.Res, b *tensorforce.Batch,
	n int) anydiff.Res {
	if p.Regularizer == nil {
		return gain
	}
	states := anydiff.NewConst(b.States)
	var internals anydiff.Res
	if b.Internals != nil {
		internals = anydiff.NewConst(b.Internals)
	}
	losses := p.Regularizer.Losses(states, internals, n)
	if len(losses) == 0 {
		return gain
	}
	var names []string
	for name := range losses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		gain = anydiff.Sub(gain, losses[name])
	}
	return gain
}

func (p *ProbRatio) rewardConst(b *tensorforce.Batch) anydiff.Res {
	c := b.Creator()
	rewards := b.Rewards
	if p.Estimator != nil {
		rewards = p.Estimator.EstimateRewards(b)
	}
	return anydiff.NewConst(anyvec.Make(c, rewards))
}
