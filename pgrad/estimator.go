package pgrad

import (
	"math"

	"github.com/dcchut/tensorforce"
	"github.com/unixpickle/anyvec"
)

// A RewardEstimator turns the raw rewards of a batch into
// the per-transition reward signal used by a surrogate
// objective.
//
// Estimators read the batch but never modify it.
type RewardEstimator interface {
	EstimateRewards(b *tensorforce.Batch) []float64
}

// DiscountedReturns is a RewardEstimator which replaces
// each reward with the discounted sum of the rewards from
// that transition to the end of its episode.
//
// Episodes are delimited by the batch's terminal flags,
// so the batch must store its transitions in episode
// order.
type DiscountedReturns struct {
	// Discount is the reward discount factor.
	//
	// If 0, no discount is used.
	Discount float64

	// Normalize, if true, indicates that the resulting
	// returns should be statistically normalized.
	Normalize bool

	// Epsilon is a small fudge factor used to prevent
	// numerical issues when dividing by the standard
	// deviation.
	// It is only needed if Normalize is true.
	//
	// If this is 0, a reasonably small value is used.
	Epsilon float64
}

// EstimateRewards computes the discounted returns.
func (d *DiscountedReturns) EstimateRewards(b *tensorforce.Batch) []float64 {
	res := make([]float64, b.Size())
	var sum float64
	for t := len(res) - 1; t >= 0; t-- {
		if b.Terminals[t] {
			sum = 0
		}
		if d.Discount != 0 {
			sum *= d.Discount
		}
		sum += b.Rewards[t]
		res[t] = sum
	}
	if d.Normalize {
		normalizeRewards(res, d.Epsilon)
	}
	return res
}

// BaselineEstimator is a RewardEstimator which subtracts
// a state-value baseline from the empirical rewards using
// Generalized Advantage Estimation.
//
// For more on GAE, see: https://arxiv.org/abs/1506.02438.
type BaselineEstimator struct {
	// ValueFunc takes a packed batch of states and
	// produces one state-value per instance.
	ValueFunc func(states anyvec.Vector, batchSize int) []float64

	// Discount is the reward discount factor.
	// Values closer to 1 give a longer time horizon.
	Discount float64

	// Lambda ranges from 0 to 1 and controls the amount
	// of variance (0 = low variance).
	Lambda float64
}

// EstimateRewards computes generalized advantage
// estimates.
//
// If the batch has next states, they are used to
// bootstrap the value after every non-terminal
// transition.
// Otherwise, transitions are assumed to be in episode
// order and the next state's value is read from the
// following transition.
func (e *BaselineEstimator) EstimateRewards(b *tensorforce.Batch) []float64 {
	n := b.Size()
	values := e.ValueFunc(b.States, n)
	var nextValues []float64
	if b.NextStates != nil {
		nextValues = e.ValueFunc(b.NextStates, n)
	}

	res := make([]float64, n)
	var accumulation float64
	for t := n - 1; t >= 0; t-- {
		if b.Terminals[t] {
			accumulation = 0
		}
		delta := b.Rewards[t] - values[t]
		if !b.Terminals[t] {
			if nextValues != nil {
				delta += e.Discount * nextValues[t]
			} else if t+1 < n {
				delta += e.Discount * values[t+1]
			}
		}
		accumulation *= e.Discount * e.Lambda
		accumulation += delta
		res[t] = accumulation
	}
	return res
}

func normalizeRewards(rewards []float64, epsilon float64) {
	var heterogeneous bool
	var sum float64

	for _, x := range rewards {
		sum += x
		if x != rewards[0] {
			heterogeneous = true
		}
	}
	if !heterogeneous {
		for i := range rewards {
			rewards[i] = 0
		}
		return
	}

	mean := sum / float64(len(rewards))

	var sqSum float64
	for i := range rewards {
		rewards[i] -= mean
		sqSum += rewards[i] * rewards[i]
	}
	variance := sqSum / float64(len(rewards))

	if epsilon == 0 {
		epsilon = 1e-8
	}

	normalizer := 1 / (math.Sqrt(variance) + epsilon)
	for i := range rewards {
		rewards[i] *= normalizer
	}
}
