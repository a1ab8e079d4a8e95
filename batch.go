package tensorforce

import (
	"sort"

	"github.com/unixpickle/anyvec"
)

// A Batch is a flat batch of transitions.
//
// Each transition has a state, an action per action
// channel, a reward, a terminal flag, and the state
// which followed the transition.
// Per-transition vectors are packed one after another,
// so every packed vector's length must be divisible by
// the batch size.
type Batch struct {
	// States contains the observation for each
	// transition.
	States anyvec.Vector

	// Internals contains the agent's internal state for
	// each transition.
	//
	// This is nil for agents with no internal state.
	Internals anyvec.Vector

	// Actions maps each action channel to the packed
	// actions taken at each transition.
	Actions map[string]anyvec.Vector

	// Rewards contains the immediate reward for each
	// transition.
	Rewards []float64

	// Terminals indicates, for each transition, whether
	// the episode ended once the action was taken.
	Terminals []bool

	// NextStates contains the observation following each
	// transition.
	//
	// Entries for terminal transitions are zero.
	NextStates anyvec.Vector

	// NextInternals contains the agent's internal state
	// following each transition.
	//
	// Like Internals, this may be nil.
	NextInternals anyvec.Vector
}

// Size returns the number of transitions.
func (b *Batch) Size() int {
	return len(b.Rewards)
}

// Creator returns the creator of the batch's vectors.
func (b *Batch) Creator() anyvec.Creator {
	return b.States.Creator()
}

// Channels returns the action channel names in sorted
// order.
func (b *Batch) Channels() []string {
	var res []string
	for name := range b.Actions {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Reduce produces a batch containing the transitions for
// which present is true.
func (b *Batch) Reduce(present []bool) *Batch {
	if len(present) != b.Size() {
		panic("length mismatch")
	}
	res := &Batch{
		States:        reducePacked(b.States, present),
		Internals:     reducePacked(b.Internals, present),
		NextStates:    reducePacked(b.NextStates, present),
		NextInternals: reducePacked(b.NextInternals, present),
		Actions:       map[string]anyvec.Vector{},
	}
	for _, name := range b.Channels() {
		res.Actions[name] = reducePacked(b.Actions[name], present)
	}
	for i, pres := range present {
		if pres {
			res.Rewards = append(res.Rewards, b.Rewards[i])
			res.Terminals = append(res.Terminals, b.Terminals[i])
		}
	}
	return res
}

// PackBatches joins multiple batches into one larger
// batch.
//
// All of the batches must have the same action channels.
func PackBatches(bs []*Batch) *Batch {
	if len(bs) == 0 {
		return &Batch{}
	}
	res := &Batch{Actions: map[string]anyvec.Vector{}}
	c := bs[0].Creator()

	fieldGetters := []func(b *Batch) *anyvec.Vector{
		func(b *Batch) *anyvec.Vector {
			return &b.States
		},
		func(b *Batch) *anyvec.Vector {
			return &b.Internals
		},
		func(b *Batch) *anyvec.Vector {
			return &b.NextStates
		},
		func(b *Batch) *anyvec.Vector {
			return &b.NextInternals
		},
	}
	for _, getter := range fieldGetters {
		var vecs []anyvec.Vector
		for _, b := range bs {
			if vec := *getter(b); vec != nil {
				vecs = append(vecs, vec)
			}
		}
		if len(vecs) == len(bs) {
			*getter(res) = c.Concat(vecs...)
		}
	}

	for _, name := range bs[0].Channels() {
		var vecs []anyvec.Vector
		for _, b := range bs {
			vec, ok := b.Actions[name]
			if !ok {
				panic("missing actions for channel: " + name)
			}
			vecs = append(vecs, vec)
		}
		res.Actions[name] = c.Concat(vecs...)
	}

	for _, b := range bs {
		res.Rewards = append(res.Rewards, b.Rewards...)
		res.Terminals = append(res.Terminals, b.Terminals...)
	}

	return res
}

func reducePacked(vec anyvec.Vector, present []bool) anyvec.Vector {
	if vec == nil {
		return nil
	}
	if vec.Len()%len(present) != 0 {
		panic("batch size must divide vector length")
	}
	chunkSize := vec.Len() / len(present)
	var chunks []anyvec.Vector
	for i, pres := range present {
		if pres {
			chunks = append(chunks, vec.Slice(i*chunkSize, (i+1)*chunkSize))
		}
	}
	return vec.Creator().Concat(chunks...)
}
