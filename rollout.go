package tensorforce

import (
	"sort"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// Rewards stores the immediate rewards from a batch of
// episodes.
// There is one sequence of rewards per episode.
type Rewards [][]float64

// Totals sums the rewards of each episode.
func (r Rewards) Totals() []float64 {
	res := make([]float64, len(r))
	for i, seq := range r {
		for _, x := range seq {
			res[i] += x
		}
	}
	return res
}

// Mean computes the mean total reward across episodes.
func (r Rewards) Mean() float64 {
	var sum float64
	for _, total := range r.Totals() {
		sum += total
	}
	return sum / float64(len(r))
}

// Reduce removes the episodes for which present is false.
func (r Rewards) Reduce(present []bool) Rewards {
	var res Rewards
	for i, pres := range present {
		if pres {
			res = append(res, r[i])
		}
	}
	return res
}

// A RolloutSet is a batch of recorded episodes.
//
// Observations and actions are stored in tapes, with one
// tape per action channel.
type RolloutSet struct {
	// Inputs contains the observations fed to the agent
	// at each timestep.
	Inputs lazyseq.Tape

	// Actions maps each action channel to a tape of the
	// actions sampled at each timestep.
	Actions map[string]lazyseq.Tape

	// Rewards contains the rewards given to the agent at
	// each timestep.
	Rewards Rewards
}

// NumSteps counts the total number of timesteps across
// every episode.
func (r *RolloutSet) NumSteps() int {
	var count int
	for _, seq := range r.Rewards {
		count += len(seq)
	}
	return count
}

// Flatten converts the episodes into a flat batch of
// transitions, ordered episode by episode.
//
// Transitions at the end of an episode are marked as
// terminal and given a zero next state.
// The flat batch carries no internal agent state.
func (r *RolloutSet) Flatten() *Batch {
	c := r.Inputs.Creator()

	var inBatches []*anyseq.Batch
	for b := range r.Inputs.ReadTape(0, -1) {
		inBatches = append(inBatches, b)
	}

	var names []string
	for name := range r.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	actionBatches := map[string][]*anyseq.Batch{}
	for _, name := range names {
		for b := range r.Actions[name].ReadTape(0, -1) {
			actionBatches[name] = append(actionBatches[name], b)
		}
	}

	res := &Batch{Actions: map[string]anyvec.Vector{}}
	if len(inBatches) == 0 {
		res.States = c.MakeVector(0)
		res.NextStates = c.MakeVector(0)
		for _, name := range names {
			res.Actions[name] = c.MakeVector(0)
		}
		return res
	}

	numSeqs := len(inBatches[0].Present)
	obsSize := inBatches[0].Packed.Len() / inBatches[0].NumPresent()
	actionSizes := map[string]int{}
	for _, name := range names {
		first := actionBatches[name][0]
		actionSizes[name] = first.Packed.Len() / first.NumPresent()
	}

	var states, nextStates []anyvec.Vector
	actions := map[string][]anyvec.Vector{}
	for seq := 0; seq < numSeqs; seq++ {
		for t := 0; t < len(inBatches); t++ {
			batch := inBatches[t]
			if !batch.Present[seq] {
				break
			}
			ord := presentOrdinal(batch.Present, seq)
			states = append(states, batch.Packed.Slice(ord*obsSize, (ord+1)*obsSize))
			for _, name := range names {
				size := actionSizes[name]
				packed := actionBatches[name][t].Packed
				actions[name] = append(actions[name],
					packed.Slice(ord*size, (ord+1)*size))
			}
			res.Rewards = append(res.Rewards, r.Rewards[seq][t])
			if t+1 < len(inBatches) && inBatches[t+1].Present[seq] {
				next := inBatches[t+1]
				nextOrd := presentOrdinal(next.Present, seq)
				nextStates = append(nextStates,
					next.Packed.Slice(nextOrd*obsSize, (nextOrd+1)*obsSize))
				res.Terminals = append(res.Terminals, false)
			} else {
				nextStates = append(nextStates, c.MakeVector(obsSize))
				res.Terminals = append(res.Terminals, true)
			}
		}
	}

	res.States = c.Concat(states...)
	res.NextStates = c.Concat(nextStates...)
	for _, name := range names {
		res.Actions[name] = c.Concat(actions[name]...)
	}

	return res
}

func presentOrdinal(present []bool, idx int) int {
	var res int
	for i := 0; i < idx; i++ {
		if present[i] {
			res++
		}
	}
	return res
}
