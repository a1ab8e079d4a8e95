package tensorforce

import (
	"sort"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/lazyseq"
)

// TapeMaker is a function which generates a tape and a
// channel for writing to that tape.
//
// See lazyseq.ReferenceTape for an example.
type TapeMaker func(c anyvec.Creator) (tape lazyseq.Tape,
	writer chan<- *anyseq.Batch)

// A Roller runs agents through environments and saves the
// results to RolloutSets.
//
// The agent is split into a Block, which produces an
// embedding at each timestep, and one Distribution per
// action channel, which turns embeddings into sampled
// actions.
// Environments receive the concatenation of the sampled
// channel actions in sorted channel order.
type Roller struct {
	Block         anyrnn.Block
	Distributions map[string]Distribution

	// Creator is used to convert observations to and
	// from the block.
	// If nil, the creator of the block's first parameter
	// is used.
	Creator anyvec.Creator

	// These functions are called to produce tapes when
	// building a RolloutSet.
	//
	// You can set these in order to use special storage
	// techniques (e.g. compression or on-disk storage).
	//
	// For nil fields, lazyseq.ReferenceTape is used.
	MakeInputTape  TapeMaker
	MakeActionTape TapeMaker
}

// Rollout produces one rollout per environment.
func (r *Roller) Rollout(envs ...Env) (rollouts *RolloutSet, err error) {
	defer essentials.AddCtxTo("rollout", &err)

	c := r.creator()
	inputs, inputCh := makeTape(c, r.MakeInputTape)
	actionTapes := map[string]lazyseq.Tape{}
	actionChs := map[string]chan<- *anyseq.Batch{}
	for _, name := range r.channels() {
		tape, writer := makeTape(c, r.MakeActionTape)
		actionTapes[name] = tape
		actionChs[name] = writer
	}

	defer func() {
		close(inputCh)
		for _, ch := range actionChs {
			close(ch)
		}
	}()

	rewards, err := r.rolloutChans(inputCh, actionChs, envs)
	if err != nil {
		return nil, err
	}

	return &RolloutSet{
		Inputs:  inputs,
		Actions: actionTapes,
		Rewards: rewards,
	}, nil
}

func (r *Roller) rolloutChans(inputCh chan<- *anyseq.Batch,
	actionChs map[string]chan<- *anyseq.Batch, envs []Env) (Rewards, error) {
	if len(envs) == 0 {
		return nil, nil
	}

	c := r.creator()
	initBatch, err := rolloutReset(c, envs)
	if err != nil {
		return nil, err
	}
	rewards := make(Rewards, len(initBatch.Present))

	inBatch := initBatch
	state := r.Block.Start(len(initBatch.Present))
	for inBatch.NumPresent() > 0 {
		inputCh <- inBatch

		if inBatch.NumPresent() < state.Present().NumPresent() {
			state = state.Reduce(inBatch.Present)
		}
		blockRes := r.Block.Step(state, inBatch.Packed)
		state = blockRes.State()

		numPresent := inBatch.NumPresent()
		stepPresent := inBatch.Present
		embedding := anydiff.NewConst(blockRes.Output())
		var channelActions []anyvec.Vector
		for _, name := range r.channels() {
			dist := r.Distributions[name]
			params := dist.Parameterize(embedding, numPresent)
			sampled := dist.Sample(params.Output(), numPresent)
			actionChs[name] <- &anyseq.Batch{
				Packed:  sampled,
				Present: stepPresent,
			}
			channelActions = append(channelActions, sampled)
		}

		var rewardBatch []float64
		inBatch, rewardBatch, err = rolloutStep(c,
			joinEnvActions(c, channelActions, numPresent), stepPresent, envs)
		if err != nil {
			return nil, err
		}

		var presentIdx int
		for i, pres := range stepPresent {
			if pres {
				rewards[i] = append(rewards[i], rewardBatch[presentIdx])
				presentIdx++
			}
		}
	}

	return rewards, nil
}

func (r *Roller) creator() anyvec.Creator {
	if r.Creator != nil {
		return r.Creator
	} else {
		return anynet.AllParameters(r.Block)[0].Output().Creator()
	}
}

func (r *Roller) channels() []string {
	var res []string
	for name := range r.Distributions {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func makeTape(c anyvec.Creator, maker TapeMaker) (lazyseq.Tape,
	chan<- *anyseq.Batch) {
	if maker != nil {
		return maker(c)
	} else {
		return lazyseq.ReferenceTape(c)
	}
}

func joinEnvActions(c anyvec.Creator, channelActions []anyvec.Vector,
	numPresent int) [][]float64 {
	res := make([][]float64, numPresent)
	for _, packed := range channelActions {
		chunkSize := packed.Len() / numPresent
		data := c.Float64Slice(packed.Data())
		for i := 0; i < numPresent; i++ {
			res[i] = append(res[i], data[i*chunkSize:(i+1)*chunkSize]...)
		}
	}
	return res
}

func rolloutReset(c anyvec.Creator, envs []Env) (*anyseq.Batch, error) {
	initBatch := &anyseq.Batch{
		Present: make([]bool, len(envs)),
	}

	var allObs []float64
	for i, e := range envs {
		obs, err := e.Reset()
		if err != nil {
			return nil, err
		}
		initBatch.Present[i] = true
		allObs = append(allObs, obs...)
	}

	initBatch.Packed = anyvec.Make(c, allObs)

	return initBatch, nil
}

func rolloutStep(c anyvec.Creator, actions [][]float64, present []bool,
	envs []Env) (obs *anyseq.Batch, rewards []float64, err error) {
	obs = &anyseq.Batch{
		Present: make([]bool, len(present)),
	}
	var presentEnvs []Env
	for i, pres := range present {
		if pres {
			presentEnvs = append(presentEnvs, envs[i])
		}
	}

	obsVecs, rewards, dones, errs := batchStep(presentEnvs, actions)

	var presentIdx int
	var joinObs []float64
	for i, pres := range present {
		if !pres {
			continue
		}
		obsVec, done, err := obsVecs[presentIdx], dones[presentIdx], errs[presentIdx]
		presentIdx++
		if err != nil {
			return nil, nil, err
		}
		if !done {
			obs.Present[i] = true
			joinObs = append(joinObs, obsVec...)
		}
	}

	obs.Packed = anyvec.Make(c, joinObs)

	return
}

func batchStep(envs []Env, actions [][]float64) (obs [][]float64,
	rewards []float64, done []bool, err []error) {
	obs = make([][]float64, len(envs))
	rewards = make([]float64, len(envs))
	done = make([]bool, len(envs))
	err = make([]error, len(envs))
	var wg sync.WaitGroup
	for i, e := range envs {
		wg.Add(1)
		go func(i int, e Env) {
			defer wg.Done()
			obs[i], rewards[i], done[i], err[i] = e.Step(actions[i])
		}(i, e)
	}
	wg.Wait()
	return
}
