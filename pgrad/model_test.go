package pgrad

import (
	"math"
	"reflect"
	"testing"

	"github.com/dcchut/tensorforce"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestLossPerInstance(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	model, batch := testModel(c, 0)

	// At the snapshot, every ratio is 1 and the loss is
	// the negated reward.
	loss := model.LossPerInstance(batch).Output()
	assertVec(t, loss, c.MakeVectorData([]float64{-1.5, 2}))

	model.Estimator = &DiscountedReturns{Discount: 0.5}
	loss = model.LossPerInstance(batch).Output()
	assertVec(t, loss, c.MakeVectorData([]float64{-0.5, 2}))
}

func TestLossGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	model, batch := testModel(c, 0)
	params := model.Parameters()

	actual := (&Descent{Model: model, Params: params}).Gradient(batch)

	states := anydiff.NewConst(batch.States)
	embedding := model.network.Apply(states, nil, 2)
	dist := model.dists["action"]
	logProb := dist.LogProb(dist.Parameterize(embedding, 2),
		batch.Actions["action"], 2)
	rewards := anydiff.NewConst(anyvec.Make(c, batch.Rewards))
	obj := anydiff.Scale(anydiff.Sum(anydiff.Mul(logProb, rewards)),
		c.MakeNumeric(-0.5))

	expected := anydiff.NewGrad(params...)
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	obj.Propagate(one, expected)

	for i, p := range params {
		diff := actual[p].Copy()
		diff.Sub(expected[p])
		if anyvec.AbsMax(diff).(float64) > 1e-6 {
			t.Errorf("parameter %d: expected %v but got %v", i,
				expected[p].Data(), actual[p].Data())
		}
	}
}

func TestCompareAtReference(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, clipping := range []float64{0, 0.2} {
		model, batch := testModel(c, clipping)
		ref := model.Reference(batch)
		gain := model.Compare(ref, batch).(float64)
		if math.Abs(gain-(-0.25)) > 1e-4 {
			t.Errorf("clipping %v: expected gain -0.25 but got %v",
				clipping, gain)
		}
	}
}

func TestCompareRatios(t *testing.T) {
	c := anyvec64.DefaultCreator{}

	// Force likelihood ratios of 1.5 and 0.5 by shifting
	// the reference values.
	offset := []float64{math.Log(1.5), math.Log(0.5)}

	t.Run("Unclipped", func(t *testing.T) {
		model, batch := testModel(c, 0)
		batch.Rewards = []float64{1, -1}
		ref := model.Reference(batch)
		ref.Sub(anyvec.Make(c, offset))
		gain := model.Compare(ref, batch).(float64)
		expected := (1.5*1 + 0.5*(-1)) / 2
		if math.Abs(gain-expected) > 1e-4 {
			t.Errorf("expected gain %v but got %v", expected, gain)
		}
	})

	t.Run("Clipped", func(t *testing.T) {
		model, batch := testModel(c, 0.2)
		batch.Rewards = []float64{1, -1}
		ref := model.Reference(batch)
		ref.Sub(anyvec.Make(c, offset))
		gain := model.Compare(ref, batch).(float64)

		// The first ratio caps at 1.2; the second clips to
		// 1/1.2, which gives the smaller (pessimistic) term.
		expected := (1.2*1 + (1/1.2)*(-1)) / 2
		if math.Abs(gain-expected) > 1e-4 {
			t.Errorf("expected gain %v but got %v", expected, gain)
		}
	})

	t.Run("Regularized", func(t *testing.T) {
		model, batch := testModel(c, 0.2)
		batch.Rewards = []float64{1, -1}
		model.Regularizer = constReg{value: 0.05}
		ref := model.Reference(batch)
		ref.Sub(anyvec.Make(c, offset))
		gain := model.Compare(ref, batch).(float64)
		expected := (1.2*1+(1/1.2)*(-1))/2 - 0.05
		if math.Abs(gain-expected) > 1e-4 {
			t.Errorf("expected gain %v but got %v", expected, gain)
		}
	})

	t.Run("AtBounds", func(t *testing.T) {
		model, batch := testModel(c, 0.2)
		batch.Rewards = []float64{1, -1}
		ref := model.Reference(batch)
		ref.Sub(anyvec.Make(c, []float64{math.Log(1.2), math.Log(1 / 1.2)}))
		gain := model.Compare(ref, batch).(float64)

		// Ratios sitting exactly on the clamp bounds pass
		// through the clip unchanged.
		expected := (1.2*1 + (1/1.2)*(-1)) / 2
		if math.Abs(gain-expected) > 1e-4 {
			t.Errorf("expected gain %v but got %v", expected, gain)
		}
	})

	t.Run("Monotonic", func(t *testing.T) {
		var gains []float64
		for _, clipping := range []float64{0.1, 0.3} {
			model, batch := testModel(c, clipping)
			batch.Rewards = []float64{1, 1}
			ref := model.Reference(batch)
			ref.Sub(anyvec.Make(c, []float64{math.Log(1.5), math.Log(1.5)}))
			gain := model.Compare(ref, batch).(float64)
			expected := 1 + clipping
			if math.Abs(gain-expected) > 1e-4 {
				t.Errorf("clipping %v: expected gain %v but got %v",
					clipping, expected, gain)
			}
			gains = append(gains, gain)
		}
		if gains[0] >= gains[1] {
			t.Errorf("expected a looser clip to raise the gain")
		}
	})
}

func TestChannelOrder(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network := &tensorforce.FeedForward{
		Layer: anynet.Net{
			anynet.NewFC(c, 3, 4),
			anynet.Tanh,
		},
	}
	dists := map[string]tensorforce.Distribution{
		"move": tensorforce.NewCategorical(c, 4, 2),
		"turn": tensorforce.NewGaussian(c, 4, 1),
		"grip": tensorforce.NewCategorical(c, 4, 3),
	}
	model, err := NewProbRatio(network, dists)
	if err != nil {
		t.Fatal(err)
	}
	batch := testBatch(c)
	batch.Actions = map[string]anyvec.Vector{
		"move": c.MakeVectorData([]float64{1, 0, 0, 1}),
		"turn": c.MakeVectorData([]float64{0.3, -0.7}),
		"grip": c.MakeVectorData([]float64{0, 1, 0, 1, 0, 0}),
	}

	// Reference and Compare combine the channels in a fixed
	// order, so evaluations are reproducible bit for bit and
	// the gain at the snapshot is exactly the mean reward.
	ref1 := model.Reference(batch)
	ref2 := model.Reference(batch)
	if !reflect.DeepEqual(ref1.Data(), ref2.Data()) {
		t.Errorf("expected %v but got %v", ref1.Data(), ref2.Data())
	}
	gain1 := model.Compare(ref1, batch).(float64)
	gain2 := model.Compare(ref2, batch).(float64)
	if gain1 != gain2 {
		t.Errorf("expected %v but got %v", gain1, gain2)
	}
	if gain1 != -0.25 {
		t.Errorf("expected gain -0.25 but got %v", gain1)
	}
}

func TestMultiChannel(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	model, batch := testMultiModel(c)

	if len(model.Parameters()) != 8 {
		t.Errorf("expected 8 parameters but got %d", len(model.Parameters()))
	}

	loss := model.LossPerInstance(batch).Output()
	assertVec(t, loss, c.MakeVectorData([]float64{-1.5, 2}))

	ref := model.Reference(batch)
	gain := model.Compare(ref, batch).(float64)
	if math.Abs(gain-(-0.25)) > 1e-4 {
		t.Errorf("expected gain -0.25 but got %v", gain)
	}
}

func TestModelEntropy(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	model, batch := testMultiModel(c)

	// Both distributions start out with zero projections,
	// so the channel entropies are log(2) and the unit
	// Gaussian entropy.
	states := anydiff.NewConst(batch.States)
	actual := model.Entropy(states, nil, 2).Output()
	expected := (math.Log(2) + 0.5*math.Log(2*math.Pi*math.E)) / 2
	assertVec(t, actual, c.MakeVectorData([]float64{expected, expected}))
}

func TestModelCreation(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network := &tensorforce.FeedForward{Layer: anynet.NewFC(c, 3, 4)}
	dists := map[string]tensorforce.Distribution{
		"action": tensorforce.NewCategorical(c, 4, 2),
	}

	if _, err := NewClippedProbRatio(network, dists, 0); err == nil {
		t.Errorf("expected error for zero clipping")
	}
	if _, err := NewClippedProbRatio(network, dists, -0.1); err == nil {
		t.Errorf("expected error for negative clipping")
	}
	if _, err := NewProbRatio(nil, dists); err == nil {
		t.Errorf("expected error for nil network")
	}
	if _, err := NewProbRatio(network, nil); err == nil {
		t.Errorf("expected error for missing channels")
	}
	badDists := map[string]tensorforce.Distribution{"action": nil}
	if _, err := NewProbRatio(network, badDists); err == nil {
		t.Errorf("expected error for nil distribution")
	}

	model, err := NewClippedProbRatio(network, dists, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if model.Clipping() != 0.2 {
		t.Errorf("expected clipping 0.2 but got %v", model.Clipping())
	}
}

func testModel(c anyvec.Creator, clipping float64) (*ProbRatio,
	*tensorforce.Batch) {
	network := &tensorforce.FeedForward{
		Layer: anynet.Net{
			anynet.NewFC(c, 3, 4),
			anynet.Tanh,
		},
	}
	dists := map[string]tensorforce.Distribution{
		"action": tensorforce.NewCategorical(c, 4, 2),
	}
	var model *ProbRatio
	var err error
	if clipping == 0 {
		model, err = NewProbRatio(network, dists)
	} else {
		model, err = NewClippedProbRatio(network, dists, clipping)
	}
	if err != nil {
		panic(err)
	}
	return model, testBatch(c)
}

func testMultiModel(c anyvec.Creator) (*ProbRatio, *tensorforce.Batch) {
	network := &tensorforce.FeedForward{
		Layer: anynet.Net{
			anynet.NewFC(c, 3, 4),
			anynet.Tanh,
		},
	}
	dists := map[string]tensorforce.Distribution{
		"move": tensorforce.NewCategorical(c, 4, 2),
		"turn": tensorforce.NewGaussian(c, 4, 1),
	}
	model, err := NewProbRatio(network, dists)
	if err != nil {
		panic(err)
	}
	batch := testBatch(c)
	batch.Actions = map[string]anyvec.Vector{
		"move": c.MakeVectorData([]float64{1, 0, 0, 1}),
		"turn": c.MakeVectorData([]float64{0.3, -0.7}),
	}
	return model, batch
}

func testBatch(c anyvec.Creator) *tensorforce.Batch {
	return &tensorforce.Batch{
		States: c.MakeVectorData([]float64{
			0.5, -0.3, 0.2,
			1.0, -1.0, 0.1,
		}),
		Actions: map[string]anyvec.Vector{
			"action": c.MakeVectorData([]float64{1, 0, 0, 1}),
		},
		Rewards:   []float64{1.5, -2},
		Terminals: []bool{false, true},
	}
}

type constReg struct {
	value float64
}

func (c constReg) Losses(states, internals anydiff.Res,
	batchSize int) map[string]anydiff.Res {
	cr := states.Output().Creator()
	vec := cr.MakeVector(1)
	vec.AddScalar(cr.MakeNumeric(c.value))
	return map[string]anydiff.Res{"penalty": anydiff.NewConst(vec)}
}

func assertVec(t *testing.T, actual, expected anyvec.Vector) {
	diff := actual.Copy()
	diff.Sub(expected)
	if anyvec.AbsMax(diff).(float64) > 1e-4 {
		t.Errorf("expected %v but got %v", expected.Data(), actual.Data())
	}
}
