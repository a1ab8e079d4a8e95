package pgrad

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestL2Reg(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v1 := anydiff.NewVar(c.MakeVectorData([]float64{1, 2}))
	v2 := anydiff.NewVar(c.MakeVectorData([]float64{-3}))
	reg := &L2Reg{Params: []*anydiff.Var{v1, v2}, Coeff: 0.1}

	states := anydiff.NewConst(c.MakeVector(2))
	losses := reg.Losses(states, nil, 2)
	loss, ok := losses["l2-regularization"]
	if !ok {
		t.Fatal("missing l2-regularization term")
	}

	actual := anyvec.Sum(loss.Output()).(float64)
	if math.Abs(actual-1.4) > 1e-4 {
		t.Errorf("expected 1.4 but got %v", actual)
	}
}

func TestEntropyReg(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	reg := &EntropyReg{
		Entropy: func(states, internals anydiff.Res,
			batchSize int) anydiff.Res {
			cr := states.Output().Creator()
			return anydiff.NewConst(cr.MakeVectorData([]float64{0.5, 1.5}))
		},
		Coeff: 0.01,
	}

	states := anydiff.NewConst(c.MakeVector(2))
	losses := reg.Losses(states, nil, 2)
	loss, ok := losses["entropy-regularization"]
	if !ok {
		t.Fatal("missing entropy-regularization term")
	}

	actual := anyvec.Sum(loss.Output()).(float64)
	if math.Abs(actual-(-0.01)) > 1e-6 {
		t.Errorf("expected -0.01 but got %v", actual)
	}
}

func TestMultiRegularizer(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	reg := MultiRegularizer{
		&L2Reg{
			Params: []*anydiff.Var{
				anydiff.NewVar(c.MakeVectorData([]float64{2})),
			},
			Coeff: 0.5,
		},
		constReg{value: 0.25},
	}

	states := anydiff.NewConst(c.MakeVector(2))
	losses := reg.Losses(states, nil, 2)
	if len(losses) != 2 {
		t.Fatalf("expected 2 terms but got %d", len(losses))
	}
	l2 := anyvec.Sum(losses["l2-regularization"].Output()).(float64)
	if math.Abs(l2-2) > 1e-4 {
		t.Errorf("expected l2 term 2 but got %v", l2)
	}
	penalty := anyvec.Sum(losses["penalty"].Output()).(float64)
	if math.Abs(penalty-0.25) > 1e-4 {
		t.Errorf("expected penalty term 0.25 but got %v", penalty)
	}
}
