package executor

import (
	"math/rand"
	"testing"

	"github.com/computefleet/fleetd/pkg/models"
)

func TestStepDeltaWithinBounds(t *testing.T) {
	e := NewSimulated(SimulatedConfig{MinStep: 5, MaxStep: 20}, rand.New(rand.NewSource(11)))
	task := &models.ComputeTask{Kind: models.TaskKindProcessing, NodeID: "n1"}

	for i := 0; i < 200; i++ {
		res := e.Step(task)
		if res.Failed {
			t.Fatal("zero failure chance must never fail")
		}
		if res.Delta < 5 || res.Delta > 20 {
			t.Fatalf("delta = %d, want within [5, 20]", res.Delta)
		}
	}
}

func TestStepAlwaysFails(t *testing.T) {
	e := NewSimulated(SimulatedConfig{MinStep: 5, MaxStep: 20, FailureChance: 1}, rand.New(rand.NewSource(1)))
	task := &models.ComputeTask{Kind: models.TaskKindTraining, NodeID: "n2"}

	res := e.Step(task)
	if !res.Failed {
		t.Fatal("failure chance 1 must fail")
	}
	if res.Reason == "" {
		t.Error("failure must carry a reason")
	}
}

func TestInvertedBoundsNormalize(t *testing.T) {
	e := NewSimulated(SimulatedConfig{MinStep: 10, MaxStep: 3}, rand.New(rand.NewSource(2)))
	task := &models.ComputeTask{}

	for i := 0; i < 50; i++ {
		if res := e.Step(task); res.Delta != 10 {
			t.Fatalf("delta = %d, want the fixed min step 10", res.Delta)
		}
	}
}
