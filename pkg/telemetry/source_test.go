package telemetry

import (
	"math/rand"
	"testing"

	"github.com/computefleet/fleetd/pkg/models"
)

func TestRefreshStaysClamped(t *testing.T) {
	src := NewSimulated(SimulatedConfig{LoadStep: 0.5, UsageStep: 50}, rand.New(rand.NewSource(7)))

	perf := models.NodePerformance{
		LoadAverage:    [3]float64{0.01, 0.99, 0.5},
		CPUUsagePct:    2,
		MemoryUsagePct: 98,
		GPUUsagePct:    50,
	}

	// large steps over many ticks would escape the domain without clamping
	for i := 0; i < 500; i++ {
		perf = src.Refresh(perf)
		for j, load := range perf.LoadAverage {
			if load < 0 || load > 1 {
				t.Fatalf("tick %d: LoadAverage[%d] = %f escaped [0,1]", i, j, load)
			}
		}
		for _, pct := range []float64{perf.CPUUsagePct, perf.MemoryUsagePct, perf.GPUUsagePct} {
			if pct < 0 || pct > 100 {
				t.Fatalf("tick %d: usage %f escaped [0,100]", i, pct)
			}
		}
	}
}

func TestRefreshStepIsBounded(t *testing.T) {
	cfg := SimulatedConfig{LoadStep: 0.1, UsageStep: 10}
	src := NewSimulated(cfg, rand.New(rand.NewSource(42)))

	perf := models.NodePerformance{
		LoadAverage:    [3]float64{0.5, 0.5, 0.5},
		CPUUsagePct:    50,
		MemoryUsagePct: 50,
		GPUUsagePct:    50,
	}

	for i := 0; i < 200; i++ {
		next := src.Refresh(perf)
		for j := range next.LoadAverage {
			if delta := next.LoadAverage[j] - perf.LoadAverage[j]; delta > cfg.LoadStep+1e-9 || delta < -cfg.LoadStep-1e-9 {
				t.Fatalf("tick %d: load delta %f exceeds step %f", i, delta, cfg.LoadStep)
			}
		}
		if delta := next.CPUUsagePct - perf.CPUUsagePct; delta > cfg.UsageStep+1e-9 || delta < -cfg.UsageStep-1e-9 {
			t.Fatalf("tick %d: cpu delta %f exceeds step %f", i, delta, cfg.UsageStep)
		}
		perf = next
	}
}

func TestNextStatusProbabilities(t *testing.T) {
	t.Run("zero chances never flip", func(t *testing.T) {
		src := NewSimulated(SimulatedConfig{FailureChance: 0, RecoveryChance: 0}, rand.New(rand.NewSource(1)))
		for i := 0; i < 100; i++ {
			if got := src.NextStatus(models.NodeStatusOnline); got != models.NodeStatusOnline {
				t.Fatal("online node flipped with zero failure chance")
			}
			if got := src.NextStatus(models.NodeStatusOffline); got != models.NodeStatusOffline {
				t.Fatal("offline node recovered with zero recovery chance")
			}
		}
	})

	t.Run("certain chances always flip", func(t *testing.T) {
		src := NewSimulated(SimulatedConfig{FailureChance: 1, RecoveryChance: 1}, rand.New(rand.NewSource(1)))
		if got := src.NextStatus(models.NodeStatusOnline); got != models.NodeStatusOffline {
			t.Error("online node should fail with certainty 1")
		}
		if got := src.NextStatus(models.NodeStatusBusy); got != models.NodeStatusOffline {
			t.Error("busy node should fail with certainty 1")
		}
		if got := src.NextStatus(models.NodeStatusOffline); got != models.NodeStatusOnline {
			t.Error("offline node should recover with certainty 1")
		}
	})
}

func TestSampleWithinDomains(t *testing.T) {
	src := NewSimulated(DefaultSimulatedConfig(), rand.New(rand.NewSource(99)))

	for i := 0; i < 50; i++ {
		perf := src.Sample()
		for _, load := range perf.LoadAverage {
			if load < 0 || load > 1 {
				t.Fatalf("sampled load %f out of [0,1]", load)
			}
		}
		for _, pct := range []float64{perf.CPUUsagePct, perf.MemoryUsagePct, perf.GPUUsagePct} {
			if pct < 0 || pct > 100 {
				t.Fatalf("sampled usage %f out of [0,100]", pct)
			}
		}
	}
}
