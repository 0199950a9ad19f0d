package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubSampler struct {
	load Load
	err  error
}

func (s *stubSampler) Sample(ctx context.Context) (Load, error) { return s.load, s.err }

var adaptiveCfg = config.AdmissionConfig{
	GateFloor:        4,
	GateBaseline:     32,
	GateCeiling:      64,
	GateQueueSize:    16,
	GateQueueTimeout: time.Second,
	CPUHighPct:       85,
	CPULowPct:        40,
	MemHighPct:       90,
	DBHighRatio:      0.9,
}

func newAdaptive(load Load) (*Gate, *stubSampler, *Controller) {
	gate := NewGate(adaptiveCfg)
	sampler := &stubSampler{load: load}
	return gate, sampler, NewController(gate, sampler, adaptiveCfg, zap.NewNop())
}

func TestOverloadHalvesDownToFloor(t *testing.T) {
	ctx := context.Background()
	gate, _, ctrl := newAdaptive(Load{CPUPct: 95})

	for _, want := range []int64{16, 8, 4, 4} {
		ctrl.Tick(ctx)
		assert.Equal(t, want, gate.Capacity())
	}
}

func TestAnyHighSignalCounts(t *testing.T) {
	ctx := context.Background()
	for _, load := range []Load{
		{CPUPct: 90},
		{MemPct: 95},
		{DBInUse: 0.95},
	} {
		gate, _, ctrl := newAdaptive(load)
		ctrl.Tick(ctx)
		assert.Equal(t, int64(16), gate.Capacity(), "%+v", load)
	}
}

func TestCalmRecoversAdditivelyToBaseline(t *testing.T) {
	ctx := context.Background()
	gate, sampler, ctrl := newAdaptive(Load{CPUPct: 95})
	for i := 0; i < 3; i++ {
		ctrl.Tick(ctx) // down to the floor
	}
	assert.Equal(t, adaptiveCfg.GateFloor, gate.Capacity())

	sampler.load = Load{CPUPct: 10}
	for _, want := range []int64{8, 12, 16, 20, 24, 28, 32} {
		ctrl.Tick(ctx)
		assert.Equal(t, want, gate.Capacity())
	}
}

func TestGrowthPastBaselineNeedsSustainedCalm(t *testing.T) {
	ctx := context.Background()
	gate, _, ctrl := newAdaptive(Load{CPUPct: 10})

	// Two calm samples at the baseline: hold.
	ctrl.Tick(ctx)
	ctrl.Tick(ctx)
	assert.Equal(t, adaptiveCfg.GateBaseline, gate.Capacity())

	// The third consecutive one starts the climb toward the ceiling.
	ctrl.Tick(ctx)
	assert.Equal(t, int64(36), gate.Capacity())
}

func TestOverloadResetsCalmStreak(t *testing.T) {
	ctx := context.Background()
	gate, sampler, ctrl := newAdaptive(Load{CPUPct: 10})
	ctrl.Tick(ctx)
	ctrl.Tick(ctx)

	sampler.load = Load{CPUPct: 95}
	ctrl.Tick(ctx) // 16, streak broken

	sampler.load = Load{CPUPct: 10}
	ctrl.Tick(ctx)
	ctrl.Tick(ctx)
	ctrl.Tick(ctx)
	// 16, 20, 24, 28: still rebuilding toward the baseline, not past it.
	assert.Equal(t, int64(28), gate.Capacity())
}

func TestMiddlingLoadDriftsTowardBaseline(t *testing.T) {
	ctx := context.Background()
	gate, sampler, ctrl := newAdaptive(Load{CPUPct: 10})
	for i := 0; i < 6; i++ {
		ctrl.Tick(ctx)
	}
	above := gate.Capacity()
	assert.Greater(t, above, adaptiveCfg.GateBaseline)

	// CPU between the low and high marks: neither calm nor overloaded.
	sampler.load = Load{CPUPct: 60}
	ctrl.Tick(ctx)
	assert.Equal(t, above-4, gate.Capacity())
}

func TestSampleErrorLeavesCapacityAlone(t *testing.T) {
	ctx := context.Background()
	gate, sampler, ctrl := newAdaptive(Load{})
	sampler.err = errors.New("probe failed")

	before := gate.Capacity()
	ctrl.Tick(ctx)
	assert.Equal(t, before, gate.Capacity())
}
