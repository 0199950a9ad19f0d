package admission

import (
	"context"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// Load is one sample of the resources the engine competes for.
type Load struct {
	CPUPct  float64
	MemPct  float64
	DBInUse float64 // in-use / max-open connections
}

// Sampler abstracts where a Load comes from; tests substitute a stub.
type Sampler interface {
	Sample(ctx context.Context) (Load, error)
}

// SystemSampler reads host CPU/memory via gopsutil and pool pressure from
// database/sql stats.
type SystemSampler struct {
	db *sqlx.DB
}

func NewSystemSampler(db *sqlx.DB) *SystemSampler {
	return &SystemSampler{db: db}
}

func (s *SystemSampler) Sample(ctx context.Context) (Load, error) {
	var load Load

	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return load, err
	}
	if len(cpus) > 0 {
		load.CPUPct = cpus[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return load, err
	}
	load.MemPct = vm.UsedPercent

	if s.db != nil {
		stats := s.db.Stats()
		if stats.MaxOpenConnections > 0 {
			load.DBInUse = float64(stats.InUse) / float64(stats.MaxOpenConnections)
		}
	}
	return load, nil
}

// Controller resizes the gate from load samples. Overload steps the
// ceiling down hard (multiplicative); sustained calm steps it back up
// gently (additive) until the baseline, then on toward the absolute
// ceiling only while fully idle. The asymmetry damps oscillation between
// "overloaded" and "idle" under bursty traffic.
type Controller struct {
	gate    *Gate
	sampler Sampler
	cfg     config.AdmissionConfig
	log     *zap.Logger

	calmTicks int
}

const (
	upStep = 4
	// consecutive calm samples required before growing past the baseline
	calmThreshold = 3
)

func NewController(gate *Gate, sampler Sampler, cfg config.AdmissionConfig, log *zap.Logger) *Controller {
	return &Controller{gate: gate, sampler: sampler, cfg: cfg, log: log}
}

// Tick takes one sample and applies one capacity adjustment.
func (c *Controller) Tick(ctx context.Context) {
	load, err := c.sampler.Sample(ctx)
	if err != nil {
		c.log.Warn("load sample failed", zap.Error(err))
		return
	}

	current := c.gate.Capacity()
	next := current

	overloaded := load.CPUPct >= c.cfg.CPUHighPct ||
		load.MemPct >= c.cfg.MemHighPct ||
		load.DBInUse >= c.cfg.DBHighRatio
	calm := load.CPUPct < c.cfg.CPULowPct &&
		load.MemPct < c.cfg.MemHighPct &&
		load.DBInUse < c.cfg.DBHighRatio

	switch {
	case overloaded:
		c.calmTicks = 0
		next = current / 2
		if next < c.cfg.GateFloor {
			next = c.cfg.GateFloor
		}
	case calm:
		c.calmTicks++
		if current < c.cfg.GateBaseline {
			next = current + upStep
			if next > c.cfg.GateBaseline {
				next = c.cfg.GateBaseline
			}
		} else if c.calmTicks >= calmThreshold && current < c.cfg.GateCeiling {
			next = current + upStep
			if next > c.cfg.GateCeiling {
				next = c.cfg.GateCeiling
			}
		}
	default:
		// Neither overloaded nor calm: drift back toward the baseline.
		c.calmTicks = 0
		switch {
		case current > c.cfg.GateBaseline:
			next = current - upStep
			if next < c.cfg.GateBaseline {
				next = c.cfg.GateBaseline
			}
		case current < c.cfg.GateBaseline:
			next = current + upStep
			if next > c.cfg.GateBaseline {
				next = c.cfg.GateBaseline
			}
		}
	}

	if next != current {
		c.gate.SetCapacity(next)
		c.log.Info("admission capacity adjusted",
			zap.Int64("from", current), zap.Int64("to", next),
			zap.Float64("cpu_pct", load.CPUPct),
			zap.Float64("mem_pct", load.MemPct),
			zap.Float64("db_in_use", load.DBInUse))
	}
}
