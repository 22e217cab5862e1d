package stress

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/vtable/errors"
)

var (
	iterationsTotal      = metrics.NewCounter("vrc_stress_iterations_total")
	upgradesTotal        = metrics.NewCounter("vrc_stress_upgrades_total")
	upgradeFailuresTotal = metrics.NewCounter("vrc_stress_upgrade_failures_total")
	violationsTotal      = metrics.NewCounter("vrc_stress_violations_total")
)

// Options configures Run.
type Options struct {
	// ID names the run in logs and the report. A KSUID is generated when empty.
	ID         string
	Iterations int
	// Workers defaults to GOMAXPROCS.
	Workers int
	// Progress, when set, is called from worker goroutines after every
	// completed iteration.
	Progress func(done, total int)
}

// Report summarises a run.
type Report struct {
	ID         string
	Iterations int
	Workers    int
	// Upgrades counts races the upgrading side won.
	Upgrades int
	// Failed counts upgrades that found the object already destroyed.
	Failed int
	// Violations counts upgrades that returned a handle to a destroyed
	// payload. Anything but zero is a bug.
	Violations int
	// Destroyed counts destructor runs; it must equal Iterations.
	Destroyed int
	// Leaked counts blocks still allocated after their iteration finished.
	Leaked  int
	Elapsed time.Duration
}

// OK reports whether the run found no protocol violation.
func (r Report) OK() bool {
	return r.Violations == 0 && r.Leaked == 0 && r.Destroyed == r.Iterations
}

// Run races the final release of an object against an upgrade of a weak
// handle to it, Iterations times across Workers goroutines.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Iterations <= 0 {
		return Report{}, errors.InvalidInput(errors.PhaseConfig, "iterations must be positive")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Iterations {
		opts.Workers = opts.Iterations
	}
	if opts.ID == "" {
		opts.ID = ksuid.New().String()
	}

	log := Logger().With(zap.String("run", opts.ID))
	log.Info("stress run started",
		zap.Int("iterations", opts.Iterations),
		zap.Int("workers", opts.Workers),
	)

	var (
		done       atomic.Int64
		upgrades   atomic.Int64
		failed     atomic.Int64
		violations atomic.Int64
		drops      atomic.Int64
		leaked     atomic.Int64
	)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.Workers {
		n := opts.Iterations / opts.Workers
		if w < opts.Iterations%opts.Workers {
			n++
		}
		g.Go(func() error {
			for i := range n {
				if err := ctx.Err(); err != nil {
					return err
				}
				r := race(uint64(w)<<32|uint64(i), &drops)
				switch {
				case r.violation:
					violations.Add(1)
					violationsTotal.Inc()
					log.Error("upgrade returned a destroyed payload", zap.Int("worker", w), zap.Int("iteration", i))
				case r.upgraded:
					upgrades.Add(1)
					upgradesTotal.Inc()
				default:
					failed.Add(1)
					upgradeFailuresTotal.Inc()
				}
				if r.leaked {
					leaked.Add(1)
				}
				iterationsTotal.Inc()
				d := done.Add(1)
				if opts.Progress != nil {
					opts.Progress(int(d), opts.Iterations)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	rep := Report{
		ID:         opts.ID,
		Iterations: int(done.Load()),
		Workers:    opts.Workers,
		Upgrades:   int(upgrades.Load()),
		Failed:     int(failed.Load()),
		Violations: int(violations.Load()),
		Destroyed:  int(drops.Load()),
		Leaked:     int(leaked.Load()),
		Elapsed:    time.Since(start),
	}
	if err != nil {
		log.Warn("stress run interrupted", zap.Error(err), zap.Int("completed", rep.Iterations))
		return rep, errors.Wrap(errors.PhaseRuntime, errors.KindClosed, err, "stress run interrupted")
	}

	log.Info("stress run finished",
		zap.Int("upgrades", rep.Upgrades),
		zap.Int("failed", rep.Failed),
		zap.Int("violations", rep.Violations),
		zap.Int("leaked", rep.Leaked),
		zap.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

type outcome struct {
	upgraded  bool
	violation bool
	leaked    bool
}

// race runs one round: a helper goroutine performs the final strong release
// while the caller upgrades a weak handle.
func race(id uint64, drops *atomic.Int64) outcome {
	h := newSubject(id, drops)
	w := h.Downgrade()
	block := h.Pointer()

	ready := make(chan struct{})
	released := make(chan struct{})
	go func() {
		<-ready
		h.Release()
		close(released)
	}()

	var out outcome
	close(ready)
	if up, ok := w.Upgrade(); ok {
		out.upgraded = true
		r := up.Borrow()
		out.violation = !r.VTable().Alive(r.Pointer())
		up.Release()
	}
	<-released

	w.Release()
	out.leaked = blocks.IsLive(block)
	return out
}

// Counters returns the process-wide harness counters.
func Counters() (iterations, upgrades, failures, violations uint64) {
	return iterationsTotal.Get(), upgradesTotal.Get(), upgradeFailuresTotal.Get(), violationsTotal.Get()
}
