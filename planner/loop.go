package planner

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/prarthanasigedar/CARLA-2/vehicle"
)

// Perception supplies one top-down frame per control tick.
type Perception interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// Loop drives a LocalPlanner at its configured control rate, feeding each
// tick's command to the vehicle. Exactly one tick runs at a time; a tick
// must finish before the next one is started.
type Loop struct {
	planner    *LocalPlanner
	perception Perception
	vehicle    vehicle.Vehicle
	clock      clock.Clock
	dt         time.Duration
	logger     golog.Logger

	mu                      sync.Mutex
	running                 bool
	fatalErr                error
	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop builds a control loop around a planner and its perception source.
func NewLoop(p *LocalPlanner, perception Perception, logger golog.Logger) (*Loop, error) {
	return newLoop(p, perception, clock.New(), logger)
}

func newLoop(p *LocalPlanner, perception Perception, clk clock.Clock, logger golog.Logger) (*Loop, error) {
	if p == nil {
		return nil, errors.New("no planner")
	}
	if perception == nil {
		return nil, errors.New("no perception source")
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Loop{
		planner:    p,
		perception: perception,
		vehicle:    p.vehicle,
		clock:      clk,
		dt:         time.Duration(float64(time.Second) / p.cfg.Frequency),
		logger:     logger,
		cancelCtx:  cancelCtx,
		cancel:     cancel,
	}, nil
}

// Start begins ticking in the background.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("control loop already running")
	}
	l.running = true
	l.logger.Infow("control loop starting", "dt", l.dt)

	l.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer l.activeBackgroundWorkers.Done()
		ticker := l.clock.Ticker(l.dt)
		defer ticker.Stop()
		for {
			select {
			case <-l.cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := l.tick(l.cancelCtx); err != nil {
				if errors.Is(err, vehicle.ErrNoVehicle) {
					// Fatal for the session: refuse further ticks until
					// re-initialized.
					l.logger.Errorw("ego vehicle lost, stopping control loop", "error", err)
					l.mu.Lock()
					l.fatalErr = err
					l.mu.Unlock()
					return
				}
				l.logger.Errorw("control tick failed", "error", err)
			}
		}
	})
	return nil
}

func (l *Loop) tick(ctx context.Context) error {
	frame, err := l.perception.NextFrame(ctx)
	if err != nil {
		return errors.Wrap(err, "reading perception frame")
	}
	command, err := l.planner.RunStep(ctx, frame)
	if err != nil {
		return err
	}
	return errors.Wrap(l.vehicle.ApplyControl(ctx, command), "applying control")
}

// Stop halts ticking, waits for any in-flight tick, and leaves the vehicle
// in a full stop. It returns the loop's fatal error, if any, combined with
// any failure to apply the final stop command.
func (l *Loop) Stop(ctx context.Context) error {
	l.cancel()
	l.activeBackgroundWorkers.Wait()

	stopErr := l.vehicle.ApplyControl(ctx, vehicle.FullStop())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.logger.Info("control loop stopped")
	return multierr.Combine(l.fatalErr, stopErr)
}
