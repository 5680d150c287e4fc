package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/metrics"
	"github.com/Speshl/gorrc_nav/internal/models"
	"github.com/Speshl/gorrc_nav/internal/navigation"
	"github.com/Speshl/gorrc_nav/internal/robot"
	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"go.uber.org/zap"
)

var errSensorsUnavailable = errors.New("sensors unavailable")

type Robot interface {
	Connect(ctx context.Context) error
	Close() error
	Sensors(ctx context.Context) ([]float64, error)
	Odometry(ctx context.Context) (robot.Odometry, error)
}

type StatePublisher interface {
	Update(models.NavState)
}

type NavigatorDeps struct {
	Robot Robot
	Base  vehicle.Base
	// Metrics and Publisher are optional.
	Metrics   *metrics.Collectors
	Publisher StatePublisher
}

// Navigator drives the robot to a target offset from where it starts.
type Navigator struct {
	cfg        config.LoopConfig
	log        *zap.Logger
	robot      Robot
	base       vehicle.Base
	controller *navigation.Controller
	metrics    *metrics.Collectors
	publisher  StatePublisher
	latency    *hdrhistogram.Histogram

	lastFired []string
}

func NewNavigator(cfg config.LoopConfig, navCfg navigation.Config, deps NavigatorDeps, log *zap.Logger) (*Navigator, error) {
	if deps.Robot == nil || deps.Base == nil {
		return nil, fmt.Errorf("navigator needs a robot and a drive base")
	}
	if cfg.Period.Duration <= 0 {
		return nil, fmt.Errorf("navigator period must be positive, got %s", cfg.Period.Duration)
	}

	maxLatency := cfg.LatencyMaxValue.Duration
	if maxLatency <= 0 {
		maxLatency = config.DefaultLatencyMaxValue
	}

	n := &Navigator{
		cfg:       cfg,
		log:       log,
		robot:     deps.Robot,
		base:      deps.Base,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		latency:   hdrhistogram.New(1, maxLatency.Microseconds(), 3),
	}

	opts := []navigation.Option{
		navigation.WithLogger(log),
		navigation.WithObserver(n.observe),
	}
	if deps.Metrics != nil {
		opts = append(opts, navigation.WithObserver(deps.Metrics.Observer()))
	}

	controller, err := navigation.NewController(navCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed creating navigation controller: %w", err)
	}
	n.controller = controller
	return n, nil
}

func (n *Navigator) Controller() *navigation.Controller { return n.controller }

// Latency is the distribution of successful cycle durations in microseconds.
func (n *Navigator) Latency() *hdrhistogram.Histogram { return n.latency }

// Run navigates until the target is reached (nil), ctx is done (ctx.Err())
// or a fatal error occurs. The drive base is stopped on every exit path
// once it has been initialized.
func (n *Navigator) Run(ctx context.Context) error {
	n.log.Info("starting navigator",
		zap.Float64("target_x", n.cfg.TargetX),
		zap.Float64("target_y", n.cfg.TargetY),
		zap.Float64("tolerance", n.cfg.Tolerance),
	)

	err := n.robot.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed connecting to robot: %w", err)
	}
	defer func() {
		err := n.robot.Close()
		if err != nil {
			n.log.Warn("failed closing robot link", zap.Error(err))
		}
	}()

	err = n.base.Init()
	if err != nil {
		return fmt.Errorf("failed initializing drive base: %w", err)
	}
	defer func() {
		err := n.base.Stop()
		if err != nil {
			n.log.Error("failed stopping drive base", zap.Error(err))
		}
		n.logLatency()
	}()

	baseline, err := n.robot.Odometry(ctx)
	if err != nil {
		return fmt.Errorf("failed reading odometry baseline: %w", err)
	}
	n.log.Info("odometry baseline", zap.Float64("x", baseline.X), zap.Float64("y", baseline.Y))

	ticker := time.NewTicker(n.cfg.Period.Duration)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			n.log.Info("stopping navigator", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			continue
		}

		reached, err := n.cycle(ctx, baseline)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			failures++
			if n.cfg.MaxCycleErrors > 0 && failures >= n.cfg.MaxCycleErrors {
				return fmt.Errorf("navigator gave up after %d failed cycles: %w", failures, err)
			}

			if errors.Is(err, errSensorsUnavailable) {
				n.backoff(ctx)
			}
			continue
		}
		failures = 0

		if reached {
			n.log.Info("target reached")
			return nil
		}
	}
}

func (n *Navigator) cycle(ctx context.Context, baseline robot.Odometry) (bool, error) {
	start := time.Now()

	odom, err := n.robot.Odometry(ctx)
	if err != nil {
		n.cycleError(metrics.StageOdometry, err)
		return false, err
	}

	sensors, err := n.robot.Sensors(ctx)
	if err != nil {
		n.cycleError(metrics.StageSensors, err)
		return false, fmt.Errorf("%w: %w", errSensorsUnavailable, err)
	}

	dx := n.cfg.TargetX - (odom.X - baseline.X)
	dy := n.cfg.TargetY - (odom.Y - baseline.Y)

	n.lastFired = n.lastFired[:0]
	v, err := n.controller.CalculateVelocity(dx, dy, sensors)
	if err != nil {
		n.cycleError(metrics.StageCompute, err)
		return false, err
	}

	state := models.NavState{
		Mode:      v.Mode.String(),
		TargetX:   n.cfg.TargetX,
		TargetY:   n.cfg.TargetY,
		DX:        dx,
		DY:        dy,
		Distance:  math.Hypot(dx, dy),
		Sensors:   sensors,
		Fired:     append([]string(nil), n.lastFired...),
		TimeStamp: time.Now().UnixMilli(),
	}

	if state.Distance <= n.cfg.Tolerance {
		state.Reached = true
		n.publish(state)
		return true, nil
	}

	limit := n.cfg.MaxVelocity
	v.X = max(-limit, min(v.X, limit))
	v.Y = max(-limit, min(v.Y, limit))

	err = n.base.Drive(v.X, v.Y, 0)
	if err != nil {
		n.cycleError(metrics.StageDrive, err)
		return false, err
	}
	state.VX, state.VY = v.X, v.Y

	elapsed := time.Since(start)
	err = n.latency.RecordValue(elapsed.Microseconds())
	if err != nil {
		n.log.Debug("cycle latency out of range", zap.Duration("elapsed", elapsed))
	}
	if n.metrics != nil {
		n.metrics.ObserveCycle(v, state.Distance, elapsed)
	}
	n.publish(state)

	n.log.Debug("cycle",
		zap.Stringer("mode", v.Mode),
		zap.Float64("dx", dx),
		zap.Float64("dy", dy),
		zap.Float64("vx", v.X),
		zap.Float64("vy", v.Y),
		zap.Duration("elapsed", elapsed),
	)
	return false, nil
}

// observe runs synchronously inside CalculateVelocity on the Run goroutine.
func (n *Navigator) observe(ct navigation.CycleTrace) {
	for _, f := range ct.Fuzzy.Fired() {
		n.lastFired = append(n.lastFired, f.Rule)
	}
}

func (n *Navigator) backoff(ctx context.Context) {
	timer := time.NewTimer(n.cfg.SensorBackoff.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (n *Navigator) cycleError(stage string, err error) {
	n.log.Warn("navigation cycle failed", zap.String("stage", stage), zap.Error(err))
	if n.metrics != nil {
		n.metrics.CycleError(stage)
	}
}

func (n *Navigator) publish(state models.NavState) {
	if n.publisher != nil {
		n.publisher.Update(state)
	}
}

func (n *Navigator) logLatency() {
	if n.latency.TotalCount() == 0 {
		return
	}
	n.log.Info("cycle latency",
		zap.Int64("cycles", n.latency.TotalCount()),
		zap.Int64("p50_us", n.latency.ValueAtQuantile(50)),
		zap.Int64("p90_us", n.latency.ValueAtQuantile(90)),
		zap.Int64("p99_us", n.latency.ValueAtQuantile(99)),
		zap.Int64("max_us", n.latency.Max()),
	)
}
