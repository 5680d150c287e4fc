package navigation

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_nav/internal/fuzzy"
	"go.uber.org/zap"
)

var (
	ErrConfiguration = fuzzy.ErrConfiguration
	ErrInvalidInput  = fuzzy.ErrInvalidInput
)

type Mode int

const (
	ModeGoal Mode = iota
	ModeObstacle
)

func (m Mode) String() string {
	switch m {
	case ModeGoal:
		return GoalRuleBase
	case ModeObstacle:
		return ObstacleRuleBase
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Velocity is a body frame command in m/s. The controller never commands
// rotation.
type Velocity struct {
	X    float64
	Y    float64
	Mode Mode
}

// CycleTrace describes one CalculateVelocity call.
type CycleTrace struct {
	Mode     Mode
	DX       float64
	DY       float64
	Sensors  [SensorCount]float64
	RawX     float64
	RawY     float64
	Velocity Velocity
	Fuzzy    fuzzy.Trace
}

// Observer receives a trace of every successful cycle on the caller's
// goroutine.
type Observer func(CycleTrace)

type Option func(*Controller)

// WithObserver adds o after any observer already installed.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = Observers(c.observer, o)
	}
}

// WithLogger adds LogObserver when debug logging is enabled.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil && log.Core().Enabled(zap.DebugLevel) {
			c.observer = Observers(c.observer, LogObserver(log))
		}
	}
}

// Controller selects a rule base per cycle and shapes its output into a
// bounded velocity command. It holds no per-call state and is safe for
// concurrent use.
type Controller struct {
	cfg      Config
	model    *Model
	goal     *fuzzy.RuleBase
	obstacle *fuzzy.RuleBase
	observer Observer
}

func NewController(cfg Config, opts ...Option) (*Controller, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed building navigation model: %w", err)
	}

	goal, err := newGoalRuleBase(model)
	if err != nil {
		return nil, fmt.Errorf("failed building goal rules: %w", err)
	}

	obstacle, err := newObstacleRuleBase(model)
	if err != nil {
		return nil, fmt.Errorf("failed building obstacle rules: %w", err)
	}

	c := &Controller{
		cfg:      cfg,
		model:    model,
		goal:     goal,
		obstacle: obstacle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Config() Config { return c.cfg }
func (c *Controller) Model() *Model { return c.model }

// RuleBase returns the rule base used in the given mode.
func (c *Controller) RuleBase(mode Mode) *fuzzy.RuleBase {
	if mode == ModeObstacle {
		return c.obstacle
	}
	return c.goal
}

// SelectMode picks obstacle mode when any raw reading is below the obstacle
// threshold.
func (c *Controller) SelectMode(sensors []float64) Mode {
	for _, s := range sensors {
		if s < c.cfg.ObstacleThreshold {
			return ModeObstacle
		}
	}
	return ModeGoal
}

// CalculateVelocity runs one control cycle. dx, dy is the offset to the
// target in the robot frame; sensors must hold SensorCount readings in
// Sensor order.
func (c *Controller) CalculateVelocity(dx, dy float64, sensors []float64) (Velocity, error) {
	if len(sensors) != SensorCount {
		return Velocity{}, fmt.Errorf("%w: expected %d sensor readings, got %d", ErrInvalidInput, SensorCount, len(sensors))
	}
	for i, s := range sensors {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Velocity{}, fmt.Errorf("%w: sensor %s reading is not finite", ErrInvalidInput, Sensor(i))
		}
	}

	mode := c.SelectMode(sensors)
	inputs := fuzzy.Inputs{
		PositionX: dx,
		PositionY: dy,
	}
	if mode == ModeObstacle {
		for i, s := range sensors {
			inputs[Sensor(i).String()] = s
		}
	}

	rb := c.RuleBase(mode)
	var (
		out   fuzzy.Outputs
		trace fuzzy.Trace
		err   error
	)
	if c.observer != nil {
		out, trace, err = rb.ComputeTraced(inputs)
	} else {
		out, err = rb.Compute(inputs)
	}
	if err != nil {
		return Velocity{}, fmt.Errorf("failed computing %s velocity: %w", mode, err)
	}

	rawX, rawY := out[VelocityX], out[VelocityY]
	v := Velocity{X: rawX, Y: rawY, Mode: mode}
	if mode == ModeGoal {
		v.X, v.Y = c.AdjustSpeeds(dx, dy, rawX, rawY)
	}

	if c.observer != nil {
		ct := CycleTrace{
			Mode:     mode,
			DX:       dx,
			DY:       dy,
			RawX:     rawX,
			RawY:     rawY,
			Velocity: v,
			Fuzzy:    trace,
		}
		copy(ct.Sensors[:], sensors)
		c.observer(ct)
	}
	return v, nil
}

// AdjustSpeeds damps the secondary axis in proportion to how far the offset
// is off the dominant axis, then clamps both components to the output limit.
func (c *Controller) AdjustSpeeds(dx, dy, vx, vy float64) (float64, float64) {
	return AdjustSpeeds(dx, dy, vx, vy, c.cfg.AxisEpsilon, c.cfg.OutputLimit)
}

func AdjustSpeeds(dx, dy, vx, vy, epsilon, limit float64) (float64, float64) {
	ax, ay := math.Abs(dx), math.Abs(dy)
	mainAxis := max(ax, ay, epsilon)
	scale := min(ax, ay) / mainAxis

	if ax > ay {
		vy *= scale
	} else {
		vx *= scale
	}
	return clamp(vx, -limit, limit), clamp(vy, -limit, limit)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
