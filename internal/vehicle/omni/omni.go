package omni

import (
	"fmt"
	"math"
	"sync"

	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"go.uber.org/zap"
)

const (
	// MixBody sends the body velocity as is, for drivers that do their own
	// wheel kinematics.
	MixBody = "body"
	// MixMecanum splits the body velocity into four wheel speeds.
	MixMecanum = "mecanum"

	CommandVX    = "vx"
	CommandVY    = "vy"
	CommandOmega = "omega"

	FrontLeft  = "front_left"
	FrontRight = "front_right"
	RearLeft   = "rear_left"
	RearRight  = "rear_right"

	MaxOutput = 1.0
	MinOutput = -1.0

	DefaultMaxWheelSpeed = 0.3
	DefaultMaxOmega      = 1.0
	DefaultWheelBase     = 0.15
	DefaultTrackWidth    = 0.17
)

// WheelNames lists the mecanum wheel channels in mixing order.
func WheelNames() []string {
	return []string{FrontLeft, FrontRight, RearLeft, RearRight}
}

type Config struct {
	Mix string
	// MaxWheelSpeed is the surface speed in m/s mapped to full wheel output.
	MaxWheelSpeed float64
	MaxOmega      float64
	WheelBase     float64
	TrackWidth    float64
}

func DefaultConfig() Config {
	return Config{
		Mix:           MixBody,
		MaxWheelSpeed: DefaultMaxWheelSpeed,
		MaxOmega:      DefaultMaxOmega,
		WheelBase:     DefaultWheelBase,
		TrackWidth:    DefaultTrackWidth,
	}
}

// State is the commanded body velocity.
type State struct {
	VX    float64
	VY    float64
	Omega float64
}

type Base struct {
	cfg           Config
	log           *zap.Logger
	lock          sync.RWMutex
	state         State
	commandDriver vehicle.CommandDriverIFace
}

func NewBase(cfg Config, commandDriver vehicle.CommandDriverIFace, log *zap.Logger) (*Base, error) {
	switch cfg.Mix {
	case MixBody, MixMecanum:
	default:
		return nil, fmt.Errorf("unsupported wheel mix %q", cfg.Mix)
	}
	if !(cfg.MaxWheelSpeed > 0) || !(cfg.MaxOmega > 0) {
		return nil, fmt.Errorf("max wheel speed and max omega must be positive")
	}
	if cfg.Mix == MixMecanum && !(cfg.WheelBase > 0 && cfg.TrackWidth > 0) {
		return nil, fmt.Errorf("mecanum mix needs a positive wheel base and track width")
	}

	log.Info("setting up omni base", zap.String("mix", cfg.Mix))
	return &Base{
		cfg:           cfg,
		log:           log,
		commandDriver: commandDriver,
	}, nil
}

func (b *Base) Init() error {
	err := b.commandDriver.Init()
	if err != nil {
		return fmt.Errorf("failed initializing omni base command driver: %w", err)
	}

	return b.applyState(State{})
}

func (b *Base) Drive(vx, vy, omega float64) error {
	return b.applyState(State{VX: vx, VY: vy, Omega: omega})
}

// Stop commands zero velocity and then stops the driver. The driver is
// stopped even when the zero command fails.
func (b *Base) Stop() error {
	b.log.Info("stopping omni base")
	applyErr := b.applyState(State{})

	err := b.commandDriver.Stop()
	if err != nil {
		return fmt.Errorf("failed stopping command driver: %w", err)
	}
	return applyErr
}

func (b *Base) State() State {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.state
}

func (b *Base) applyState(state State) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.state = state

	commands := b.buildCommands(b.state)
	err := b.commandDriver.SetMany(commands)
	if err != nil {
		return fmt.Errorf("failed setting omni base commands: %w", err)
	}
	return nil
}

func (b *Base) buildCommands(state State) []vehicle.DriverCommand {
	if b.cfg.Mix == MixMecanum {
		return b.mecanumCommands(state)
	}

	maxSpeed := b.cfg.MaxWheelSpeed
	return []vehicle.DriverCommand{
		{Name: CommandVX, Value: state.VX, Min: -maxSpeed, Max: maxSpeed},
		{Name: CommandVY, Value: state.VY, Min: -maxSpeed, Max: maxSpeed},
		{Name: CommandOmega, Value: state.Omega, Min: -b.cfg.MaxOmega, Max: b.cfg.MaxOmega},
	}
}

// mecanumCommands uses the usual X configuration inverse kinematics with
// positive y to the left and omega counter clockwise. When any wheel would
// exceed full output all four are scaled down together so the direction of
// travel is preserved.
func (b *Base) mecanumCommands(state State) []vehicle.DriverCommand {
	k := (b.cfg.WheelBase + b.cfg.TrackWidth) / 2 * state.Omega
	speeds := [4]float64{
		state.VX - state.VY - k,
		state.VX + state.VY + k,
		state.VX + state.VY - k,
		state.VX - state.VY + k,
	}

	peak := 1.0
	for i := range speeds {
		speeds[i] /= b.cfg.MaxWheelSpeed
		peak = math.Max(peak, math.Abs(speeds[i]))
	}

	names := WheelNames()
	commands := make([]vehicle.DriverCommand, 0, len(names))
	for i := range names {
		commands = append(commands, vehicle.DriverCommand{
			Name:  names[i],
			Value: speeds[i] / peak,
			Min:   MinOutput,
			Max:   MaxOutput,
		})
	}
	return commands
}
