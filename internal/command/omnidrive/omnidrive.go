package omnidrive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
	"go.uber.org/zap"
)

const DefaultTimeout = 500 * time.Millisecond

// Omnidriver accepts a body velocity command.
type Omnidriver interface {
	Omnidrive(ctx context.Context, vx, vy, omega float64) error
}

// CommandDriver forwards body velocity commands to a robot that does its own
// wheel kinematics. It only understands the body mix channels.
type CommandDriver struct {
	robot   Omnidriver
	log     *zap.Logger
	timeout time.Duration

	lock  sync.Mutex
	state omni.State
}

func NewCommandDriver(robot Omnidriver, timeout time.Duration, log *zap.Logger) *CommandDriver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandDriver{
		robot:   robot,
		log:     log,
		timeout: timeout,
	}
}

func (c *CommandDriver) Init() error {
	if c.robot == nil {
		return fmt.Errorf("omnidrive command driver has no robot")
	}
	return nil
}

func (c *CommandDriver) Set(cmd vehicle.DriverCommand) error {
	return c.SetMany([]vehicle.DriverCommand{cmd})
}

// SetMany applies every recognised channel and then sends a single command.
func (c *CommandDriver) SetMany(cmds []vehicle.DriverCommand) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	state := c.state
	for _, cmd := range cmds {
		value := max(cmd.Min, min(cmd.Value, cmd.Max))
		switch cmd.Name {
		case omni.CommandVX:
			state.VX = value
		case omni.CommandVY:
			state.VY = value
		case omni.CommandOmega:
			state.Omega = value
		default:
			c.log.Debug("ignoring unknown omnidrive channel", zap.String("name", cmd.Name))
		}
	}

	err := c.send(state)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}

// Stop sends a zero command even if the last one failed.
func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.state = omni.State{}
	return c.send(c.state)
}

func (c *CommandDriver) send(state omni.State) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	err := c.robot.Omnidrive(ctx, state.VX, state.VY, state.Omega)
	if err != nil {
		return fmt.Errorf("failed sending omnidrive command: %w", err)
	}
	return nil
}
