package pca9685

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	"go.uber.org/zap"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	Neutral  = 0.5
	AcRange  = pca9685.ServoRangeDef

	MaxSupportedWheels = 16
)

// CommandDriver drives wheel ESCs from a PCA9685 PWM board over I2C.
type CommandDriver struct {
	cfg    config.CommandConfig
	log    *zap.Logger
	lock   sync.Mutex
	wheels map[string]Wheel
	driver *pca9685.PCA9685
}

type Wheel struct {
	name     string
	inverted bool
	offset   float64
	servo    *pca9685.Servo
}

func NewCommandDriver(cfg config.CommandConfig, log *zap.Logger) *CommandDriver {
	return &CommandDriver{
		cfg: cfg,
		log: log,
	}
}

func (c *CommandDriver) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	bus, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	c.driver, err = pca9685.New(bus, nil)
	if err != nil {
		return fmt.Errorf("error getting pwm driver - %w", err)
	}

	wheels := make(map[string]Wheel, len(c.cfg.WheelCfgs))
	for i, wheelCfg := range c.cfg.WheelCfgs {
		if i >= MaxSupportedWheels {
			break
		}
		wheels[wheelCfg.Name] = Wheel{
			name:     wheelCfg.Name,
			inverted: wheelCfg.Inverted,
			offset:   float64(wheelCfg.Offset) / 100,
			servo: c.driver.ServoNew(wheelCfg.Channel, &pca9685.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(wheelCfg.MinPulse),
				MaxPulse: float32(wheelCfg.MaxPulse),
			}),
		}
		c.log.Info("wheel added", zap.String("name", wheelCfg.Name), zap.Int("channel", wheelCfg.Channel))
	}
	c.wheels = wheels
	return c.neutralAll()
}

// Stop puts every ESC back to neutral. The I2C bus stays open.
func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.driver == nil {
		return nil
	}
	return c.neutralAll()
}

func (c *CommandDriver) neutralAll() error {
	c.log.Info("setting all wheels to neutral")
	for name := range c.wheels {
		err := c.wheels[name].servo.Fraction(Neutral)
		if err != nil {
			return fmt.Errorf("failed setting %s to neutral: %w", name, err)
		}
	}
	return nil
}

func (c *CommandDriver) SetMany(cmds []vehicle.DriverCommand) error {
	for i := range cmds {
		err := c.Set(cmds[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// Set ignores commands for channels that are not configured.
func (c *CommandDriver) Set(cmd vehicle.DriverCommand) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	wheel, ok := c.wheels[cmd.Name]
	if !ok {
		return nil
	}

	mappedValue := fraction(cmd, wheel.offset, wheel.inverted)
	err := wheel.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting wheel value - name: %s value: %.2f - error: %w", cmd.Name, mappedValue, err)
	}
	return nil
}

func fraction(cmd vehicle.DriverCommand, offset float64, inverted bool) float64 {
	mappedValue := vehicle.MapToRange(cmd.Value+offset, cmd.Min, cmd.Max, MinValue, MaxValue)
	if inverted {
		mappedValue = MaxValue - mappedValue
	}
	return mappedValue
}
