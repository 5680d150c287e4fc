package pipwm

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/zap"
)

const (
	Frequency          = 100000
	CycleLength        = uint32(2000)
	MaxSupportedWheels = 4
)

// PinMap lists the hardware PWM capable pins, one per wheel in config order.
var PinMap = []int{12, 13, 18, 19}

// CommandDriver drives wheel ESCs straight from the Raspberry Pi PWM pins.
type CommandDriver struct {
	cfg    config.CommandConfig
	log    *zap.Logger
	lock   sync.Mutex
	opened bool
	wheels map[string]Wheel
}

type Wheel struct {
	name     string
	inverted bool
	offset   float64
	pin      rpio.Pin
	maxValue uint32
	minValue uint32
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

	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}
	c.opened = true

	wheels := make(map[string]Wheel, MaxSupportedWheels)
	for i, wheelCfg := range c.cfg.WheelCfgs {
		if i >= MaxSupportedWheels {
			break
		}

		wheel := Wheel{
			name:     wheelCfg.Name,
			inverted: wheelCfg.Inverted,
			offset:   float64(wheelCfg.Offset) / 100,
			pin:      rpio.Pin(PinMap[i]),
			maxValue: uint32(wheelCfg.MaxPulse),
			minValue: uint32(wheelCfg.MinPulse),
		}
		wheel.pin.Mode(rpio.Pwm)
		wheel.pin.Freq(Frequency)
		wheels[wheel.name] = wheel
		c.log.Info("wheel added", zap.String("name", wheel.name), zap.Int("pin", PinMap[i]))
	}
	c.wheels = wheels
	c.neutralAll()
	return nil
}

// Stop returns every ESC to neutral and releases the GPIO memory map.
func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.opened {
		return nil
	}
	c.neutralAll()
	c.opened = false

	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

func (c *CommandDriver) neutralAll() {
	c.log.Info("setting all wheels to neutral")
	for name := range c.wheels {
		wheel := c.wheels[name]
		wheel.pin.DutyCycle(neutralDuty(wheel), CycleLength)
	}
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

func (c *CommandDriver) Set(cmd vehicle.DriverCommand) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	wheel, ok := c.wheels[cmd.Name]
	if ok && c.opened {
		wheel.pin.DutyCycle(duty(wheel, cmd), CycleLength)
	}
	return nil
}

func neutralDuty(wheel Wheel) uint32 {
	return (wheel.maxValue + wheel.minValue) / 2
}

func duty(wheel Wheel, cmd vehicle.DriverCommand) uint32 {
	minValue, maxValue := float64(wheel.minValue), float64(wheel.maxValue)
	mappedValue := vehicle.MapToRange(cmd.Value+wheel.offset, cmd.Min, cmd.Max, minValue, maxValue)
	if wheel.inverted {
		mappedValue = maxValue + minValue - mappedValue
	}
	return uint32(mappedValue)
}
