package navigation

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_nav/internal/fuzzy"
)

const (
	DefaultObstacleThreshold = 0.25
	DefaultSensorLimit       = 0.42
	DefaultPositionLimit     = 2.0
	DefaultOutputLimit       = 0.3
	DefaultAxisEpsilon       = 1e-4
	DefaultResolution        = 0.01
)

// Config holds the controller thresholds. The obstacle threshold is a crisp
// gate on raw readings and is intentionally independent of the 0.17-0.20
// dangerous/safe transition band.
type Config struct {
	ObstacleThreshold float64
	SensorLimit       float64
	PositionLimit     float64
	OutputLimit       float64
	AxisEpsilon       float64
	Resolution        float64
}

func DefaultConfig() Config {
	return Config{
		ObstacleThreshold: DefaultObstacleThreshold,
		SensorLimit:       DefaultSensorLimit,
		PositionLimit:     DefaultPositionLimit,
		OutputLimit:       DefaultOutputLimit,
		AxisEpsilon:       DefaultAxisEpsilon,
		Resolution:        DefaultResolution,
	}
}

func (c Config) Validate() error {
	values := []struct {
		name  string
		value float64
	}{
		{"obstacle threshold", c.ObstacleThreshold},
		{"sensor limit", c.SensorLimit},
		{"position limit", c.PositionLimit},
		{"output limit", c.OutputLimit},
		{"axis epsilon", c.AxisEpsilon},
		{"resolution", c.Resolution},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) || v.value <= 0 {
			return fmt.Errorf("%w: %s must be a positive number, got %g", fuzzy.ErrConfiguration, v.name, v.value)
		}
	}
	return nil
}
