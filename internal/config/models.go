package config

import (
	"time"

	"github.com/Speshl/gorrc_nav/internal/navigation"
	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
)

const (
	MaxSupportedWheels = 4
	AppEnvBase         = "GORRC_"
	ConfigFileEnv      = "CONFIGFILE"

	// Default Robot Options
	DefaultRobotAddress     = "192.168.0.1"
	DefaultRobotPort        = 80
	DefaultRobotTimeout     = 2 * time.Second
	DefaultRobotDialTimeout = 1 * time.Second

	// Default Navigation Options
	DefaultObstacleThreshold = navigation.DefaultObstacleThreshold
	DefaultSensorLimit       = navigation.DefaultSensorLimit
	DefaultPositionLimit     = navigation.DefaultPositionLimit
	DefaultOutputLimit       = navigation.DefaultOutputLimit
	DefaultAxisEpsilon       = navigation.DefaultAxisEpsilon
	DefaultResolution        = navigation.DefaultResolution

	// Default Loop Options
	DefaultTargetX         = 0.5
	DefaultTargetY         = 0.5
	DefaultTolerance       = 0.02
	DefaultMaxVelocity     = 0.20
	DefaultPeriod          = 50 * time.Millisecond
	DefaultSensorBackoff   = 1 * time.Second
	DefaultMaxCycleErrors  = 0 //unlimited
	DefaultLatencyMaxValue = 10 * time.Second

	// Default Command Options
	DefaultCommandDriver = "omnidrive"
	DefaultAddress       = 0x40
	DefaultI2CDevice     = "/dev/i2c-1"
	DefaultMix           = omni.MixBody
	DefaultMaxWheelSpeed = omni.DefaultMaxWheelSpeed
	DefaultMaxOmega      = omni.DefaultMaxOmega
	DefaultWheelBase     = omni.DefaultWheelBase
	DefaultTrackWidth    = omni.DefaultTrackWidth

	DefaultMaxPulse = 2000
	DefaultMinPulse = 1000
	DefaultInverted = false
	DefaultOffset   = 0

	// Default Telemetry Options
	DefaultTelemetryEnabled = false
	DefaultServer           = "127.0.0.1:8181"
	DefaultKey              = ""
	DefaultPassword         = ""
	DefaultHudPeriod        = 100 * time.Millisecond
	DefaultHealthPeriod     = 30 * time.Second
	DefaultNetInterface     = "wlan0"

	// Default Metrics Options
	DefaultMetricsEnabled = false
	DefaultMetricsAddress = "127.0.0.1:9100"
)

type Config struct {
	RobotCfg     RobotConfig     `toml:"robot"`
	NavCfg       NavConfig       `toml:"navigation"`
	LoopCfg      LoopConfig      `toml:"loop"`
	CommandCfg   CommandConfig   `toml:"command"`
	TelemetryCfg TelemetryConfig `toml:"telemetry"`
	MetricsCfg   MetricsConfig   `toml:"metrics"`
}

type RobotConfig struct {
	Address     string   `toml:"address"`
	Port        int      `toml:"port"`
	Timeout     Duration `toml:"timeout"`
	DialTimeout Duration `toml:"dial_timeout"`
}

type NavConfig struct {
	ObstacleThreshold float64 `toml:"obstacle_threshold"`
	SensorLimit       float64 `toml:"sensor_limit"`
	PositionLimit     float64 `toml:"position_limit"`
	OutputLimit       float64 `toml:"output_limit"`
	AxisEpsilon       float64 `toml:"axis_epsilon"`
	Resolution        float64 `toml:"resolution"`
}

type LoopConfig struct {
	TargetX         float64  `toml:"target_x"`
	TargetY         float64  `toml:"target_y"`
	Tolerance       float64  `toml:"tolerance"`
	MaxVelocity     float64  `toml:"max_velocity"`
	Period          Duration `toml:"period"`
	SensorBackoff   Duration `toml:"sensor_backoff"`
	MaxCycleErrors  int      `toml:"max_cycle_errors"`
	LatencyMaxValue Duration `toml:"latency_max_value"`
}

type CommandConfig struct {
	CommandDriver string        `toml:"driver"`
	Address       byte          `toml:"address"`
	I2CDevice     string        `toml:"i2c_device"`
	Mix           string        `toml:"mix"`
	MaxWheelSpeed float64       `toml:"max_wheel_speed"`
	MaxOmega      float64       `toml:"max_omega"`
	WheelBase     float64       `toml:"wheel_base"`
	TrackWidth    float64       `toml:"track_width"`
	WheelCfgs     []WheelConfig `toml:"wheels"`
}

// WheelConfig binds a drive command name to an ESC output.
type WheelConfig struct {
	Name     string  `toml:"name"`
	Inverted bool    `toml:"inverted"`
	Channel  int     `toml:"channel"`
	MaxPulse float64 `toml:"max_pulse"`
	MinPulse float64 `toml:"min_pulse"`
	Offset   int     `toml:"offset"`
}

type TelemetryConfig struct {
	Enabled      bool     `toml:"enabled"`
	Server       string   `toml:"server"`
	Key          string   `toml:"key"`
	Password     string   `toml:"password"`
	HudPeriod    Duration `toml:"hud_period"`
	HealthPeriod Duration `toml:"health_period"`
	NetInterface string   `toml:"net_interface"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Duration reads TOML strings like "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (c NavConfig) Navigation() navigation.Config {
	return navigation.Config{
		ObstacleThreshold: c.ObstacleThreshold,
		SensorLimit:       c.SensorLimit,
		PositionLimit:     c.PositionLimit,
		OutputLimit:       c.OutputLimit,
		AxisEpsilon:       c.AxisEpsilon,
		Resolution:        c.Resolution,
	}
}

func (c CommandConfig) Omni() omni.Config {
	return omni.Config{
		Mix:           c.Mix,
		MaxWheelSpeed: c.MaxWheelSpeed,
		MaxOmega:      c.MaxOmega,
		WheelBase:     c.WheelBase,
		TrackWidth:    c.TrackWidth,
	}
}
