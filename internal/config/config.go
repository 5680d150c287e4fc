package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid config")

func DefaultConfig() Config {
	return Config{
		RobotCfg: RobotConfig{
			Address:     DefaultRobotAddress,
			Port:        DefaultRobotPort,
			Timeout:     Duration{DefaultRobotTimeout},
			DialTimeout: Duration{DefaultRobotDialTimeout},
		},
		NavCfg: NavConfig{
			ObstacleThreshold: DefaultObstacleThreshold,
			SensorLimit:       DefaultSensorLimit,
			PositionLimit:     DefaultPositionLimit,
			OutputLimit:       DefaultOutputLimit,
			AxisEpsilon:       DefaultAxisEpsilon,
			Resolution:        DefaultResolution,
		},
		LoopCfg: LoopConfig{
			TargetX:         DefaultTargetX,
			TargetY:         DefaultTargetY,
			Tolerance:       DefaultTolerance,
			MaxVelocity:     DefaultMaxVelocity,
			Period:          Duration{DefaultPeriod},
			SensorBackoff:   Duration{DefaultSensorBackoff},
			MaxCycleErrors:  DefaultMaxCycleErrors,
			LatencyMaxValue: Duration{DefaultLatencyMaxValue},
		},
		CommandCfg: CommandConfig{
			CommandDriver: DefaultCommandDriver,
			Address:       DefaultAddress,
			I2CDevice:     DefaultI2CDevice,
			Mix:           DefaultMix,
			MaxWheelSpeed: DefaultMaxWheelSpeed,
			MaxOmega:      DefaultMaxOmega,
			WheelBase:     DefaultWheelBase,
			TrackWidth:    DefaultTrackWidth,
		},
		TelemetryCfg: TelemetryConfig{
			Enabled:      DefaultTelemetryEnabled,
			Server:       DefaultServer,
			Key:          DefaultKey,
			Password:     DefaultPassword,
			HudPeriod:    Duration{DefaultHudPeriod},
			HealthPeriod: Duration{DefaultHealthPeriod},
			NetInterface: DefaultNetInterface,
		},
		MetricsCfg: MetricsConfig{
			Enabled: DefaultMetricsEnabled,
			Address: DefaultMetricsAddress,
		},
	}
}

// GetConfig starts from the defaults, applies the TOML file at path (or the
// one named by GORRC_CONFIGFILE) and then any GORRC_ environment variables.
func GetConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = GetStringEnv(ConfigFileEnv, "")
	}
	if path != "" {
		err := LoadFile(path, &cfg)
		if err != nil {
			return Config{}, err
		}
	}

	cfg.RobotCfg = GetRobotConfig(cfg.RobotCfg)
	cfg.NavCfg = GetNavConfig(cfg.NavCfg)
	cfg.LoopCfg = GetLoopConfig(cfg.LoopCfg)
	cfg.CommandCfg = GetCommandConfig(cfg.CommandCfg)
	cfg.TelemetryCfg = GetTelemetryConfig(cfg.TelemetryCfg)
	cfg.MetricsCfg = GetMetricsConfig(cfg.MetricsCfg)

	err := cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	zap.L().Info("app config", zap.String("file", path), zap.Any("config", cfg.redacted()))
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed reading config file: %w", err)
	}

	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
	if err != nil {
		return fmt.Errorf("failed decoding config file %s: %w", path, err)
	}
	return nil
}

func GetRobotConfig(base RobotConfig) RobotConfig {
	envPrefix := "ROBOT_"
	return RobotConfig{
		Address:     GetStringEnv(envPrefix+"ADDRESS", base.Address),
		Port:        GetIntEnv(envPrefix+"PORT", base.Port),
		Timeout:     Duration{GetDurationEnv(envPrefix+"TIMEOUT", base.Timeout.Duration)},
		DialTimeout: Duration{GetDurationEnv(envPrefix+"DIALTIMEOUT", base.DialTimeout.Duration)},
	}
}

func GetNavConfig(base NavConfig) NavConfig {
	envPrefix := "NAV_"
	return NavConfig{
		ObstacleThreshold: GetFloatEnv(envPrefix+"OBSTACLETHRESHOLD", base.ObstacleThreshold),
		SensorLimit:       GetFloatEnv(envPrefix+"SENSORLIMIT", base.SensorLimit),
		PositionLimit:     GetFloatEnv(envPrefix+"POSITIONLIMIT", base.PositionLimit),
		OutputLimit:       GetFloatEnv(envPrefix+"OUTPUTLIMIT", base.OutputLimit),
		AxisEpsilon:       GetFloatEnv(envPrefix+"AXISEPSILON", base.AxisEpsilon),
		Resolution:        GetFloatEnv(envPrefix+"RESOLUTION", base.Resolution),
	}
}

func GetLoopConfig(base LoopConfig) LoopConfig {
	return LoopConfig{
		TargetX:         GetFloatEnv("TARGET_X", base.TargetX),
		TargetY:         GetFloatEnv("TARGET_Y", base.TargetY),
		Tolerance:       GetFloatEnv("TOLERANCE", base.Tolerance),
		MaxVelocity:     GetFloatEnv("MAXVELOCITY", base.MaxVelocity),
		Period:          Duration{GetDurationEnv("PERIOD", base.Period.Duration)},
		SensorBackoff:   Duration{GetDurationEnv("SENSORBACKOFF", base.SensorBackoff.Duration)},
		MaxCycleErrors:  GetIntEnv("MAXCYCLEERRORS", base.MaxCycleErrors),
		LatencyMaxValue: Duration{GetDurationEnv("LATENCYMAX", base.LatencyMaxValue.Duration)},
	}
}

func GetCommandConfig(base CommandConfig) CommandConfig {
	commandCfg := CommandConfig{
		CommandDriver: strings.ToLower(GetStringEnv("COMMANDDRIVER", base.CommandDriver)),
		Address:       byte(GetIntEnv("I2CADDRESS", int(base.Address))),
		I2CDevice:     GetStringEnv("I2CDEVICE", base.I2CDevice),
		Mix:           strings.ToLower(GetStringEnv("MIX", base.Mix)),
		MaxWheelSpeed: GetFloatEnv("MAXWHEELSPEED", base.MaxWheelSpeed),
		MaxOmega:      GetFloatEnv("MAXOMEGA", base.MaxOmega),
		WheelBase:     GetFloatEnv("WHEELBASE", base.WheelBase),
		TrackWidth:    GetFloatEnv("TRACKWIDTH", base.TrackWidth),
	}

	for i := 0; i < MaxSupportedWheels; i++ {
		wheel := WheelConfig{
			Channel:  i,
			MaxPulse: DefaultMaxPulse,
			MinPulse: DefaultMinPulse,
			Inverted: DefaultInverted,
			Offset:   DefaultOffset,
		}
		if i < len(base.WheelCfgs) {
			wheel = base.WheelCfgs[i]
			if wheel.MaxPulse == 0 && wheel.MinPulse == 0 {
				wheel.MaxPulse = DefaultMaxPulse
				wheel.MinPulse = DefaultMinPulse
			}
		}

		envPrefix := fmt.Sprintf("WHEEL%d_", i)
		wheelCfg := WheelConfig{
			Name:     GetStringEnv(envPrefix+"NAME", wheel.Name),
			Channel:  GetIntEnv(envPrefix+"CHANNEL", wheel.Channel),
			MaxPulse: GetFloatEnv(envPrefix+"MAXPULSE", wheel.MaxPulse),
			MinPulse: GetFloatEnv(envPrefix+"MINPULSE", wheel.MinPulse),
			Inverted: GetBoolEnv(envPrefix+"INVERTED", wheel.Inverted),
			Offset:   GetIntEnv(envPrefix+"MIDOFFSET", wheel.Offset),
		}

		if wheelCfg.Name != "" {
			commandCfg.WheelCfgs = append(commandCfg.WheelCfgs, wheelCfg)
		}
	}
	return commandCfg
}

func GetTelemetryConfig(base TelemetryConfig) TelemetryConfig {
	return TelemetryConfig{
		Enabled:      GetBoolEnv("TELEMETRY", base.Enabled),
		Server:       GetStringEnv("SERVER", base.Server),
		Key:          GetStringEnv("KEY", base.Key),
		Password:     GetStringEnv("PASSWORD", base.Password),
		HudPeriod:    Duration{GetDurationEnv("HUDPERIOD", base.HudPeriod.Duration)},
		HealthPeriod: Duration{GetDurationEnv("HEALTHPERIOD", base.HealthPeriod.Duration)},
		NetInterface: GetStringEnv("NETINTERFACE", base.NetInterface),
	}
}

func GetMetricsConfig(base MetricsConfig) MetricsConfig {
	return MetricsConfig{
		Enabled: GetBoolEnv("METRICS", base.Enabled),
		Address: GetStringEnv("METRICSADDRESS", base.Address),
	}
}

func (c Config) Validate() error {
	err := c.NavCfg.Navigation().Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.CommandCfg.CommandDriver {
	case "omnidrive", "pca9685", "pipwm":
	default:
		return fmt.Errorf("%w: unsupported command driver %q", ErrInvalidConfig, c.CommandCfg.CommandDriver)
	}
	if len(c.CommandCfg.WheelCfgs) > MaxSupportedWheels {
		return fmt.Errorf("%w: at most %d wheels are supported, got %d", ErrInvalidConfig, MaxSupportedWheels, len(c.CommandCfg.WheelCfgs))
	}
	err = c.CommandCfg.validateMix()
	if err != nil {
		return err
	}

	if c.RobotCfg.Address == "" || c.RobotCfg.Port <= 0 {
		return fmt.Errorf("%w: robot address and port are required", ErrInvalidConfig)
	}
	if !(c.LoopCfg.Tolerance > 0) || !(c.LoopCfg.MaxVelocity > 0) {
		return fmt.Errorf("%w: tolerance and max velocity must be positive", ErrInvalidConfig)
	}
	if c.LoopCfg.Period.Duration <= 0 || c.LoopCfg.SensorBackoff.Duration < 0 {
		return fmt.Errorf("%w: loop period must be positive", ErrInvalidConfig)
	}
	if c.TelemetryCfg.Enabled && (c.TelemetryCfg.HudPeriod.Duration <= 0 || c.TelemetryCfg.HealthPeriod.Duration <= 0) {
		return fmt.Errorf("%w: telemetry periods must be positive", ErrInvalidConfig)
	}
	return nil
}

// validateMix checks that every channel the drive base emits reaches a
// wheel. The PWM drivers ignore channels they have no wheel for.
func (c CommandConfig) validateMix() error {
	if c.CommandDriver == "omnidrive" {
		if c.Mix != omni.MixBody {
			return fmt.Errorf("%w: omnidrive driver needs the %q mix, got %q", ErrInvalidConfig, omni.MixBody, c.Mix)
		}
		return nil
	}

	if c.Mix != omni.MixMecanum {
		return fmt.Errorf("%w: %s driver needs the %q mix, got %q", ErrInvalidConfig, c.CommandDriver, omni.MixMecanum, c.Mix)
	}

	configured := make(map[string]bool, len(c.WheelCfgs))
	for _, wheel := range c.WheelCfgs {
		if !slices.Contains(omni.WheelNames(), wheel.Name) {
			return fmt.Errorf("%w: unknown wheel %q, expected one of %v", ErrInvalidConfig, wheel.Name, omni.WheelNames())
		}
		if configured[wheel.Name] {
			return fmt.Errorf("%w: wheel %q configured twice", ErrInvalidConfig, wheel.Name)
		}
		configured[wheel.Name] = true
	}
	for _, name := range omni.WheelNames() {
		if !configured[name] {
			return fmt.Errorf("%w: wheel %q is not configured", ErrInvalidConfig, name)
		}
	}
	return nil
}

func (c Config) redacted() Config {
	if c.TelemetryCfg.Password != "" {
		c.TelemetryCfg.Password = "****"
	}
	return c
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
		if err != nil {
			zap.L().Warn("env not parsed", zap.String("env", env), zap.Error(err))
			return defaultValue
		} else {
			return int(value)
		}
	}
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			zap.L().Warn("env not parsed", zap.String("env", env), zap.Error(err))
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.Trim(envValue, "\r")
	}
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			zap.L().Warn("env not parsed", zap.String("env", env), zap.Error(err))
			return defaultValue
		}
		return value
	}
}

func GetDurationEnv(env string, defaultValue time.Duration) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := time.ParseDuration(strings.Trim(envValue, "\r"))
		if err != nil {
			zap.L().Warn("env not parsed", zap.String("env", env), zap.Error(err))
			return defaultValue
		}
		return value
	}
}
