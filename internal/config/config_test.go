package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gorrc_nav.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGetConfigDefaults(t *testing.T) {
	cfg, err := GetConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 50*time.Millisecond, cfg.LoopCfg.Period.Duration)
	assert.Equal(t, 0.25, cfg.NavCfg.Navigation().ObstacleThreshold)
}

func TestGetConfigFileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
[robot]
address = "10.0.0.7"
port = 8080
timeout = "500ms"

[loop]
target_x = 1.25
target_y = -0.5
period = "20ms"

[command]
driver = "pca9685"
mix = "mecanum"
address = 65

[[command.wheels]]
name = "front_left"
channel = 0

[[command.wheels]]
name = "front_right"
channel = 1
inverted = true
`)

	t.Setenv(AppEnvBase+"ROBOT_PORT", "9090")
	t.Setenv(AppEnvBase+"TARGET_Y", "0.75")
	t.Setenv(AppEnvBase+"WHEEL1_MAXPULSE", "1900")
	t.Setenv(AppEnvBase+"WHEEL2_NAME", "rear_left")
	t.Setenv(AppEnvBase+"WHEEL3_NAME", "rear_right")

	cfg, err := GetConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.RobotCfg.Address)
	assert.Equal(t, 9090, cfg.RobotCfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.RobotCfg.Timeout.Duration)
	assert.Equal(t, DefaultRobotDialTimeout, cfg.RobotCfg.DialTimeout.Duration)

	assert.Equal(t, 1.25, cfg.LoopCfg.TargetX)
	assert.Equal(t, 0.75, cfg.LoopCfg.TargetY)
	assert.Equal(t, 20*time.Millisecond, cfg.LoopCfg.Period.Duration)
	assert.Equal(t, DefaultTolerance, cfg.LoopCfg.Tolerance)

	assert.Equal(t, "pca9685", cfg.CommandCfg.CommandDriver)
	assert.Equal(t, "mecanum", cfg.CommandCfg.Mix)
	assert.Equal(t, byte(65), cfg.CommandCfg.Address)

	require.Len(t, cfg.CommandCfg.WheelCfgs, 4)
	assert.Equal(t, "front_left", cfg.CommandCfg.WheelCfgs[0].Name)
	assert.Equal(t, float64(DefaultMaxPulse), cfg.CommandCfg.WheelCfgs[0].MaxPulse)
	assert.Equal(t, 1900.0, cfg.CommandCfg.WheelCfgs[1].MaxPulse)
	assert.True(t, cfg.CommandCfg.WheelCfgs[1].Inverted)
	assert.Equal(t, WheelConfig{
		Name:     "rear_left",
		Channel:  2,
		MaxPulse: DefaultMaxPulse,
		MinPulse: DefaultMinPulse,
	}, cfg.CommandCfg.WheelCfgs[2])
}

func TestGetConfigFileFromEnv(t *testing.T) {
	path := writeConfigFile(t, "[metrics]\nenabled = true\n")
	t.Setenv(AppEnvBase+ConfigFileEnv, path)

	cfg, err := GetConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.MetricsCfg.Enabled)
	assert.Equal(t, DefaultMetricsAddress, cfg.MetricsCfg.Address)
}

func TestGetConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "[loop]\ntarget_z = 1.0\n")
	_, err := GetConfig(path)
	require.Error(t, err)
}

func TestGetConfigMissingFile(t *testing.T) {
	_, err := GetConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad driver", mutate: func(c *Config) { c.CommandCfg.CommandDriver = "l298n" }},
		{name: "zero resolution", mutate: func(c *Config) { c.NavCfg.Resolution = 0 }},
		{name: "no robot address", mutate: func(c *Config) { c.RobotCfg.Address = "" }},
		{name: "zero tolerance", mutate: func(c *Config) { c.LoopCfg.Tolerance = 0 }},
		{name: "zero period", mutate: func(c *Config) { c.LoopCfg.Period = Duration{} }},
		{name: "too many wheels", mutate: func(c *Config) { c.CommandCfg.WheelCfgs = make([]WheelConfig, MaxSupportedWheels+1) }},
		{name: "pca9685 with body mix", mutate: func(c *Config) {
			c.CommandCfg = mecanumCommandConfig("pca9685")
			c.CommandCfg.Mix = omni.MixBody
		}},
		{name: "pipwm with body mix", mutate: func(c *Config) {
			c.CommandCfg = mecanumCommandConfig("pipwm")
			c.CommandCfg.Mix = omni.MixBody
		}},
		{name: "omnidrive with mecanum mix", mutate: func(c *Config) { c.CommandCfg.Mix = omni.MixMecanum }},
		{name: "unknown wheel name", mutate: func(c *Config) {
			c.CommandCfg = mecanumCommandConfig("pca9685")
			c.CommandCfg.WheelCfgs[0].Name = "left"
		}},
		{name: "missing wheel", mutate: func(c *Config) {
			c.CommandCfg = mecanumCommandConfig("pipwm")
			c.CommandCfg.WheelCfgs = c.CommandCfg.WheelCfgs[:3]
		}},
		{name: "duplicate wheel", mutate: func(c *Config) {
			c.CommandCfg = mecanumCommandConfig("pca9685")
			c.CommandCfg.WheelCfgs[3].Name = omni.FrontLeft
		}},
		{name: "telemetry without hud period", mutate: func(c *Config) {
			c.TelemetryCfg.Enabled = true
			c.TelemetryCfg.HudPeriod = Duration{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, driver := range []string{"pca9685", "pipwm"} {
		cfg := DefaultConfig()
		cfg.CommandCfg = mecanumCommandConfig(driver)
		require.NoError(t, cfg.Validate(), driver)
	}
}

func mecanumCommandConfig(driver string) CommandConfig {
	cfg := DefaultConfig().CommandCfg
	cfg.CommandDriver = driver
	cfg.Mix = omni.MixMecanum
	for i, name := range omni.WheelNames() {
		cfg.WheelCfgs = append(cfg.WheelCfgs, WheelConfig{
			Name:     name,
			Channel:  i,
			MaxPulse: DefaultMaxPulse,
			MinPulse: DefaultMinPulse,
		})
	}
	return cfg
}

func TestEnvParsingFallsBack(t *testing.T) {
	t.Setenv(AppEnvBase+"TEST_INT", "twelve")
	t.Setenv(AppEnvBase+"TEST_FLOAT", "0.5\r")
	t.Setenv(AppEnvBase+"TEST_BOOL", "yes")
	t.Setenv(AppEnvBase+"TEST_DURATION", "5")
	t.Setenv(AppEnvBase+"TEST_STRING", "Mixed Case\r")

	assert.Equal(t, 7, GetIntEnv("TEST_INT", 7))
	assert.Equal(t, 0.5, GetFloatEnv("TEST_FLOAT", 1))
	assert.False(t, GetBoolEnv("TEST_BOOL", false))
	assert.Equal(t, time.Second, GetDurationEnv("TEST_DURATION", time.Second))
	assert.Equal(t, "Mixed Case", GetStringEnv("TEST_STRING", ""))
	assert.Equal(t, "fallback", GetStringEnv("TEST_UNSET", "fallback"))
}
