package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/navigation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type evalFiring struct {
	Rule     string  `json:"rule"`
	Strength float64 `json:"strength"`
}

type evalResult struct {
	Mode    string       `json:"mode"`
	DX      float64      `json:"dx"`
	DY      float64      `json:"dy"`
	Sensors []float64    `json:"sensors"`
	RawX    float64      `json:"raw_vx"`
	RawY    float64      `json:"raw_vy"`
	VX      float64      `json:"vx"`
	VY      float64      `json:"vy"`
	Fired   []evalFiring `json:"fired"`
}

// evalCmd runs a single controller cycle offline, without a robot.
func evalCmd(flags *globalFlags) *cobra.Command {
	var dx, dy float64
	var sensors []float64
	var format string

	c := &cobra.Command{
		Use:   "eval",
		Short: "Compute one velocity command for a target offset and sensor readings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains([]string{FormatText, FormatJSON}, format) {
				return fmt.Errorf("unsupported format %q", format)
			}

			log, cleanup, err := newLogger(flags.debug)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := config.GetConfig(flags.configFile)
			if err != nil {
				return err
			}

			result, err := evaluate(cfg.NavCfg.Navigation(), dx, dy, sensors, log)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result, format)
		},
	}

	defaults := make([]float64, navigation.SensorCount)
	for i := range defaults {
		defaults[i] = navigation.DefaultSensorLimit
	}

	c.Flags().Float64Var(&dx, "dx", 0, "target offset ahead of the robot in meters")
	c.Flags().Float64Var(&dy, "dy", 0, "target offset left of the robot in meters")
	c.Flags().Float64SliceVar(&sensors, "sensors", defaults, "seven sensor readings: left front, left rear, front, right front, right rear, back left, back right")
	c.Flags().StringVarP(&format, "format", "f", FormatText, "output format: text or json")
	return c
}

func evaluate(cfg navigation.Config, dx, dy float64, sensors []float64, log *zap.Logger) (evalResult, error) {
	var trace navigation.CycleTrace
	controller, err := navigation.NewController(cfg,
		navigation.WithLogger(log),
		navigation.WithObserver(func(ct navigation.CycleTrace) { trace = ct }),
	)
	if err != nil {
		return evalResult{}, err
	}

	v, err := controller.CalculateVelocity(dx, dy, sensors)
	if err != nil {
		return evalResult{}, err
	}

	result := evalResult{
		Mode:    v.Mode.String(),
		DX:      dx,
		DY:      dy,
		Sensors: sensors,
		RawX:    trace.RawX,
		RawY:    trace.RawY,
		VX:      v.X,
		VY:      v.Y,
		Fired:   []evalFiring{},
	}
	for _, f := range trace.Fuzzy.Fired() {
		result.Fired = append(result.Fired, evalFiring{Rule: f.Rule, Strength: f.Strength})
	}
	return result, nil
}

func writeResult(w io.Writer, result evalResult, format string) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fired := make([]string, 0, len(result.Fired))
	for _, f := range result.Fired {
		fired = append(fired, fmt.Sprintf("%s (%.2f)", f.Rule, f.Strength))
	}
	if len(fired) == 0 {
		fired = append(fired, "-")
	}

	_, err := fmt.Fprintf(w, "mode:     %s\nraw:      vx=%.4f vy=%.4f\nvelocity: vx=%.4f vy=%.4f\nfired:    %s\n",
		result.Mode, result.RawX, result.RawY, result.VX, result.VY, strings.Join(fired, ", "))
	return err
}
