package metrics

import (
	"time"

	"github.com/Speshl/gorrc_nav/internal/navigation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NavCyclesH       = "The total number of completed navigation cycles"
	NavCyclesN       = "gorrc_nav_cycles"
	NavCycleErrorsH  = "The total number of navigation cycles that failed, by stage"
	NavCycleErrorsN  = "gorrc_nav_cycle_errors"
	NavCycleSecondsH = "The duration of a navigation cycle including robot I/O"
	NavCycleSecondsN = "gorrc_nav_cycle_seconds"
	NavModeH         = "The controller mode of the last cycle, 0 goal and 1 obstacle"
	NavModeN         = "gorrc_nav_mode"
	NavModeCyclesH   = "The total number of cycles computed in each controller mode"
	NavModeCyclesN   = "gorrc_nav_mode_cycles"
	NavVelocityH     = "The last commanded body velocity in m/s, by axis"
	NavVelocityN     = "gorrc_nav_velocity"
	NavDistanceH     = "The last distance to the target in meters"
	NavDistanceN     = "gorrc_nav_distance"
	NavRuleFiringsH  = "The total number of times a rule fired with non-zero strength"
	NavRuleFiringsN  = "gorrc_nav_rule_firings"
	NavDegenerateH   = "The total number of outputs that defuzzified to zero because no rule fired"
	NavDegenerateN   = "gorrc_nav_degenerate_outputs"

	StageOdometry = "odometry"
	StageSensors  = "sensors"
	StageCompute  = "compute"
	StageDrive    = "drive"
)

// Collectors are the control loop metrics. Construct one per registry.
type Collectors struct {
	cycles      prometheus.Counter
	cycleErrors *prometheus.CounterVec
	cycleTime   prometheus.Histogram
	mode        prometheus.Gauge
	modeCycles  *prometheus.CounterVec
	velocity    *prometheus.GaugeVec
	distance    prometheus.Gauge
	ruleFirings *prometheus.CounterVec
	degenerate  *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: NavCyclesN,
			Help: NavCyclesH,
		}),
		cycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NavCycleErrorsN,
			Help: NavCycleErrorsH,
		}, []string{"stage"}),
		cycleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    NavCycleSecondsN,
			Help:    NavCycleSecondsH,
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		mode: factory.NewGauge(prometheus.GaugeOpts{
			Name: NavModeN,
			Help: NavModeH,
		}),
		modeCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NavModeCyclesN,
			Help: NavModeCyclesH,
		}, []string{"mode"}),
		velocity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: NavVelocityN,
			Help: NavVelocityH,
		}, []string{"axis"}),
		distance: factory.NewGauge(prometheus.GaugeOpts{
			Name: NavDistanceN,
			Help: NavDistanceH,
		}),
		ruleFirings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NavRuleFiringsN,
			Help: NavRuleFiringsH,
		}, []string{"rule_base", "rule"}),
		degenerate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NavDegenerateN,
			Help: NavDegenerateH,
		}, []string{"variable"}),
	}
}

// ObserveCycle records a completed cycle and the command that was sent.
func (c *Collectors) ObserveCycle(v navigation.Velocity, distance float64, d time.Duration) {
	c.cycles.Inc()
	c.cycleTime.Observe(d.Seconds())
	c.mode.Set(float64(v.Mode))
	c.modeCycles.WithLabelValues(v.Mode.String()).Inc()
	c.velocity.WithLabelValues("x").Set(v.X)
	c.velocity.WithLabelValues("y").Set(v.Y)
	c.distance.Set(distance)
}

func (c *Collectors) CycleError(stage string) {
	c.cycleErrors.WithLabelValues(stage).Inc()
}

// Observer counts rule firings and degenerate outputs of every cycle.
func (c *Collectors) Observer() navigation.Observer {
	return func(ct navigation.CycleTrace) {
		for _, f := range ct.Fuzzy.Fired() {
			c.ruleFirings.WithLabelValues(ct.Fuzzy.RuleBase, f.Rule).Inc()
		}
		for _, o := range ct.Fuzzy.Outputs {
			if o.Degenerate {
				c.degenerate.WithLabelValues(o.Variable).Inc()
			}
		}
	}
}
