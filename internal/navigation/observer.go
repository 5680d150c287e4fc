package navigation

import (
	"go.uber.org/zap"
)

// LogObserver logs each cycle and the rules that fired at debug level.
func LogObserver(log *zap.Logger) Observer {
	return func(ct CycleTrace) {
		fired := ct.Fuzzy.Fired()
		rules := make([]string, 0, len(fired))
		for _, f := range fired {
			rules = append(rules, f.Rule)
		}

		fields := []zap.Field{
			zap.Stringer("mode", ct.Mode),
			zap.Float64("dx", ct.DX),
			zap.Float64("dy", ct.DY),
			zap.Float64s("sensors", ct.Sensors[:]),
			zap.Float64("raw_vx", ct.RawX),
			zap.Float64("raw_vy", ct.RawY),
			zap.Float64("vx", ct.Velocity.X),
			zap.Float64("vy", ct.Velocity.Y),
			zap.Strings("fired", rules),
		}
		for _, o := range ct.Fuzzy.Outputs {
			if o.Degenerate {
				fields = append(fields, zap.Bool(o.Variable+"_degenerate", true))
			}
		}
		log.Debug("navigation cycle", fields...)

		for _, f := range fired {
			log.Debug("rule fired",
				zap.String("rule_base", ct.Fuzzy.RuleBase),
				zap.String("rule", f.Rule),
				zap.Float64("strength", f.Strength),
			)
		}
	}
}

// Observers fans a cycle trace out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	active := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(ct CycleTrace) {
		for _, o := range active {
			o(ct)
		}
	}
}
