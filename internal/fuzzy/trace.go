package fuzzy

// Trace records one Compute call for observability hooks.
type Trace struct {
	RuleBase string
	Inputs   []InputTrace
	Firings  []Firing
	Outputs  []OutputTrace
}

type InputTrace struct {
	Variable string
	Value    float64
	Degrees  map[string]float64
}

type Firing struct {
	Rule     string
	Strength float64
	Then     []Assignment
}

type OutputTrace struct {
	Variable string
	Value    float64
	// Degenerate is set when no rule contributed to the variable and the
	// value fell back to 0.
	Degenerate bool
}

// Fired returns the firings with a strength above zero, in rule order.
func (t Trace) Fired() []Firing {
	fired := make([]Firing, 0, len(t.Firings))
	for _, f := range t.Firings {
		if f.Strength > 0 {
			fired = append(fired, f)
		}
	}
	return fired
}

func (t *Trace) addInput(v *Variable, x float64, degrees []float64) {
	byTerm := make(map[string]float64, len(degrees))
	for i := range degrees {
		byTerm[v.terms[i].Name] = degrees[i]
	}
	t.Inputs = append(t.Inputs, InputTrace{Variable: v.Name(), Value: x, Degrees: byTerm})
}

func (t *Trace) addFiring(rule *compiledRule, strength float64, consequents []*Variable) {
	then := make([]Assignment, len(rule.then))
	for i, ref := range rule.then {
		v := consequents[ref.variable]
		then[i] = Assignment{Variable: v.Name(), Term: v.terms[ref.term].Name}
	}
	t.Firings = append(t.Firings, Firing{Rule: rule.name, Strength: strength, Then: then})
}

func (t *Trace) addOutput(name string, value float64, degenerate bool) {
	t.Outputs = append(t.Outputs, OutputTrace{Variable: name, Value: value, Degenerate: degenerate})
}
