package fuzzy

import (
	"fmt"
	"math"
)

// Inputs maps antecedent names to crisp values.
type Inputs map[string]float64

// Outputs maps consequent names to crisp values.
type Outputs map[string]float64

// RuleBase is an ordered, immutable set of rules over a fixed set of
// antecedent and consequent variables.
type RuleBase struct {
	name        string
	antecedents []*Variable
	consequents []*Variable
	inputIndex  map[string]int
	rules       []compiledRule
	used        []bool

	// sampled[c][t][i] is the degree of term t of consequent c at sample i
	sampled [][][]float64
}

func NewRuleBase(name string, antecedents, consequents []*Variable, rules ...Rule) (*RuleBase, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: rule base %s has no rules", ErrConfiguration, name)
	}

	rb := &RuleBase{
		name:        name,
		antecedents: append([]*Variable(nil), antecedents...),
		consequents: append([]*Variable(nil), consequents...),
		inputIndex:  make(map[string]int, len(antecedents)),
		rules:       make([]compiledRule, 0, len(rules)),
		used:        make([]bool, len(antecedents)),
		sampled:     make([][][]float64, len(consequents)),
	}

	outputIndex := make(map[string]int, len(consequents))
	for i, v := range antecedents {
		if v == nil {
			return nil, fmt.Errorf("%w: rule base %s antecedent %d is nil", ErrConfiguration, name, i)
		}
		if _, ok := rb.inputIndex[v.Name()]; ok {
			return nil, fmt.Errorf("%w: rule base %s lists antecedent %s twice", ErrConfiguration, name, v.Name())
		}
		rb.inputIndex[v.Name()] = i
	}
	for i, v := range consequents {
		if v == nil {
			return nil, fmt.Errorf("%w: rule base %s consequent %d is nil", ErrConfiguration, name, i)
		}
		if _, ok := outputIndex[v.Name()]; ok {
			return nil, fmt.Errorf("%w: rule base %s lists consequent %s twice", ErrConfiguration, name, v.Name())
		}
		outputIndex[v.Name()] = i
		rb.sampled[i] = v.sample()
	}

	for i, rule := range rules {
		ruleName := rule.Name
		if ruleName == "" {
			ruleName = fmt.Sprintf("rule_%d", i)
		}

		cond, err := rb.compileExpr(rule.If)
		if err != nil {
			return nil, fmt.Errorf("rule base %s rule %s: %w", name, ruleName, err)
		}

		if len(rule.Then) == 0 {
			return nil, fmt.Errorf("%w: rule base %s rule %s assigns no consequent", ErrConfiguration, name, ruleName)
		}
		then := make([]termRef, 0, len(rule.Then))
		for _, assign := range rule.Then {
			c, ok := outputIndex[assign.Variable]
			if !ok {
				return nil, fmt.Errorf("%w: rule base %s rule %s assigns unknown consequent %s", ErrConfiguration, name, ruleName, assign.Variable)
			}
			t, ok := consequents[c].termIndex(assign.Term)
			if !ok {
				return nil, fmt.Errorf("%w: rule base %s rule %s assigns unknown term %s", ErrConfiguration, name, ruleName, assign)
			}
			then = append(then, termRef{variable: c, term: t})
		}

		cond.visit(func(variable int) { rb.used[variable] = true })
		rb.rules = append(rb.rules, compiledRule{name: ruleName, cond: cond, then: then})
	}

	return rb, nil
}

func (rb *RuleBase) compileExpr(e Expr) (node, error) {
	switch e.op {
	case opIs:
		v, ok := rb.inputIndex[e.variable]
		if !ok {
			return node{}, fmt.Errorf("%w: unknown antecedent %s", ErrConfiguration, e.variable)
		}
		t, ok := rb.antecedents[v].termIndex(e.term)
		if !ok {
			return node{}, fmt.Errorf("%w: antecedent %s has no term %s", ErrConfiguration, e.variable, e.term)
		}
		return node{op: opIs, variable: v, term: t}, nil
	case opAnd, opOr:
		if len(e.children) == 0 {
			return node{}, fmt.Errorf("%w: empty %s expression", ErrConfiguration, e)
		}
		children := make([]node, len(e.children))
		for i := range e.children {
			child, err := rb.compileExpr(e.children[i])
			if err != nil {
				return node{}, err
			}
			children[i] = child
		}
		return node{op: e.op, children: children}, nil
	default:
		return node{}, fmt.Errorf("%w: rule has no antecedent", ErrConfiguration)
	}
}

func (rb *RuleBase) Name() string { return rb.name }
func (rb *RuleBase) Len() int { return len(rb.rules) }

// Antecedents lists the names of inputs a Compute call must supply.
func (rb *RuleBase) Antecedents() []string {
	names := make([]string, 0, len(rb.antecedents))
	for i, v := range rb.antecedents {
		if rb.used[i] {
			names = append(names, v.Name())
		}
	}
	return names
}

func (rb *RuleBase) Consequents() []string {
	names := make([]string, len(rb.consequents))
	for i, v := range rb.consequents {
		names[i] = v.Name()
	}
	return names
}

// Compute runs fuzzification, rule evaluation, min implication, max
// aggregation and centroid defuzzification. A consequent with no fired rule
// defuzzifies to 0.
func (rb *RuleBase) Compute(in Inputs) (Outputs, error) {
	return rb.compute(in, nil)
}

// ComputeTraced is Compute plus a record of fuzzified inputs and rule
// firing strengths.
func (rb *RuleBase) ComputeTraced(in Inputs) (Outputs, Trace, error) {
	trace := Trace{RuleBase: rb.name}
	out, err := rb.compute(in, &trace)
	return out, trace, err
}

func (rb *RuleBase) compute(in Inputs, trace *Trace) (Outputs, error) {
	for name, x := range in {
		i, ok := rb.inputIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: rule base %s has no antecedent %s", ErrInvalidInput, rb.name, name)
		}
		if !rb.used[i] {
			continue
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: input %s is not finite", ErrInvalidInput, name)
		}
	}

	degrees := make([][]float64, len(rb.antecedents))
	for i, v := range rb.antecedents {
		if !rb.used[i] {
			continue
		}
		x, ok := in[v.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: rule base %s missing input %s", ErrInvalidInput, rb.name, v.Name())
		}
		degrees[i] = v.Fuzzify(x)
		if trace != nil {
			trace.addInput(v, x, degrees[i])
		}
	}

	aggregated := make([][]float64, len(rb.consequents))
	for c, v := range rb.consequents {
		aggregated[c] = make([]float64, v.Universe().Samples())
	}

	for r := range rb.rules {
		rule := &rb.rules[r]
		strength := rule.cond.eval(degrees)
		if trace != nil {
			trace.addFiring(rule, strength, rb.consequents)
		}
		if strength <= 0 {
			continue
		}
		for _, ref := range rule.then {
			agg := aggregated[ref.variable]
			shape := rb.sampled[ref.variable][ref.term]
			for i := range agg {
				if clipped := min(shape[i], strength); clipped > agg[i] {
					agg[i] = clipped
				}
			}
		}
	}

	out := make(Outputs, len(rb.consequents))
	for c, v := range rb.consequents {
		value, ok := centroid(v.Universe(), aggregated[c])
		out[v.Name()] = value
		if trace != nil {
			trace.addOutput(v.Name(), value, !ok)
		}
	}
	return out, nil
}

// centroid returns Σx·μ/Σμ over the universe samples, or (0, false) when the
// aggregated set is empty.
func centroid(u Universe, degrees []float64) (float64, bool) {
	var num, den float64
	for i, mu := range degrees {
		if mu == 0 {
			continue
		}
		num += u.At(i) * mu
		den += mu
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
