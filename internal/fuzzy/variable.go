package fuzzy

import "fmt"

// Term is a named linguistic category of a Variable.
type Term struct {
	Name  string
	Shape Membership
}

func NewTerm(name string, shape Membership) Term {
	return Term{Name: name, Shape: shape}
}

// Variable is a linguistic variable: a universe plus its named terms. The
// same type serves as antecedent or consequent depending on where it is
// placed in a RuleBase.
type Variable struct {
	name     string
	universe Universe
	terms    []Term
	index    map[string]int
}

func NewVariable(name string, universe Universe, terms ...Term) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: variable name is empty", ErrConfiguration)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: variable %s has no terms", ErrConfiguration, name)
	}

	index := make(map[string]int, len(terms))
	for i, term := range terms {
		if term.Name == "" {
			return nil, fmt.Errorf("%w: variable %s term %d has no name", ErrConfiguration, name, i)
		}
		if term.Shape == nil {
			return nil, fmt.Errorf("%w: variable %s term %s has no shape", ErrConfiguration, name, term.Name)
		}
		if _, ok := index[term.Name]; ok {
			return nil, fmt.Errorf("%w: variable %s has duplicate term %s", ErrConfiguration, name, term.Name)
		}
		index[term.Name] = i
	}

	return &Variable{
		name:     name,
		universe: universe,
		terms:    append([]Term(nil), terms...),
		index:    index,
	}, nil
}

func (v *Variable) Name() string { return v.name }
func (v *Variable) Universe() Universe { return v.universe }

// Terms returns term names in declaration order.
func (v *Variable) Terms() []string {
	names := make([]string, len(v.terms))
	for i := range v.terms {
		names[i] = v.terms[i].Name
	}
	return names
}

func (v *Variable) termIndex(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

// Fuzzify returns the degree of every term for x, in declaration order. The
// crisp value is saturated into the universe first.
func (v *Variable) Fuzzify(x float64) []float64 {
	degrees := make([]float64, len(v.terms))
	v.fuzzifyInto(x, degrees)
	return degrees
}

func (v *Variable) fuzzifyInto(x float64, degrees []float64) {
	x = v.universe.Clamp(x)
	for i := range v.terms {
		degrees[i] = v.terms[i].Shape.Degree(x)
	}
}

// Degree is the membership of x in the named term.
func (v *Variable) Degree(term string, x float64) (float64, error) {
	i, ok := v.termIndex(term)
	if !ok {
		return 0, fmt.Errorf("%w: variable %s has no term %s", ErrConfiguration, v.name, term)
	}
	return v.terms[i].Shape.Degree(v.universe.Clamp(x)), nil
}

// sample evaluates every term at every universe sample point.
func (v *Variable) sample() [][]float64 {
	n := v.universe.Samples()
	sampled := make([][]float64, len(v.terms))
	for t := range v.terms {
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = v.terms[t].Shape.Degree(v.universe.At(i))
		}
		sampled[t] = row
	}
	return sampled
}
