// Package fuzzy implements a small Mamdani inference engine: piecewise linear
// membership functions, linguistic variables over sampled universes, rule
// bases with AND/OR antecedents and centroid defuzzification.
//
// Everything is built once and is read-only afterwards, so a RuleBase can be
// shared by concurrent callers without locking.
package fuzzy

import (
	"fmt"
	"math"
)

// Membership maps a crisp value to a degree in [0,1].
type Membership interface {
	Degree(x float64) float64
}

// Trapezoid rises over [A,B], is 1 over [B,C] and falls over [C,D].
type Trapezoid struct {
	A, B, C, D float64
}

func NewTrapezoid(a, b, c, d float64) (Trapezoid, error) {
	if err := checkBreakpoints(a, b, c, d); err != nil {
		return Trapezoid{}, err
	}
	return Trapezoid{A: a, B: b, C: c, D: d}, nil
}

// Degree is closed form. Vertical edges (A==B or C==D) act as steps, so the
// edge point itself belongs to the plateau.
func (t Trapezoid) Degree(x float64) float64 {
	return piecewise(x, t.A, t.B, t.C, t.D)
}

func (t Trapezoid) String() string {
	return fmt.Sprintf("trapezoid(%g, %g, %g, %g)", t.A, t.B, t.C, t.D)
}

// Triangle rises over [A,B] and falls over [B,C].
type Triangle struct {
	A, B, C float64
}

func NewTriangle(a, b, c float64) (Triangle, error) {
	if err := checkBreakpoints(a, b, c); err != nil {
		return Triangle{}, err
	}
	return Triangle{A: a, B: b, C: c}, nil
}

func (t Triangle) Degree(x float64) float64 {
	return piecewise(x, t.A, t.B, t.B, t.C)
}

func (t Triangle) String() string {
	return fmt.Sprintf("triangle(%g, %g, %g)", t.A, t.B, t.C)
}

func piecewise(x, a, b, c, d float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < a || x > d:
		return 0
	case x >= b && x <= c:
		return 1
	case x < b:
		// a <= x < b, so b > a
		return (x - a) / (b - a)
	default:
		// c < x <= d, so d > c
		return (d - x) / (d - c)
	}
}

func checkBreakpoints(points ...float64) error {
	for i, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: breakpoint %d is not finite", ErrConfiguration, i)
		}
		if i > 0 && points[i-1] > p {
			return fmt.Errorf("%w: breakpoints %v are not sorted", ErrConfiguration, points)
		}
	}
	return nil
}
