package fuzzy

import (
	"fmt"
	"math"
)

// Universe is the half-open interval [Min, Max) sampled every Step. Samples
// are only used for centroid integration; membership functions themselves are
// evaluated in closed form.
type Universe struct {
	name    string
	min     float64
	max     float64
	step    float64
	samples int
}

func NewUniverse(name string, min, max, step float64) (Universe, error) {
	for _, v := range []float64{min, max, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Universe{}, fmt.Errorf("%w: universe %s has a non finite bound", ErrConfiguration, name)
		}
	}
	if min >= max {
		return Universe{}, fmt.Errorf("%w: universe %s min %g is not below max %g", ErrConfiguration, name, min, max)
	}
	if step <= 0 {
		return Universe{}, fmt.Errorf("%w: universe %s step %g must be positive", ErrConfiguration, name, step)
	}

	// tolerance keeps (max-min)/step from gaining a sample to rounding
	n := int(math.Ceil((max-min)/step - 1e-9))
	if n < 1 {
		n = 1
	}

	return Universe{
		name:    name,
		min:     min,
		max:     max,
		step:    step,
		samples: n,
	}, nil
}

func (u Universe) Name() string { return u.name }
func (u Universe) Min() float64 { return u.min }
func (u Universe) Max() float64 { return u.max }
func (u Universe) Step() float64 { return u.step }
func (u Universe) Samples() int { return u.samples }
func (u Universe) At(i int) float64 { return u.min + float64(i)*u.step }

// Last is the largest sample point, the upper bound crisp inputs saturate to.
func (u Universe) Last() float64 {
	return u.At(u.samples - 1)
}

// Clamp saturates x into [Min, Last].
func (u Universe) Clamp(x float64) float64 {
	if x < u.min {
		return u.min
	}
	if last := u.Last(); x > last {
		return last
	}
	return x
}

func (u Universe) String() string {
	return fmt.Sprintf("%s[%g, %g) step %g", u.name, u.min, u.max, u.step)
}
