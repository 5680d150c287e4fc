package fuzzy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct {
	distance *Variable
	angle    *Variable
	speed    *Variable
	turn     *Variable
}

func newTestModel(t *testing.T) testModel {
	t.Helper()

	in, err := NewUniverse("in", 0, 1, 0.01)
	require.NoError(t, err)
	out, err := NewUniverse("out", -1, 1, 0.01)
	require.NoError(t, err)

	distance, err := NewVariable("distance", in,
		NewTerm("near", Trapezoid{A: 0, B: 0, C: 0.2, D: 0.5}),
		NewTerm("far", Trapezoid{A: 0.2, B: 0.5, C: 1, D: 1}),
	)
	require.NoError(t, err)
	angle, err := NewVariable("angle", in,
		NewTerm("left", Trapezoid{A: 0, B: 0, C: 0.3, D: 0.6}),
		NewTerm("right", Trapezoid{A: 0.4, B: 0.7, C: 1, D: 1}),
	)
	require.NoError(t, err)
	speed, err := NewVariable("speed", out,
		NewTerm("slow", Triangle{A: -0.5, B: 0, C: 0.5}),
		NewTerm("fast", Trapezoid{A: 0.3, B: 0.6, C: 1, D: 1}),
	)
	require.NoError(t, err)
	turn, err := NewVariable("turn", out,
		NewTerm("left", Trapezoid{A: -1, B: -1, C: -0.4, D: -0.1}),
		NewTerm("right", Trapezoid{A: 0.1, B: 0.4, C: 1, D: 1}),
	)
	require.NoError(t, err)

	return testModel{distance: distance, angle: angle, speed: speed, turn: turn}
}

func (m testModel) rules() []Rule {
	return []Rule{
		{Name: "near", If: Is("distance", "near"), Then: []Assignment{Then("speed", "slow")}},
		{Name: "far", If: Is("distance", "far"), Then: []Assignment{Then("speed", "fast")}},
		{Name: "near_left", If: And(Is("distance", "near"), Is("angle", "left")), Then: []Assignment{Then("turn", "right"), Then("speed", "slow")}},
		{Name: "right_or_far", If: Or(Is("angle", "right"), And(Is("distance", "far"), Is("angle", "left"))), Then: []Assignment{Then("turn", "left")}},
	}
}

func (m testModel) build(t *testing.T, rules ...Rule) *RuleBase {
	t.Helper()
	rb, err := NewRuleBase("test", []*Variable{m.distance, m.angle}, []*Variable{m.speed, m.turn}, rules...)
	require.NoError(t, err)
	return rb
}

func TestComputeSingleRuleCentroid(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, Rule{Name: "far", If: Is("distance", "far"), Then: []Assignment{Then("speed", "fast")}})

	out, err := rb.Compute(Inputs{"distance": 0.9})
	require.NoError(t, err)

	// centroid of the unclipped "fast" trapezoid, computed over the samples
	var num, den float64
	u := m.speed.Universe()
	for i := 0; i < u.Samples(); i++ {
		mu := Trapezoid{A: 0.3, B: 0.6, C: 1, D: 1}.Degree(u.At(i))
		num += u.At(i) * mu
		den += mu
	}
	assert.InDelta(t, num/den, out["speed"], 1e-12)

	// nothing assigns "turn", so it is degenerate
	assert.Equal(t, 0.0, out["turn"])
}

func TestComputeClipsAtStrength(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, Rule{Name: "near", If: Is("distance", "near"), Then: []Assignment{Then("speed", "slow")}})

	// symmetric triangle clipped at any height keeps its centroid at 0
	for _, d := range []float64{0, 0.25, 0.35, 0.45} {
		out, err := rb.Compute(Inputs{"distance": d})
		require.NoError(t, err)
		assert.InDelta(t, 0, out["speed"], 1e-9)
	}
}

func TestComputeAndOr(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, m.rules()...)

	_, trace, err := rb.ComputeTraced(Inputs{"distance": 0.35, "angle": 0.5})
	require.NoError(t, err)
	require.Len(t, trace.Firings, 4)

	near := 0.5    // (0.5-0.35)/0.3
	far := 0.5     // (0.35-0.2)/0.3
	left := 1.0 / 3 // (0.6-0.5)/0.3
	right := 1.0 / 3

	assert.InDelta(t, near, trace.Firings[0].Strength, 1e-9)
	assert.InDelta(t, far, trace.Firings[1].Strength, 1e-9)
	assert.InDelta(t, math.Min(near, left), trace.Firings[2].Strength, 1e-9)
	assert.InDelta(t, math.Max(right, math.Min(far, left)), trace.Firings[3].Strength, 1e-9)
	assert.Equal(t, []Assignment{Then("turn", "right"), Then("speed", "slow")}, trace.Firings[2].Then)
}

func TestComputeRuleOrderInvariance(t *testing.T) {
	m := newTestModel(t)
	rules := m.rules()
	reference := m.build(t, rules...)

	rng := rand.New(rand.NewSource(7))
	inputs := make([]Inputs, 50)
	for i := range inputs {
		inputs[i] = Inputs{"distance": rng.Float64(), "angle": rng.Float64()}
	}

	for p := 0; p < 20; p++ {
		shuffled := append([]Rule(nil), rules...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		permuted := m.build(t, shuffled...)

		for _, in := range inputs {
			want, err := reference.Compute(in)
			require.NoError(t, err)
			got, err := permuted.Compute(in)
			require.NoError(t, err)
			require.Equal(t, want, got, "inputs %v", in)
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, m.rules()...)

	first, err := rb.Compute(Inputs{"distance": 0.33, "angle": 0.71})
	require.NoError(t, err)
	second, err := rb.Compute(Inputs{"distance": 0.33, "angle": 0.71})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeDegenerate(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t,
		Rule{Name: "near_left", If: And(Is("distance", "near"), Is("angle", "left")), Then: []Assignment{Then("speed", "fast"), Then("turn", "right")}},
	)

	out, trace, err := rb.ComputeTraced(Inputs{"distance": 1, "angle": 1})
	require.NoError(t, err)
	assert.Equal(t, Outputs{"speed": 0, "turn": 0}, out)
	assert.Empty(t, trace.Fired())
	for _, o := range trace.Outputs {
		assert.True(t, o.Degenerate, o.Variable)
	}
}

func TestComputeInvalidInput(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, m.rules()...)

	_, err := rb.Compute(Inputs{"distance": 0.5})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = rb.Compute(Inputs{"distance": 0.5, "angle": 0.5, "altitude": 3})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = rb.Compute(Inputs{"distance": math.NaN(), "angle": 0.5})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeOnlyNeedsReferencedInputs(t *testing.T) {
	m := newTestModel(t)
	rb := m.build(t, Rule{Name: "far", If: Is("distance", "far"), Then: []Assignment{Then("speed", "fast")}})
	assert.Equal(t, []string{"distance"}, rb.Antecedents())

	_, err := rb.Compute(Inputs{"distance": 0.5})
	require.NoError(t, err)
}

func TestNewRuleBaseRejectsBadReferences(t *testing.T) {
	m := newTestModel(t)
	ins := []*Variable{m.distance, m.angle}
	outs := []*Variable{m.speed, m.turn}

	tests := []struct {
		name string
		rule Rule
	}{
		{name: "unknown antecedent", rule: Rule{If: Is("altitude", "high"), Then: []Assignment{Then("speed", "fast")}}},
		{name: "unknown antecedent term", rule: Rule{If: Is("distance", "medium"), Then: []Assignment{Then("speed", "fast")}}},
		{name: "unknown consequent", rule: Rule{If: Is("distance", "far"), Then: []Assignment{Then("heading", "north")}}},
		{name: "unknown consequent term", rule: Rule{If: Is("distance", "far"), Then: []Assignment{Then("speed", "warp")}}},
		{name: "no antecedent", rule: Rule{Then: []Assignment{Then("speed", "fast")}}},
		{name: "empty and", rule: Rule{If: And(), Then: []Assignment{Then("speed", "fast")}}},
		{name: "nested empty or", rule: Rule{If: And(Is("distance", "far"), Or()), Then: []Assignment{Then("speed", "fast")}}},
		{name: "no consequent", rule: Rule{If: Is("distance", "far")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleBase("test", ins, outs, tt.rule)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := NewRuleBase("test", ins, outs)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRuleBase("test", []*Variable{m.distance, m.distance}, outs, m.rules()[0])
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestRuleString(t *testing.T) {
	r := Rule{
		If:   And(Is("distance", "near"), Or(Is("angle", "left"), Is("angle", "right"))),
		Then: []Assignment{Then("speed", "slow"), Then("turn", "left")},
	}
	assert.Equal(t, "IF (distance[near] & (angle[left] | angle[right])) THEN speed[slow], turn[left]", r.String())
}
