package navigation

import (
	"fmt"

	"github.com/Speshl/gorrc_nav/internal/fuzzy"
)

const (
	PositionX = "position_x"
	PositionY = "position_y"
	VelocityX = "velocity_x"
	VelocityY = "velocity_y"

	// position_x terms
	FarBack   = "far_back"
	NearBack  = "near_back"
	Center    = "center"
	NearFront = "near_front"
	FarFront  = "far_front"

	// position_y terms, positive y is left
	FarRight  = "far_right"
	NearRight = "near_right"
	NearLeft  = "near_left"
	FarLeft   = "far_left"

	// sensor terms
	Dangerous = "dangerous"
	Safe      = "safe"

	// velocity directions, positive x is forward and positive y is left
	Backward = "backward"
	Forward  = "forward"
	Right    = "right"
	Left     = "left"

	Stop = "stop"
)

// Sensor indexes the seven proximity readings in the order the controller
// consumes them.
type Sensor int

const (
	LeftFront Sensor = iota
	LeftRear
	Front
	RightFront
	RightRear
	BackLeft
	BackRight
)

const SensorCount = 7

var sensorNames = [SensorCount]string{
	"left_front",
	"left_rear",
	"front",
	"right_front",
	"right_rear",
	"back_left",
	"back_right",
}

func (s Sensor) String() string {
	if s < 0 || int(s) >= SensorCount {
		return fmt.Sprintf("sensor(%d)", int(s))
	}
	return sensorNames[s]
}

// Sensors lists every sensor in controller order.
func Sensors() []Sensor {
	sensors := make([]Sensor, SensorCount)
	for i := range sensors {
		sensors[i] = Sensor(i)
	}
	return sensors
}

// Velocity term names by direction.
func Fast(dir string) string { return dir + "_fast" }
func Med(dir string) string { return dir + "_med" }
func Slow(dir string) string { return dir + "_slow" }

// Model is the set of linguistic variables shared by both rule bases.
type Model struct {
	PositionX *fuzzy.Variable
	PositionY *fuzzy.Variable
	Sensors   [SensorCount]*fuzzy.Variable
	VelocityX *fuzzy.Variable
	VelocityY *fuzzy.Variable
}

func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model{}
	var err error

	m.PositionX, err = newPosition(PositionX, cfg, [5]string{FarBack, NearBack, Center, NearFront, FarFront})
	if err != nil {
		return nil, err
	}
	m.PositionY, err = newPosition(PositionY, cfg, [5]string{FarRight, NearRight, Center, NearLeft, FarLeft})
	if err != nil {
		return nil, err
	}

	for _, s := range Sensors() {
		m.Sensors[s], err = newSensor(s.String(), cfg)
		if err != nil {
			return nil, err
		}
	}

	m.VelocityX, err = newVelocity(VelocityX, cfg, Backward, Forward)
	if err != nil {
		return nil, err
	}
	m.VelocityY, err = newVelocity(VelocityY, cfg, Right, Left)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) antecedents() []*fuzzy.Variable {
	vars := []*fuzzy.Variable{m.PositionX, m.PositionY}
	return append(vars, m.Sensors[:]...)
}

func (m *Model) consequents() []*fuzzy.Variable {
	return []*fuzzy.Variable{m.VelocityX, m.VelocityY}
}

// shapes collects constructor errors so term tables read as data.
type shapes struct {
	err error
}

func (s *shapes) trap(a, b, c, d float64) fuzzy.Membership {
	t, err := fuzzy.NewTrapezoid(a, b, c, d)
	if err != nil && s.err == nil {
		s.err = err
	}
	return t
}

func (s *shapes) tri(a, b, c float64) fuzzy.Membership {
	t, err := fuzzy.NewTriangle(a, b, c)
	if err != nil && s.err == nil {
		s.err = err
	}
	return t
}

// newPosition builds a target offset variable. The dead zone [-0.04, 0.04]
// is center, 0.04-0.12 is near and beyond 0.12 is far.
func newPosition(name string, cfg Config, terms [5]string) (*fuzzy.Variable, error) {
	limit := cfg.PositionLimit
	u, err := fuzzy.NewUniverse(name, -limit, limit, cfg.Resolution)
	if err != nil {
		return nil, err
	}

	s := &shapes{}
	ts := []fuzzy.Term{
		fuzzy.NewTerm(terms[0], s.trap(-limit, -0.8*limit, -0.12, -0.1)),
		fuzzy.NewTerm(terms[1], s.trap(-0.12, -0.1, -0.04, 0)),
		fuzzy.NewTerm(terms[2], s.tri(-0.04, 0, 0.04)),
		fuzzy.NewTerm(terms[3], s.trap(0, 0.04, 0.1, 0.12)),
		fuzzy.NewTerm(terms[4], s.trap(0.1, 0.12, 0.8*limit, limit)),
	}
	if s.err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, s.err)
	}
	return fuzzy.NewVariable(name, u, ts...)
}

func newSensor(name string, cfg Config) (*fuzzy.Variable, error) {
	limit := cfg.SensorLimit
	u, err := fuzzy.NewUniverse(name, 0, limit, cfg.Resolution)
	if err != nil {
		return nil, err
	}

	s := &shapes{}
	ts := []fuzzy.Term{
		fuzzy.NewTerm(Dangerous, s.trap(0, 0, 0.17, 0.20)),
		fuzzy.NewTerm(Safe, s.trap(0.17, 0.20, limit, limit)),
	}
	if s.err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, s.err)
	}
	return fuzzy.NewVariable(name, u, ts...)
}

func newVelocity(name string, cfg Config, neg, pos string) (*fuzzy.Variable, error) {
	limit := cfg.OutputLimit
	u, err := fuzzy.NewUniverse(name, -limit, limit, cfg.Resolution)
	if err != nil {
		return nil, err
	}

	s := &shapes{}
	ts := []fuzzy.Term{
		fuzzy.NewTerm(Fast(neg), s.trap(-limit, -limit, -0.22, -0.2)),
		fuzzy.NewTerm(Med(neg), s.trap(-0.22, -0.2, -0.12, -0.1)),
		fuzzy.NewTerm(Slow(neg), s.trap(-0.12, -0.1, -0.025, 0)),
		fuzzy.NewTerm(Stop, s.tri(-0.025, 0, 0.025)),
		fuzzy.NewTerm(Slow(pos), s.trap(0, 0.025, 0.1, 0.12)),
		fuzzy.NewTerm(Med(pos), s.trap(0.1, 0.12, 0.2, 0.22)),
		fuzzy.NewTerm(Fast(pos), s.trap(0.2, 0.22, limit, limit)),
	}
	if s.err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, s.err)
	}
	return fuzzy.NewVariable(name, u, ts...)
}
