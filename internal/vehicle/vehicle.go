package vehicle

// DriverCommand is one named channel value in [Min, Max]. Drivers map it to
// whatever their hardware expects.
type DriverCommand struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

type CommandDriverIFace interface {
	Init() error
	Set(DriverCommand) error
	SetMany([]DriverCommand) error
	Stop() error
}

// Base is a drive base that accepts body frame velocities.
type Base interface {
	Init() error
	Drive(vx, vy, omega float64) error
	Stop() error
}

// MapToRange linearly maps value from [min, max] to [minReturn, maxReturn]
// and saturates the result.
func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}
