package vehicletracker

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterEnv is what a city filter expression can see of an event,
// eg. `CurrentStatus in ["IN_TRANSIT_TO", "STOPPED_AT"]`
type FilterEnv struct {
	TripID              string
	StopID              string
	CurrentStatus       string
	CurrentStopSequence uint32
	Latitude            float64
	Longitude           float64
	Timestamp           int64
}

type EventFilter struct {
	source  string
	program *vm.Program
}

// NewEventFilter compiles the expression, an empty expression accepts everything
func NewEventFilter(source string) (*EventFilter, error) {
	if source == "" {
		return nil, nil
	}

	program, err := expr.Compile(source, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", source, err)
	}

	return &EventFilter{source: source, program: program}, nil
}

func (f *EventFilter) Accept(event *RawVehicleEvent) (bool, error) {
	if f == nil {
		return true, nil
	}

	env := FilterEnv{
		TripID:              event.TripID,
		StopID:              event.StopID,
		CurrentStatus:       event.CurrentStatus,
		CurrentStopSequence: event.CurrentStopSequence,
		Latitude:            event.Position.Latitude,
		Longitude:           event.Position.Longitude,
	}
	if !event.Timestamp.IsZero() {
		env.Timestamp = event.Timestamp.Unix()
	}

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("running filter %q: %w", f.source, err)
	}

	accepted, _ := result.(bool)
	return accepted, nil
}
