// Package congestion is the client side of the external congestion estimation service
package congestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/travigo/positiontracker/pkg/ctdf"
)

var ErrTimeout = errors.New("congestion estimate timed out")

type Observation struct {
	Position  ctdf.Position `json:"position"`
	Timestamp int64         `json:"timestamp"`
}

func NewObservation(position ctdf.Position, timestamp time.Time) Observation {
	return Observation{
		Position:  position,
		Timestamp: timestamp.Unix(),
	}
}

// Request carries the previous & current observation of a trip, in that order
type Request struct {
	RouteID      string        `json:"routeId"`
	TripID       string        `json:"tripId"`
	StopSequence uint32        `json:"stopSequence"`
	Positions    []Observation `json:"positions"`
}

type Result struct {
	CongestionLevel float64 `json:"congestionLevel"`
	PreviousStop    *string `json:"previousStop"`
	CurrentStop     *string `json:"currentStop"`
}

type Estimator interface {
	Estimate(ctx context.Context, request Request) (*Result, error)
}

type timeoutEstimator struct {
	estimator Estimator
	timeout   time.Duration
}

// WithTimeout bounds every Estimate call, a call running past the timeout returns ErrTimeout
func WithTimeout(estimator Estimator, timeout time.Duration) Estimator {
	return &timeoutEstimator{
		estimator: estimator,
		timeout:   timeout,
	}
}

func (t *timeoutEstimator) Estimate(ctx context.Context, request Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type estimate struct {
		result *Result
		err    error
	}
	done := make(chan estimate, 1)

	go func() {
		result, err := t.estimator.Estimate(ctx, request)
		done <- estimate{result: result, err: err}
	}()

	select {
	case e := <-done:
		return e.result, e.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, t.timeout, ctx.Err())
	}
}
