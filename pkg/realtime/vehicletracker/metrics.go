package vehicletracker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

var (
	eventOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "positiontracker_events_total",
		Help: "Vehicle events processed by city and outcome",
	}, []string{"city", "outcome"})

	payloadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "positiontracker_payload_failures_total",
		Help: "Payloads rejected because they couldn't be decoded",
	}, []string{"city"})

	estimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "positiontracker_congestion_estimate_seconds",
		Help:    "Congestion estimator call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"city", "success"})
)

type instrumentedEstimator struct {
	city      ctdf.City
	estimator congestion.Estimator
}

// InstrumentEstimator records the latency of every estimate for city
func InstrumentEstimator(city ctdf.City, estimator congestion.Estimator) congestion.Estimator {
	return &instrumentedEstimator{city: city, estimator: estimator}
}

func (i *instrumentedEstimator) Estimate(ctx context.Context, request congestion.Request) (*congestion.Result, error) {
	startTime := time.Now()
	result, err := i.estimator.Estimate(ctx, request)

	success := "true"
	if err != nil {
		success = "false"
	}
	estimateDuration.WithLabelValues(string(i.city), success).Observe(time.Since(startTime).Seconds())

	return result, err
}
