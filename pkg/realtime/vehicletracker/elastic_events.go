package vehicletracker

import (
	"fmt"
	"time"
)

type ReconciliationElasticEvent struct {
	ID        string
	Timestamp time.Time

	City    string
	TripID  string
	Outcome Outcome
	Reason  string
}

func reconciliationIndexName(now time.Time) string {
	yearNumber, weekNumber := now.ISOWeek()
	return fmt.Sprintf("positiontracker-reconciliation-events-%d-%d", yearNumber, weekNumber)
}
