package usecasecontract

import "time"

// IEngagementMetrics records coordinator activity.
type IEngagementMetrics interface {
	ObserveAction(action, outcome string)
	ObserveTransport(action string, d time.Duration)
	ObserveRevalidationCorrection(action string)
}
