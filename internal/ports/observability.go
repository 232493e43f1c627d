package ports

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

// Submission outcomes reported to a WorkflowObserver
const (
	OutcomeEnhanced = "enhanced"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// WorkflowObserver receives workflow measurements
type WorkflowObserver interface {
	IncSubmitted(outcome string)
	IncImprovementCreated()
	IncDecision(status string)
	IncCatalogFailure()
	ObserveEnhancement(d time.Duration)
}

// EventPublisher broadcasts improvement events to subscribers
type EventPublisher interface {
	Publish(event *domain.ImprovementEvent)
}
