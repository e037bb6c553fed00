package models

import "time"

// EngineState represents the scheduler lifecycle state
type EngineState string

const (
	StateStopped  EngineState = "stopped"
	StateStarting EngineState = "starting"
	StateRunning  EngineState = "running"
	StateStopping EngineState = "stopping"
)

// Rejection reasons surfaced in the engine status counters.
const (
	ReasonDataError      = "data-error"
	ReasonInvalidData    = "invalid-snapshot"
	ReasonSafetyFilter   = "safety-filter"
	ReasonBelowHeat      = "below-heat-threshold"
	ReasonCooldownActive = "cooldown"
)

// EngineStatus is a point-in-time view of the scheduler. The scheduler is
// the only writer; callers always receive a copy.
type EngineStatus struct {
	State           EngineState       `json:"state"`
	Running         bool              `json:"running"`
	CycleCount      uint64            `json:"cycle_count"`
	TotalSignals    uint64            `json:"total_signals"`
	TotalRejections uint64            `json:"total_rejections"`
	Rejections      map[string]uint64 `json:"rejections"`
	LastCycleAt     time.Time         `json:"last_cycle_at"`
	LastReport      string            `json:"last_report"`
	SourceHealth    map[string]bool   `json:"source_health"`
}
