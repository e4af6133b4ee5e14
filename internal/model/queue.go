package model

// QueueStatus is a snapshot of the admission queue and dispatch slot.
// MaxConcurrency is always 1: the downstream engine is a serial resource.
type QueueStatus struct {
	MaxConcurrency int            `json:"maxConcurrency"`
	PendingCount   int            `json:"pendingCount"`
	RunningJobID   *string        `json:"runningJobId,omitempty"`
	Positions      map[string]int `json:"positions"`
}
