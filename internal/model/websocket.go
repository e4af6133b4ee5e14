package model

// WebSocket message types
const (
	WSMessageTypeState = "state"
	WSMessageTypePing  = "ping"
	WSMessageTypePong  = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobUpdate is broadcast to job subscribers on every state transition.
type WSJobUpdate struct {
	Type    string     `json:"type"`
	JobID   string     `json:"jobId"`
	State   JobState   `json:"state"`
	Attempt int        `json:"attempt"`
	Result  *JobResult `json:"result,omitempty"`
	Error   *JobError  `json:"error,omitempty"`
}
