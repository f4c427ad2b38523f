// Package control holds the unix-socket protocol between the CLI and
// the daemon, plus the cobra commands that speak it.
package control

import "time"

type Request struct {
	Op string `json:"op"`
}

// Status is the daemon's answer to the "status" op.
type Status struct {
	Running        bool         `json:"running"`
	UptimeSec      float64      `json:"uptime_sec"`
	State          string       `json:"state"`
	SessionID      string       `json:"session_id,omitempty"`
	ElapsedSec     float64      `json:"elapsed_sec,omitempty"`
	QueueDepth     int          `json:"queue_depth"`
	EngineReady    bool         `json:"engine_ready"`
	DroppedBatches int64        `json:"dropped_batches"`
	LastHeardSec   float64      `json:"last_heard_sec,omitempty"`
	Transcripts    []Transcript `json:"transcripts"`
	TS             int64        `json:"ts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// StopResponse carries the final transcript of the stopped session.
type StopResponse struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript"`
}

// ToggleResponse reports which way the toggle went.
type ToggleResponse struct {
	OK         bool   `json:"ok"`
	Action     string `json:"action"` // started, stopped, busy
	Message    string `json:"message,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type Transcript struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
