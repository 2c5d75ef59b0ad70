// Package types defines shared types used across the application.
package types

import "time"

// RunStatus is the terminal (or current) state of a listing run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusAborted RunStatus = "aborted"
)

// RunRecord represents the result of one listing workflow run. It is what
// gets persisted, written by the output writers and served by the api.
type RunRecord struct {
	RunID      string    `json:"runId"`
	AccountKey string    `json:"accountKey"`
	Category   string    `json:"category"`
	Title      string    `json:"title,omitempty"`
	Status     RunStatus `json:"status"`
	FailedStep string    `json:"failedStep,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	States     []string  `json:"states,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Account is a registered seller account with its persistent browser profile.
type Account struct {
	Key        string    `json:"key"`
	ProfileDir string    `json:"profileDir"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt,omitzero"`
}
