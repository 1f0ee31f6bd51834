package tasks

import (
	"context"
	"time"

	"github.com/harborlight-org/tokend/internal/logging"
)

// SweepFunc is the unit of maintenance work (e.g. purging expired token
// metadata). It receives a logger whose output is also captured into
// the task's own log buffer.
type SweepFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskStatus struct {
	Name       string    `json:"name,omitempty"`
	Running    bool      `json:"running,omitempty"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}
