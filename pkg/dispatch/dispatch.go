// Package dispatch hands resolved worker requests to an asynchronous
// execution backend.
package dispatch

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dukex/jobline/pkg/params"
	"github.com/google/uuid"
)

// ErrDuplicateTask is returned when a backend already accepted a task with
// the same name.
var ErrDuplicateTask = errors.New("task name already dispatched")

// Request is one worker execution for a job.
type Request struct {
	TaskName    string
	PipelineID  string
	JobID       string
	WorkerClass string
	Params      map[string]params.Value
	Delay       time.Duration
}

// TaskHandle identifies an accepted task.
type TaskHandle struct {
	TaskName  string    `json:"task_name"`
	NotBefore time.Time `json:"not_before"`
}

// Dispatcher accepts a request and executes it later, out of process.
// Completion is reported back through the orchestrator callbacks.
type Dispatcher interface {
	Dispatch(ctx context.Context, request Request) (TaskHandle, error)
}

var unsafeTaskChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TaskName builds "{pipeline}_{job}_{worker}_{uuid}" with every character
// outside [a-zA-Z0-9_-] replaced by "-".
func TaskName(pipelineName, jobName, workerClass string) string {
	prefix := strings.Join([]string{pipelineName, jobName, workerClass}, "_")

	return unsafeTaskChars.ReplaceAllString(prefix, "-") + "_" + uuid.NewString()
}
