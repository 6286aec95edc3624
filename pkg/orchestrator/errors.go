package orchestrator

import "fmt"

// ConfigurationError reports a job param that cannot be resolved.
type ConfigurationError struct {
	JobID string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("job %s has a bad param: %v", e.JobID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
