package check

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid check configuration. It is detected
// once, at construction, and is never retried.
type ConfigError struct {
	CheckID string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("check %q: %s", e.CheckID, e.Reason)
}

// ThresholdResolutionError wraps a scalar-query failure encountered
// while resolving a dynamic bound.
type ThresholdResolutionError struct {
	Bound string // "min" or "max"
	Err   error
}

func (e *ThresholdResolutionError) Error() string {
	return fmt.Sprintf("resolving %s threshold: %v", e.Bound, e.Err)
}

func (e *ThresholdResolutionError) Unwrap() error {
	return e.Err
}

// FailedError reports a check whose measured value fell outside its
// thresholds with no sink configured to absorb the failure. The
// message carries everything needed to diagnose without re-running.
type FailedError struct {
	Result Result
	SQL    string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf(
		"data quality check %q failed\ndescription: %s\nexecuted at: %s\nsql: %s\nresult: %.2f is not within thresholds %v and %v",
		e.Result.CheckID,
		e.Result.Description,
		e.Result.ExecutedAt.Format(time.RFC3339),
		e.SQL,
		e.Result.Value,
		e.Result.MinThreshold,
		e.Result.MaxThreshold,
	)
}
