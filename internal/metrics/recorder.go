package metrics

import "time"

// ResultLabel enumerates per-file result categories for counters.
type ResultLabel string

const (
	ResultBuilt    ResultLabel = "built"
	ResultUpToDate ResultLabel = "up_to_date"
	ResultFailed   ResultLabel = "failed"
)

// Build outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder defines observability hooks for build passes and per-file work.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed
	ObserveFileDuration(program string, d time.Duration)
	IncFileResult(program string, result ResultLabel)
	SetFilesVisited(n int)
	IncEvent(event string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)        {}
func (NoopRecorder) IncBuildOutcome(string)                    {}
func (NoopRecorder) ObserveFileDuration(string, time.Duration) {}
func (NoopRecorder) IncFileResult(string, ResultLabel)         {}
func (NoopRecorder) SetFilesVisited(int)                       {}
func (NoopRecorder) IncEvent(string)                           {}
