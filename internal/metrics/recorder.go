// Package metrics exposes orchestrator counters. The Noop recorder is the
// default when no metrics listener is configured.
package metrics

import "time"

// Recorder receives observability hooks from the orchestrator.
type Recorder interface {
	IncCycle(outcome string)
	ObserveFetch(d time.Duration, ok bool)
	IncSinkResult(sink string, ok bool)
	IncLedgerWriteFailure()
	SetLastAnnounced(day time.Time)
}

type NoopRecorder struct{}

func (NoopRecorder) IncCycle(string)                  {}
func (NoopRecorder) ObserveFetch(time.Duration, bool) {}
func (NoopRecorder) IncSinkResult(string, bool)       {}
func (NoopRecorder) IncLedgerWriteFailure()           {}
func (NoopRecorder) SetLastAnnounced(time.Time)       {}
