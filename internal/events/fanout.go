// Package events fans session notifications out to several surfaces.
package events

import (
	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
)

// Fanout forwards every notification to each sink in order.
type Fanout []ports.EventSink

func New(sinks ...ports.EventSink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	return out
}

func (f Fanout) StatusChanged(status domain.Status) {
	for _, sink := range f {
		sink.StatusChanged(status)
	}
}

func (f Fanout) CommandReceived(line string) {
	for _, sink := range f {
		sink.CommandReceived(line)
	}
}

func (f Fanout) RecordingStartRequested(recording domain.Recording) {
	for _, sink := range f {
		sink.RecordingStartRequested(recording)
	}
}

func (f Fanout) RecordingStopRequested(recording domain.Recording) {
	for _, sink := range f {
		sink.RecordingStopRequested(recording)
	}
}

func (f Fanout) ClipSaved(result domain.ClipResult) {
	for _, sink := range f {
		sink.ClipSaved(result)
	}
}

func (f Fanout) SessionError(code domain.ErrorCode, detail string) {
	for _, sink := range f {
		sink.SessionError(code, detail)
	}
}
