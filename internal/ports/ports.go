package ports

import (
	"context"
	"io"

	"pacenotes/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcoder converts a captured audio buffer into a compressed format.
// It returns either the complete output or an error, never partial bytes.
type Transcoder interface {
	Transcode(ctx context.Context, input []byte, format domain.AudioFormat) ([]byte, error)
}

// ClipStore persists transcoded clips.
type ClipStore interface {
	Write(ctx context.Context, data []byte, target domain.ClipTarget, ext string) (string, error)
}

// JobDispatcher accepts transcode jobs and runs them off the command path.
type JobDispatcher interface {
	Dispatch(job domain.TranscodeJob)
}

// EventSink emits backend state/events to the UI surface.
// Implementations must not call back into the session controller synchronously.
type EventSink interface {
	StatusChanged(status domain.Status)
	CommandReceived(line string)
	RecordingStartRequested(recording domain.Recording)
	RecordingStopRequested(recording domain.Recording)
	ClipSaved(result domain.ClipResult)
	SessionError(code domain.ErrorCode, detail string)
}

// Recorder is the receiving end of captured audio buffers. Buffers are
// matched by the recording ID carried in the start and stop intents.
type Recorder interface {
	SubmitRecording(recordingID string, audio []byte) error
}
