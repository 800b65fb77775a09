// Package headless runs the recorder without a window: ffmpeg captures the
// microphone between record_start and record_stop, and a beep confirms each
// saved clip.
package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"pacenotes/internal/audio"
	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
)

const defaultSampleRate = 48000

type intentKind int

const (
	intentStart intentKind = iota
	intentStop
)

type intent struct {
	kind      intentKind
	recording domain.Recording
}

type activeCapture struct {
	recording domain.Recording
	session   ports.AudioSession
	done      chan captureResult
}

// CueFunc plays the confirmation for a saved clip.
type CueFunc func(result domain.ClipResult) error

// Surface is the headless EventSink. Recording intents are queued and
// handled in order on the Run goroutine, never on the caller's.
type Surface struct {
	capture  ports.AudioCapture
	audioCfg ports.AudioConfig
	logger   *zap.Logger
	cue      CueFunc

	mu       sync.Mutex
	recorder ports.Recorder
	queue    []intent
	wake     chan struct{}
	active   *activeCapture
}

func NewSurface(capture ports.AudioCapture, audioCfg ports.AudioConfig, cue CueFunc, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audioCfg.SampleRate <= 0 {
		audioCfg.SampleRate = defaultSampleRate
	}
	if audioCfg.Channels <= 0 {
		audioCfg.Channels = 1
	}
	return &Surface{
		capture:  capture,
		audioCfg: audioCfg,
		logger:   logger,
		cue:      cue,
		wake:     make(chan struct{}, 1),
	}
}

// Beep is the default cue: a short tone plus a desktop notification.
func Beep(result domain.ClipResult) error {
	if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
		return err
	}
	return beeep.Notify("pacenotes", fmt.Sprintf("Pacenote %d saved", result.ClipIndex), "")
}

// Attach sets the component that receives captured recordings.
func (s *Surface) Attach(recorder ports.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = recorder
}

// Run processes queued recording intents until ctx is cancelled. An open
// capture is finished and submitted before returning.
func (s *Surface) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.finish()
			return nil
		case <-s.wake:
		}

		for {
			next, ok := s.dequeue()
			if !ok {
				break
			}
			switch next.kind {
			case intentStart:
				s.begin(ctx, next.recording)
			case intentStop:
				s.finish()
			}
		}
	}
}

func (s *Surface) StatusChanged(status domain.Status) {
	s.logger.Debug("status",
		zap.String("mission", status.MissionPath),
		zap.String("output", status.OutputPath),
		zap.Bool("recording", status.Recording),
		zap.Int("counter", status.Counter),
		zap.String("hosting", string(status.HostingStatus)),
		zap.Bool("connected", status.IsConnected),
	)
}

func (s *Surface) CommandReceived(line string) {
	s.logger.Debug("command received", zap.String("line", line))
}

func (s *Surface) RecordingStartRequested(recording domain.Recording) {
	s.enqueue(intent{kind: intentStart, recording: recording})
}

func (s *Surface) RecordingStopRequested(recording domain.Recording) {
	s.enqueue(intent{kind: intentStop, recording: recording})
}

func (s *Surface) ClipSaved(result domain.ClipResult) {
	s.logger.Info("pacenote saved", zap.Int("clip_index", result.ClipIndex), zap.String("path", result.Path))
	if s.cue == nil {
		return
	}
	go func() {
		if err := s.cue(result); err != nil {
			s.logger.Debug("confirmation cue failed", zap.Error(err))
		}
	}()
}

func (s *Surface) SessionError(code domain.ErrorCode, detail string) {
	s.logger.Warn("session error", zap.String("code", string(code)), zap.String("detail", detail))
}

func (s *Surface) enqueue(next intent) {
	s.mu.Lock()
	s.queue = append(s.queue, next)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Surface) dequeue() (intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return intent{}, false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, true
}

func (s *Surface) begin(ctx context.Context, recording domain.Recording) {
	if s.active != nil {
		s.logger.Warn("record_start while capturing; finishing previous clip",
			zap.Int("previous", s.active.recording.ClipIndex),
			zap.Int("clip_index", recording.ClipIndex),
		)
		s.finish()
	}

	session, err := s.capture.Start(ctx, s.audioCfg)
	if err != nil {
		s.logger.Error("microphone capture failed to start", zap.Int("clip_index", recording.ClipIndex), zap.Error(err))
		// Nothing will be captured; release the pending recording.
		s.submit(recording, nil)
		return
	}

	active := &activeCapture{
		recording: recording,
		session:   session,
		done:      make(chan captureResult, 1),
	}
	go collectPCM(session, defaultChunkSize, active.done)
	s.active = active
	s.logger.Info("capturing", zap.Int("clip_index", recording.ClipIndex))
}

func (s *Surface) finish() {
	active := s.active
	if active == nil {
		return
	}
	s.active = nil

	stopErr := active.session.Stop()
	result := <-active.done
	_ = active.session.Close()

	clipIndex := active.recording.ClipIndex
	if stopErr != nil {
		s.logger.Warn("microphone capture stopped with error", zap.Int("clip_index", clipIndex), zap.Error(stopErr))
	}
	if result.err != nil {
		s.logger.Warn("microphone capture read error", zap.Int("clip_index", clipIndex), zap.Error(result.err))
	}

	var wavData []byte
	if len(result.pcm) > 0 {
		encoded, err := audio.EncodeWAV(result.pcm, s.audioCfg.SampleRate, s.audioCfg.Channels)
		if err != nil {
			s.logger.Error("could not wrap captured audio", zap.Int("clip_index", clipIndex), zap.Error(err))
		} else {
			wavData = encoded
		}
	}
	s.submit(active.recording, wavData)
}

// submit hands the buffer to the recorder. An empty buffer releases the
// recording without saving a clip.
func (s *Surface) submit(recording domain.Recording, data []byte) {
	s.mu.Lock()
	recorder := s.recorder
	s.mu.Unlock()
	if recorder == nil {
		s.logger.Error("no recorder attached; clip dropped", zap.Int("clip_index", recording.ClipIndex))
		return
	}
	if err := recorder.SubmitRecording(recording.ID, data); err != nil {
		s.logger.Warn("recording not accepted",
			zap.String("recording_id", recording.ID),
			zap.Int("clip_index", recording.ClipIndex),
			zap.Error(err),
		)
	}
}
