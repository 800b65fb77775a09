package usecase

import (
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
	"pacenotes/internal/protocol"
)

var (
	ErrMissingPaths     = errors.New("mission path and output path must be set before recording")
	ErrUnknownRecording = errors.New("no recording is pending with that id")
	ErrStillRecording   = errors.New("clip is still recording")
	ErrEmptyRecording   = errors.New("captured recording is empty")
)

// maxPendingRecordings bounds how many stopped recordings may wait for their
// audio at once.
const maxPendingRecordings = 16

// Config controls how accepted recordings are turned into jobs.
type Config struct {
	Format  domain.AudioFormat
	Version string
}

// SessionController applies control-channel commands to the session record
// and turns submitted recordings into transcode jobs.
type SessionController struct {
	events ports.EventSink
	jobs   ports.JobDispatcher
	logger *zap.Logger
	cfg    Config

	mu    sync.Mutex
	state sessionState
}

func NewSessionController(events ports.EventSink, jobs ports.JobDispatcher, logger *zap.Logger, cfg Config) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		events: events,
		jobs:   jobs,
		logger: logger,
		cfg:    cfg,
		state:  newSessionState(),
	}
}

// ApplyLine echoes one received line to the UI and then applies it.
func (c *SessionController) ApplyLine(line string) domain.SideEffect {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events.CommandReceived(line)
	command, ok := protocol.ParseLine(line)
	if !ok {
		return domain.SideEffect{Kind: domain.SideEffectNone}
	}
	return c.handleLocked(command)
}

// Handle applies one command. Every command, accepted or rejected, is
// followed by a full status broadcast.
func (c *SessionController) Handle(command domain.Command) domain.SideEffect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleLocked(command)
}

func (c *SessionController) handleLocked(command domain.Command) domain.SideEffect {
	s := &c.state
	s.lastCommand = command.Raw
	if s.lastCommand == "" {
		s.lastCommand = string(command.Verb)
	}

	effect := domain.SideEffect{Kind: domain.SideEffectStatusChanged, ClipIndex: s.clipIndex}

	switch command.Verb {
	case domain.VerbMission:
		path := command.Arg(0)
		if path == "" {
			c.logger.Warn("mission command without a path")
			break
		}
		s.missionPath, s.hasMission = path, true
		c.logger.Info("mission path set", zap.String("mission", path))

	case domain.VerbDataPath:
		path := command.Arg(0)
		if path == "" {
			c.logger.Warn("data_path command without a path")
			break
		}
		s.outputPath, s.hasOutput = path, true
		c.logger.Info("output path set", zap.String("output", path))

	case domain.VerbRecordStart:
		if !s.canRecord() {
			c.logger.Warn("record_start rejected",
				zap.Error(ErrMissingPaths),
				zap.Bool("has_mission", s.hasMission),
				zap.Bool("has_output", s.hasOutput),
			)
			c.events.SessionError(domain.ErrorCodeCommand, ErrMissingPaths.Error())
			break
		}
		s.recording = true
		s.clipIndex++
		recording := domain.Recording{ID: uuid.NewString(), ClipIndex: s.clipIndex}
		s.active, s.hasActive = recording, true
		dropped := s.addPending(recording.ID, domain.ClipTarget{
			OutputRoot:  s.outputPath,
			MissionPath: s.missionPath,
			ClipIndex:   s.clipIndex,
		}, maxPendingRecordings)
		for _, target := range dropped {
			c.logger.Warn("recording never received audio; forgotten",
				zap.Int("clip_index", target.ClipIndex),
				zap.String("mission", target.MissionPath),
			)
		}
		c.logger.Info("recording started",
			zap.String("recording_id", recording.ID),
			zap.Int("clip_index", s.clipIndex),
			zap.String("mission", s.missionPath),
		)
		c.events.RecordingStartRequested(recording)
		effect = domain.SideEffect{Kind: domain.SideEffectStartRecordingRequested, ClipIndex: s.clipIndex, RecordingID: recording.ID}

	case domain.VerbRecordStop:
		recording := domain.Recording{ClipIndex: s.clipIndex}
		if s.hasActive {
			recording = s.active
		}
		if s.recording {
			c.logger.Info("recording stopped",
				zap.String("recording_id", recording.ID),
				zap.Int("clip_index", recording.ClipIndex),
			)
		}
		s.recording = false
		s.hasActive = false
		c.events.RecordingStopRequested(recording)
		effect = domain.SideEffect{Kind: domain.SideEffectStopRecordingRequested, ClipIndex: recording.ClipIndex, RecordingID: recording.ID}

	case domain.VerbMissionEnd:
		s.missionPath, s.hasMission = "", false
		c.logger.Info("mission ended", zap.Bool("recording", s.recording))

	case domain.VerbResetCount:
		s.clipIndex = -1
		if raw := command.Arg(0); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				s.clipIndex = n - 1
			} else {
				c.logger.Warn("reset_count argument is not an integer", zap.String("arg", raw))
			}
		}
		effect.ClipIndex = s.clipIndex
		c.logger.Info("counter reset", zap.Int("clip_index", s.clipIndex))

	default:
		c.logger.Warn("unknown command", zap.String("verb", string(command.Verb)), zap.String("raw", command.Raw))
	}

	c.events.StatusChanged(s.snapshot(c.cfg.Version))
	return effect
}

// SetHosting records the control listener status and broadcasts it.
func (c *SessionController) SetHosting(status domain.HostingStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.hosting == status {
		return
	}
	c.state.hosting = status
	c.events.StatusChanged(c.state.snapshot(c.cfg.Version))
}

// SetConnected records whether a control client is attached and broadcasts it.
func (c *SessionController) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.connected = connected
	c.events.StatusChanged(c.state.snapshot(c.cfg.Version))
}

// Status returns the current session snapshot.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot(c.cfg.Version)
}

// SubmitRecording accepts the captured audio for a stopped recording and
// hands a transcode job to the pipeline. The job carries its own copy of the
// audio and the target captured when the recording started. An empty buffer
// releases the recording without saving anything.
func (c *SessionController) SubmitRecording(recordingID string, audio []byte) error {
	c.mu.Lock()
	pending, ok := c.state.pending[recordingID]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn("captured audio for unknown recording", zap.String("recording_id", recordingID))
		return ErrUnknownRecording
	}
	if c.state.recording && c.state.hasActive && c.state.active.ID == recordingID {
		c.mu.Unlock()
		return ErrStillRecording
	}
	delete(c.state.pending, recordingID)
	c.mu.Unlock()

	target := pending.target
	if len(audio) == 0 {
		c.logger.Warn("captured audio is empty; clip dropped",
			zap.String("recording_id", recordingID),
			zap.Int("clip_index", target.ClipIndex),
		)
		return ErrEmptyRecording
	}

	job := domain.TranscodeJob{
		ID:     uuid.NewString(),
		Input:  append([]byte(nil), audio...),
		Target: target,
		Format: c.cfg.Format,
	}
	c.logger.Info("transcode job queued",
		zap.String("job_id", job.ID),
		zap.Int("clip_index", target.ClipIndex),
		zap.Int("input_bytes", len(job.Input)),
	)
	c.jobs.Dispatch(job)
	return nil
}
