package usecase

import (
	"pacenotes/internal/domain"
)

// sessionState is the single mutable session record. Only SessionController
// touches it, always under the controller mutex.
type sessionState struct {
	missionPath string
	hasMission  bool
	outputPath  string
	hasOutput   bool

	recording bool
	active    domain.Recording
	hasActive bool

	clipIndex   int
	hosting     domain.HostingStatus
	connected   bool
	lastCommand string

	// pending holds the save target captured at record_start, keyed by
	// recording ID, until the UI surface submits the captured audio.
	pending    map[string]pendingClip
	pendingSeq uint64
}

type pendingClip struct {
	target domain.ClipTarget
	seq    uint64
}

func newSessionState() sessionState {
	return sessionState{
		clipIndex: -1,
		hosting:   domain.HostingStarting,
		pending:   make(map[string]pendingClip),
	}
}

func (s *sessionState) snapshot(version string) domain.Status {
	return domain.Status{
		MissionPath:   s.missionPath,
		OutputPath:    s.outputPath,
		Recording:     s.recording,
		Counter:       s.clipIndex,
		IsHosting:     s.hosting == domain.HostingListening,
		HostingStatus: s.hosting,
		IsConnected:   s.connected,
		LastCommand:   s.lastCommand,
		Version:       version,
	}
}

func (s *sessionState) canRecord() bool {
	return s.hasMission && s.missionPath != "" && s.hasOutput && s.outputPath != ""
}

// addPending stores the target for a new recording. When more than limit
// recordings are waiting for audio, the oldest ones are forgotten.
func (s *sessionState) addPending(id string, target domain.ClipTarget, limit int) []domain.ClipTarget {
	s.pendingSeq++
	s.pending[id] = pendingClip{target: target, seq: s.pendingSeq}

	var dropped []domain.ClipTarget
	for limit > 0 && len(s.pending) > limit {
		oldestID := ""
		var oldest pendingClip
		for key, clip := range s.pending {
			if oldestID == "" || clip.seq < oldest.seq {
				oldestID, oldest = key, clip
			}
		}
		delete(s.pending, oldestID)
		dropped = append(dropped, oldest.target)
	}
	return dropped
}
