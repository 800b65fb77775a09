package domain

// Verb identifies a control-channel command.
type Verb string

const (
	VerbMission     Verb = "mission"
	VerbDataPath    Verb = "data_path"
	VerbRecordStart Verb = "record_start"
	VerbRecordStop  Verb = "record_stop"
	VerbMissionEnd  Verb = "mission_end"
	VerbResetCount  Verb = "reset_count"
)

// Command is one parsed control-channel line.
type Command struct {
	Verb Verb     `json:"verb"`
	Args []string `json:"args,omitempty"`
	Raw  string   `json:"raw"`
}

// Arg returns the positional argument at index i, or "" if absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// HostingStatus models the control listener lifecycle.
type HostingStatus string

const (
	HostingStarting     HostingStatus = "starting"
	HostingListening    HostingStatus = "listening"
	HostingRetryingBind HostingStatus = "retrying_bind"
	HostingFailed       HostingStatus = "failed"
)

// SideEffectKind tags the result of handling a command.
type SideEffectKind string

const (
	SideEffectNone                    SideEffectKind = "none"
	SideEffectStartRecordingRequested SideEffectKind = "start_recording_requested"
	SideEffectStopRecordingRequested  SideEffectKind = "stop_recording_requested"
	SideEffectStatusChanged           SideEffectKind = "status_changed"
)

// SideEffect is returned by the session controller for every command.
type SideEffect struct {
	Kind        SideEffectKind `json:"kind"`
	ClipIndex   int            `json:"clipIndex"`
	RecordingID string         `json:"recordingId,omitempty"`
}

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeBind      ErrorCode = "bind"
	ErrorCodeCommand   ErrorCode = "command"
	ErrorCodeCapture   ErrorCode = "capture"
	ErrorCodeTranscode ErrorCode = "transcode"
	ErrorCodeClipWrite ErrorCode = "clip_write"
)

// Status is the full session snapshot broadcast on every change.
type Status struct {
	MissionPath   string        `json:"missionPath"`
	OutputPath    string        `json:"outputPath"`
	Recording     bool          `json:"recording"`
	Counter       int           `json:"counter"`
	IsHosting     bool          `json:"isHosting"`
	HostingStatus HostingStatus `json:"hostingStatus"`
	IsConnected   bool          `json:"isConnected"`
	LastCommand   string        `json:"lastCommand,omitempty"`
	Version       string        `json:"version,omitempty"`
}

// Recording identifies one record_start. The ID is unique for the process
// lifetime; the clip index may repeat after reset_count.
type Recording struct {
	ID        string `json:"id"`
	ClipIndex int    `json:"clipIndex"`
}

// ClipTarget fixes where a clip is saved. It is captured when recording starts.
type ClipTarget struct {
	OutputRoot  string `json:"outputRoot"`
	MissionPath string `json:"missionPath"`
	ClipIndex   int    `json:"clipIndex"`
}

// AudioFormat describes the compressed output of a transcode.
type AudioFormat struct {
	Name      string `json:"name"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
	Extension string `json:"extension"`
	Bitrate   string `json:"bitrate,omitempty"`
}

// TranscodeJob is one captured recording on its way to disk.
type TranscodeJob struct {
	ID     string
	Input  []byte
	Target ClipTarget
	Format AudioFormat
}

// ClipResult reports a clip that was written successfully.
type ClipResult struct {
	JobID     string `json:"jobId"`
	ClipIndex int    `json:"clipIndex"`
	Path      string `json:"path"`
	Bytes     int    `json:"bytes"`
}
