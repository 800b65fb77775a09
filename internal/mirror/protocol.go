package mirror

import "pacenotes/internal/domain"

type MessageType string

const (
	MsgStatus         MessageType = "status"
	MsgCommand        MessageType = "command"
	MsgStartRecording MessageType = "start_recording"
	MsgStopRecording  MessageType = "stop_recording"
	MsgClipSaved      MessageType = "clip_saved"
	MsgError          MessageType = "error"
)

// Message is the envelope for every frame sent to mirror clients.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type CommandPayload struct {
	Line string `json:"line"`
}

type RecordingPayload struct {
	RecordingID string `json:"recordingId"`
	ClipIndex   int    `json:"clipIndex"`
}

type ErrorPayload struct {
	Code   domain.ErrorCode `json:"code"`
	Detail string           `json:"detail"`
}
