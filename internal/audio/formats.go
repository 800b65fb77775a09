package audio

import (
	"errors"
	"fmt"
	"strings"

	"pacenotes/internal/domain"
)

// ErrUnsupportedFormat is returned for output formats ffmpeg is not configured for.
var ErrUnsupportedFormat = errors.New("unsupported output format")

type formatSpec struct {
	codec          string
	container      string
	extension      string
	defaultBitrate string
}

var formats = map[string]formatSpec{
	"opus":   {codec: "libopus", container: "ogg", extension: "ogg", defaultBitrate: "32k"},
	"vorbis": {codec: "libvorbis", container: "ogg", extension: "ogg", defaultBitrate: "64k"},
	"mp3":    {codec: "libmp3lame", container: "mp3", extension: "mp3", defaultBitrate: "64k"},
	"aac":    {codec: "aac", container: "adts", extension: "aac", defaultBitrate: "64k"},
	"webm":   {codec: "libopus", container: "webm", extension: "webm", defaultBitrate: "32k"},
	"flac":   {codec: "flac", container: "flac", extension: "flac"},
	"wav":    {codec: "pcm_s16le", container: "wav", extension: "wav"},
}

// FormatFor resolves a format name to ffmpeg codec and container settings.
// An empty bitrate selects the format default; lossless formats ignore it.
func FormatFor(name string, bitrate string) (domain.AudioFormat, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "libopus", "ogg":
		key = "opus"
	case "libvorbis", "vorb":
		key = "vorbis"
	case "libmp3lame":
		key = "mp3"
	case "pcm":
		key = "wav"
	}

	entry, ok := formats[key]
	if !ok {
		return domain.AudioFormat{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}

	format := domain.AudioFormat{
		Name:      key,
		Codec:     entry.codec,
		Container: entry.container,
		Extension: entry.extension,
	}
	if entry.defaultBitrate != "" {
		format.Bitrate = entry.defaultBitrate
		if trimmed := strings.TrimSpace(bitrate); trimmed != "" {
			format.Bitrate = trimmed
		}
	}
	return format, nil
}
