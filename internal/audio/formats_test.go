package audio

import (
	"errors"
	"testing"

	"pacenotes/internal/domain"
)

func TestFormatFor(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		codec, container, ext string
	}{
		"":       {"libopus", "ogg", "ogg"},
		"opus":   {"libopus", "ogg", "ogg"},
		"OGG":    {"libopus", "ogg", "ogg"},
		"mp3":    {"libmp3lame", "mp3", "mp3"},
		"aac":    {"aac", "adts", "aac"},
		"vorbis": {"libvorbis", "ogg", "ogg"},
		"flac":   {"flac", "flac", "flac"},
		"pcm":    {"pcm_s16le", "wav", "wav"},
		"webm":   {"libopus", "webm", "webm"},
	}
	for name, want := range cases {
		name := name
		want := want
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := FormatFor(name, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Codec != want.codec || got.Container != want.container || got.Extension != want.ext {
				t.Fatalf("unexpected format: %+v", got)
			}
		})
	}
}

func TestFormatForBitrateOverride(t *testing.T) {
	t.Parallel()

	got, err := FormatFor("opus", "48k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Bitrate != "48k" {
		t.Fatalf("expected bitrate override, got %q", got.Bitrate)
	}

	lossless, err := FormatFor("flac", "48k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lossless.Bitrate != "" {
		t.Fatalf("expected no bitrate for flac, got %q", lossless.Bitrate)
	}
}

func TestFormatForUnsupported(t *testing.T) {
	t.Parallel()

	if _, err := FormatFor("realaudio", ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func mustFormat(t *testing.T, name string) domain.AudioFormat {
	t.Helper()
	format, err := FormatFor(name, "")
	if err != nil {
		t.Fatalf("format %q: %v", name, err)
	}
	return format
}
