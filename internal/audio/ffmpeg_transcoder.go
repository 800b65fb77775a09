package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"pacenotes/internal/domain"
)

// ErrTranscodeFailed wraps every transcode failure. No output accompanies it.
var ErrTranscodeFailed = errors.New("transcode failed")

// FFMPEGTranscoder converts captured audio by piping it through ffmpeg.
type FFMPEGTranscoder struct {
	command string
	logger  *zap.Logger
}

func NewFFMPEGTranscoder(command string, logger *zap.Logger) *FFMPEGTranscoder {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGTranscoder{command: command, logger: logger}
}

// Transcode streams input into ffmpeg's stdin and returns the collected
// stdout once the process exits cleanly. Bytes gathered before a failure are
// discarded.
func (t *FFMPEGTranscoder) Transcode(ctx context.Context, input []byte, format domain.AudioFormat) ([]byte, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrTranscodeFailed)
	}
	if format.Codec == "" || format.Container == "" {
		return nil, fmt.Errorf("%w: %w", ErrTranscodeFailed, ErrUnsupportedFormat)
	}

	cmd := exec.CommandContext(ctx, t.command, transcodeArgs(format)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create ffmpeg stdin pipe: %w", ErrTranscodeFailed, err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %w", ErrTranscodeFailed, err)
	}

	writeErr := make(chan error, 1)
	go func() {
		_, err := stdin.Write(input)
		if closeErr := stdin.Close(); err == nil {
			err = closeErr
		}
		writeErr <- err
	}()

	waitErr := cmd.Wait()
	inputErr := <-writeErr

	if waitErr != nil {
		return nil, fmt.Errorf("%w: ffmpeg exited: %w: %s", ErrTranscodeFailed, waitErr, stringsTrimSpaceSafe(stderr.String()))
	}
	if inputErr != nil {
		return nil, fmt.Errorf("%w: failed to stream input: %w", ErrTranscodeFailed, inputErr)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output", ErrTranscodeFailed)
	}

	t.logger.Debug("transcode finished",
		zap.String("format", format.Name),
		zap.Int("input_bytes", len(input)),
		zap.Int("output_bytes", stdout.Len()),
		zap.Duration("took", time.Since(started)),
	)
	return stdout.Bytes(), nil
}

func transcodeArgs(format domain.AudioFormat) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-c:a", format.Codec,
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	return append(args, "-f", format.Container, "pipe:1")
}
