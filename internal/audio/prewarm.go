package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
)

const prewarmSampleRate = 16000

// Prewarm runs one throwaway transcode so the engine's first-use cost is paid
// before a user-triggered recording. The sample comes from samplePath when it
// exists, otherwise a short silent WAV is synthesized. Everything is done in a
// temp directory that is removed before returning.
func Prewarm(ctx context.Context, transcoder ports.Transcoder, samplePath string, format domain.AudioFormat, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir, err := os.MkdirTemp("", "pacenotes-prewarm-*")
	if err != nil {
		return fmt.Errorf("failed to create prewarm dir: %w", err)
	}
	defer os.RemoveAll(dir)

	sample, source, err := loadPrewarmSample(samplePath)
	if err != nil {
		return err
	}

	started := time.Now()
	out, err := transcoder.Transcode(ctx, sample, format)
	if err != nil {
		return fmt.Errorf("prewarm transcode: %w", err)
	}

	outPath := filepath.Join(dir, "prewarm."+format.Extension)
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return fmt.Errorf("failed to write prewarm output: %w", err)
	}

	logger.Info("transcode engine prewarmed",
		zap.String("sample", source),
		zap.String("format", format.Name),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// PrewarmAsync runs Prewarm on its own goroutine and logs a failure. The
// returned channel is closed when it finishes.
func PrewarmAsync(ctx context.Context, transcoder ports.Transcoder, samplePath string, format domain.AudioFormat, logger *zap.Logger) <-chan struct{} {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Prewarm(ctx, transcoder, samplePath, format, logger); err != nil {
			logger.Warn("transcode prewarm failed", zap.Error(err))
		}
	}()
	return done
}

func loadPrewarmSample(samplePath string) ([]byte, string, error) {
	if path := strings.TrimSpace(samplePath); path != "" {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return data, path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to read prewarm sample %q: %w", path, err)
		}
	}

	data, err := SilentWAV(prewarmSampleRate, 250)
	if err != nil {
		return nil, "", err
	}
	return data, "synthesized", nil
}
