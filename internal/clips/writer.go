// Package clips stores transcoded voice notes under their mission directory.
package clips

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pacenotes/internal/domain"
)

const (
	DefaultDirName    = "pacenotes"
	DefaultFilePrefix = "pacenote"
)

// ErrAmbiguousTarget is returned when the output root or mission is unset.
var ErrAmbiguousTarget = errors.New("clip target is missing output root or mission path")

// Writer writes finished clips to disk.
type Writer struct {
	dirName    string
	filePrefix string
	logger     *zap.Logger
}

func NewWriter(dirName string, filePrefix string, logger *zap.Logger) *Writer {
	if dirName == "" {
		dirName = DefaultDirName
	}
	if filePrefix == "" {
		filePrefix = DefaultFilePrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dirName: dirName, filePrefix: filePrefix, logger: logger}
}

// TargetPath derives root/mission/<dir>/<prefix>_<index>.<ext>.
func (w *Writer) TargetPath(target domain.ClipTarget, ext string) (string, error) {
	if strings.TrimSpace(target.OutputRoot) == "" || strings.TrimSpace(target.MissionPath) == "" {
		return "", ErrAmbiguousTarget
	}
	name := w.filePrefix + "_" + strconv.Itoa(target.ClipIndex)
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	return filepath.Join(target.OutputRoot, target.MissionPath, w.dirName, name), nil
}

// Write stores data at the target path. The file only appears once its
// contents are complete; a failed write leaves nothing behind.
func (w *Writer) Write(ctx context.Context, data []byte, target domain.ClipTarget, ext string) (string, error) {
	path, err := w.TargetPath(target, ext)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create clip directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp clip file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write clip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync clip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close clip: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move clip into place: %w", err)
	}

	w.logger.Info("clip written",
		zap.String("path", path),
		zap.Int("clip_index", target.ClipIndex),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}
