package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"pacenotes/internal/bootstrap"
	"pacenotes/internal/config"
	"pacenotes/internal/domain"
	"pacenotes/internal/usecase"
	"pacenotes/internal/version"
)

const (
	eventStatus         = "pacenotes:status"
	eventCommand        = "pacenotes:command"
	eventStartRecording = "pacenotes:start-recording"
	eventStopRecording  = "pacenotes:stop-recording"
	eventClipSaved      = "pacenotes:clip-saved"
	eventError          = "pacenotes:error"
)

// App is the Wails application root. The webview records the microphone
// when asked and hands the buffer back through SubmitRecording.
type App struct {
	ctx    context.Context
	cfg    config.Config
	logger *zap.Logger

	services *bootstrap.Services
	bootErr  error

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewApp(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a.cfg, a.logger, a)
	if err != nil {
		a.bootErr = err
		a.logger.Error("startup failed", zap.Error(err))
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := services.Run(runCtx); err != nil {
			a.logger.Error("control channel stopped", zap.Error(err))
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	a.once.Do(func() {
		if a.cancel == nil {
			return
		}
		a.cancel()
		<-a.done
	})
}

// GetStatus returns the current session snapshot.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		status := domain.Status{Counter: -1, HostingStatus: domain.HostingStarting, Version: version.Version}
		if a.bootErr != nil {
			status.HostingStatus = domain.HostingFailed
		}
		return status
	}
	return a.services.Controller.Status()
}

// SubmitRecording receives the captured audio for a stopped recording. The
// webview passes back the recording ID it got with the start intent; an empty
// buffer reports that nothing could be captured.
func (a *App) SubmitRecording(recordingID string, audio []byte) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.SubmitRecording(recordingID, audio); err != nil {
		if !errors.Is(err, usecase.ErrUnknownRecording) {
			a.SessionError(domain.ErrorCodeCapture, fmt.Sprintf("recording %s: %v", recordingID, err))
		}
		return err
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"version":        version.Version,
		"controlAddress": a.cfg.Control.Address(),
		"clipsDir":       a.cfg.Clips.DirName,
		"clipPrefix":     a.cfg.Clips.FilePrefix,
		"logDir":         a.cfg.Log.Dir,
		"configFile":     a.cfg.File,
	}
	if a.services != nil {
		info["format"] = a.services.Format.Name
		info["extension"] = a.services.Format.Extension
	}
	if a.cfg.Mirror.Enabled() {
		info["mirror"] = "ws://" + a.cfg.Mirror.Address() + "/ws"
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StatusChanged emits the full session snapshot.
func (a *App) StatusChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStatus, status)
}

// CommandReceived echoes a raw control line.
func (a *App) CommandReceived(line string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCommand, map[string]string{"line": line})
}

// RecordingStartRequested asks the webview to start capturing.
func (a *App) RecordingStartRequested(recording domain.Recording) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStartRecording, recording)
}

// RecordingStopRequested asks the webview to stop and submit its buffer.
func (a *App) RecordingStopRequested(recording domain.Recording) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStopRecording, recording)
}

// ClipSaved is the confirmation cue.
func (a *App) ClipSaved(result domain.ClipResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventClipSaved, result)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeBind:
		return "Control channel unavailable"
	case domain.ErrorCodeCommand:
		return "Command rejected"
	case domain.ErrorCodeCapture:
		return "Recording not captured"
	case domain.ErrorCodeTranscode:
		return "Pacenote could not be encoded"
	case domain.ErrorCodeClipWrite:
		return "Pacenote could not be saved"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
