package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pacenotes/internal/audio"
	"pacenotes/internal/clips"
	"pacenotes/internal/config"
	"pacenotes/internal/control"
	"pacenotes/internal/domain"
	"pacenotes/internal/events"
	"pacenotes/internal/mirror"
	"pacenotes/internal/ports"
	"pacenotes/internal/usecase"
	"pacenotes/internal/version"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Format     domain.AudioFormat
	Controller *usecase.SessionController
	Pipeline   *usecase.Pipeline
	Server     *control.Server
	Transcoder *audio.FFMPEGTranscoder
	Mirror     *mirror.Broadcaster

	events       ports.EventSink
	mirrorServer *mirror.Server
	logger       *zap.Logger
}

// Build wires all backend dependencies. Every sink receives every session
// notification; the status mirror is added when it is enabled.
func Build(cfg config.Config, logger *zap.Logger, sinks ...ports.EventSink) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	format, err := audio.FormatFor(cfg.Transcode.Format, cfg.Transcode.Bitrate)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}

	s := &Services{
		Config: cfg,
		Format: format,
		logger: logger,
	}

	if cfg.Mirror.Enabled() {
		s.Mirror = mirror.NewBroadcaster(cfg.Mirror.MaxClients, logger.Named("mirror"))
		s.mirrorServer = mirror.NewServer(cfg.Mirror.Address(), s.Mirror, logger.Named("mirror"))
		sinks = append(sinks, s.Mirror)
	}
	s.events = events.New(sinks...)

	s.Transcoder = audio.NewFFMPEGTranscoder(cfg.Transcode.FFmpegCommand, logger.Named("transcode"))
	writer := clips.NewWriter(cfg.Clips.DirName, cfg.Clips.FilePrefix, logger.Named("clips"))
	s.Pipeline = usecase.NewPipeline(s.Transcoder, writer, s.events, logger.Named("pipeline"), cfg.Transcode.Timeout)

	s.Controller = usecase.NewSessionController(s.events, s.Pipeline, logger.Named("session"), usecase.Config{
		Format:  format,
		Version: version.Version,
	})

	s.Server = control.NewServer(control.Config{
		Address:       cfg.Control.Address(),
		RetryInterval: cfg.Control.RetryInterval,
		RetryMax:      cfg.Control.RetryMax,
	}, s.Controller, logger.Named("control"))

	return s, nil
}

// Run starts the control channel, the optional mirror and any extra
// workers, and blocks until ctx is cancelled or one of them fails. In-flight
// transcode jobs are drained before it returns.
func (s *Services) Run(ctx context.Context, workers ...func(context.Context) error) error {
	if s.Config.Transcode.Prewarm {
		audio.PrewarmAsync(ctx, s.Transcoder, s.Config.Transcode.PrewarmSample, s.Format, s.logger.Named("prewarm"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Server.Run(gctx); err != nil {
			s.events.SessionError(domain.ErrorCodeBind, err.Error())
			return err
		}
		return nil
	})

	if s.mirrorServer != nil {
		g.Go(func() error {
			if err := s.mirrorServer.Run(gctx); err != nil {
				s.logger.Warn("status mirror stopped", zap.Error(err))
			}
			return nil
		})
	}

	for _, worker := range workers {
		worker := worker
		g.Go(func() error { return worker(gctx) })
	}

	err := g.Wait()
	s.Pipeline.Wait()
	return err
}
