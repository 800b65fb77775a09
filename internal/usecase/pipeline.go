package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
)

// Pipeline runs transcode jobs concurrently, off the command path. A job
// always runs to completion or failure; there is no mid-flight abort. A
// non-zero timeout only fails jobs whose encoder hangs.
type Pipeline struct {
	finalizer clipFinalizer
	events    ports.EventSink
	logger    *zap.Logger
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewPipeline(transcoder ports.Transcoder, store ports.ClipStore, events ports.EventSink, logger *zap.Logger, timeout time.Duration) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		finalizer: newClipFinalizer(transcoder, store),
		events:    events,
		logger:    logger,
		timeout:   timeout,
	}
}

// Dispatch starts the job on its own goroutine.
func (p *Pipeline) Dispatch(job domain.TranscodeJob) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_, _ = p.Run(job)
	}()
}

// Run processes one job synchronously and reports the outcome to the UI.
func (p *Pipeline) Run(job domain.TranscodeJob) (domain.ClipResult, error) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	result, code, err := p.finalizer.Finalize(ctx, job)
	if err != nil {
		p.logger.Error("clip not saved",
			zap.String("job_id", job.ID),
			zap.Int("clip_index", job.Target.ClipIndex),
			zap.String("stage", string(code)),
			zap.Error(err),
		)
		p.events.SessionError(code, fmt.Sprintf("pacenote %d was not saved: %v", job.Target.ClipIndex, err))
		return domain.ClipResult{}, err
	}

	p.logger.Info("clip saved",
		zap.String("job_id", job.ID),
		zap.Int("clip_index", result.ClipIndex),
		zap.String("path", result.Path),
		zap.Duration("took", time.Since(started)),
	)
	p.events.ClipSaved(result)
	return result, nil
}

// Wait blocks until every dispatched job has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
