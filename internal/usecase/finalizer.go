package usecase

import (
	"context"

	"pacenotes/internal/domain"
	"pacenotes/internal/ports"
)

type clipFinalizer struct {
	transcoder ports.Transcoder
	store      ports.ClipStore
}

func newClipFinalizer(transcoder ports.Transcoder, store ports.ClipStore) clipFinalizer {
	return clipFinalizer{transcoder: transcoder, store: store}
}

// Finalize transcodes a job and writes the result. Nothing is written unless
// the transcode completed.
func (f clipFinalizer) Finalize(ctx context.Context, job domain.TranscodeJob) (domain.ClipResult, domain.ErrorCode, error) {
	out, err := f.transcoder.Transcode(ctx, job.Input, job.Format)
	if err != nil {
		return domain.ClipResult{}, domain.ErrorCodeTranscode, err
	}

	path, err := f.store.Write(ctx, out, job.Target, job.Format.Extension)
	if err != nil {
		return domain.ClipResult{}, domain.ErrorCodeClipWrite, err
	}

	return domain.ClipResult{
		JobID:     job.ID,
		ClipIndex: job.Target.ClipIndex,
		Path:      path,
		Bytes:     len(out),
	}, "", nil
}
