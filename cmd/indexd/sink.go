package main

import (
	"context"
	"log/slog"

	"github.com/mediavault/indexd/internal/indexer"
)

// slogSink forwards the Indexing Worker's outbound messages to a
// *slog.Logger, the composition root's implementation of
// internal/indexer.Sink named in messages.go's doc comment.
type slogSink struct {
	log *slog.Logger
}

func newSlogSink(log *slog.Logger) *slogSink {
	return &slogSink{log: log}
}

func (s *slogSink) Send(ctx context.Context, msg indexer.Message) {
	switch msg.Kind {
	case indexer.KindLog:
		switch msg.Level {
		case indexer.LogDebug:
			s.log.Debug(msg.Text)
		case indexer.LogWarn:
			s.log.Warn(msg.Text)
		default:
			s.log.Info(msg.Text)
		}
	case indexer.KindError:
		s.log.Error(msg.Text, "error", msg.Err)
	case indexer.KindResult:
		s.log.Info("indexer result", "type", msg.Type, "payload", msg.Payload)
	}
}

// logVideoPipeline is the composition root's stand-in for the video
// transcoder, which spec.md §1 places out of scope ("only their contracts
// with the scheduler and catalog are specified"): it satisfies
// sideeffects.VideoPipeline by logging the handoff rather than actually
// transcoding, so the contract is still exercised end to end.
type logVideoPipeline struct {
	log *slog.Logger
}

func newLogVideoPipeline(log *slog.Logger) *logVideoPipeline {
	return &logVideoPipeline{log: log}
}

func (p *logVideoPipeline) EnqueueVideo(ctx context.Context, rootRelativePath, thumbOutputDir string) error {
	p.log.Info("video handoff", "path", rootRelativePath, "thumb_output_dir", thumbOutputDir)
	return nil
}
