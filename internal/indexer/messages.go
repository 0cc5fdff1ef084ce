package indexer

import "context"

// Kind is the worker-to-main message discriminator. Grounded on the
// teacher's ProgressReporter callback shape (internal/indexer/progress.go),
// retasked here as a typed, kind-tagged envelope rather than a bare
// callback interface, matching spec.md §6's "each message has kind and a
// payload with a type discriminator".
type Kind string

const (
	KindResult Kind = "result"
	KindLog    Kind = "log"
	KindError  Kind = "error"
)

// LogLevel mirrors the levels a KindLog message forwards to the logging
// sink.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
)

// PayloadType discriminates the Payload carried by a KindResult message,
// matching the outbound types named in spec.md §6.
type PayloadType string

const (
	PayloadRebuildComplete            PayloadType = "rebuild_complete"
	PayloadProcessChangesComplete     PayloadType = "process_changes_complete"
	PayloadBackfillDimensionsComplete PayloadType = "backfill_dimensions_complete"
	PayloadBackfillMtimeComplete      PayloadType = "backfill_mtime_complete"
	PayloadPostIndexBackfillComplete  PayloadType = "post_index_backfill_complete"
)

// Message is one outbound envelope from the Indexing Worker.
type Message struct {
	Kind    Kind
	Level   LogLevel // set only when Kind == KindLog
	Text    string   // log text, or error text when Kind == KindError
	Type    PayloadType
	Payload any
	Err     error // set only when Kind == KindError
}

// Sink receives the worker's outbound messages. cmd/indexd's newSlogSink
// wires a *slog.Logger-backed Sink at the composition root; tests use a
// recording fake.
type Sink interface {
	Send(ctx context.Context, msg Message)
}

func resultMsg(typ PayloadType, payload any) Message {
	return Message{Kind: KindResult, Type: typ, Payload: payload}
}

func logMsg(level LogLevel, text string) Message {
	return Message{Kind: KindLog, Level: level, Text: text}
}

func errorMsg(text string, err error) Message {
	return Message{Kind: KindError, Text: text, Err: err}
}
