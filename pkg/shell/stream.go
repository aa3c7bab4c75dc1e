package shell

import (
	"bytes"
	"context"

	"github.com/entrhq/hearth/pkg/types"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

// EmitterKey is the context key for the event emitter
const EmitterKey ContextKey = "event_emitter"

// WithEmitter returns a context carrying emit. Commands executed with it
// stream their progress as host events.
func WithEmitter(ctx context.Context, emit types.Emitter) context.Context {
	return context.WithValue(ctx, EmitterKey, emit)
}

// EmitterFromContext retrieves the event emitter from context if available
func EmitterFromContext(ctx context.Context) types.Emitter {
	if emit, ok := ctx.Value(EmitterKey).(types.Emitter); ok {
		return emit
	}
	return nil
}

// streamWriter collects one output stream and, when an emitter is set,
// emits every complete line as it arrives. exec copies each stream on its
// own goroutine so a streamWriter is never written concurrently.
type streamWriter struct {
	buf     bytes.Buffer
	pending []byte
	stream  string
	execID  string
	emit    types.Emitter
}

func newStreamWriter(stream, execID string, emit types.Emitter) *streamWriter {
	return &streamWriter{stream: stream, execID: execID, emit: emit}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.emit == nil {
		return len(p), nil
	}

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(types.NewCommandOutputEvent(w.execID, Decode(w.pending[:i+1]), w.stream))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline.
func (w *streamWriter) flush() {
	if w.emit != nil && len(w.pending) > 0 {
		w.emit(types.NewCommandOutputEvent(w.execID, Decode(w.pending)+"\n", w.stream))
	}
	w.pending = nil
}

func (w *streamWriter) Bytes() []byte {
	return w.buf.Bytes()
}
