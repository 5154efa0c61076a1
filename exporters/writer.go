package exporters

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/zoobzio/spanz"
)

// Writer exports spans as JSON lines, one SpanRecord per line.
type Writer struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
}

// NewWriter creates an exporter writing to w. Writes are serialized.
// The caller owns w; Shutdown does not close it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Export encodes and writes every span. It stops at the first write error
// or when ctx is cancelled.
func (e *Writer) Export(ctx context.Context, spans []spanz.FinishedSpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExporterShutdown
	}

	for i := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := sonic.Marshal(NewSpanRecord(spans[i]))
		if err != nil {
			return fmt.Errorf("failed to encode span: %w", err)
		}
		line = append(line, '\n')
		if _, err := e.w.Write(line); err != nil {
			return fmt.Errorf("failed to write span: %w", err)
		}
	}
	return nil
}

// ForceFlush does nothing; every Export writes through.
func (*Writer) ForceFlush(context.Context) error {
	return nil
}

// Shutdown rejects later exports.
func (e *Writer) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
