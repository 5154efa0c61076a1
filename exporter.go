package spanz

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/clockz"
)

// ErrExportTimeout is reported when an export does not finish within its timeout.
var ErrExportTimeout = errors.New("spanz: export timed out")

// SpanExporter transmits finished spans to a backend.
//
// Export must honor cancellation of ctx promptly. The pipeline never retries a
// failed batch, so any retry logic belongs inside the exporter. Shutdown is
// called exactly once per processor lifetime; no Export follows it.
type SpanExporter interface {
	Export(ctx context.Context, spans []FinishedSpan) error
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// exportWithTimeout races exporter.Export against timeout on clock.
// When the timer wins the export context is cancelled and ErrExportTimeout is
// returned without waiting for the exporter to unwind. An exporter that
// ignores cancellation keeps its goroutine until it returns.
func exportWithTimeout(ctx context.Context, clock clockz.Clock, timeout time.Duration, exporter SpanExporter, batch []FinishedSpan) error {
	exportCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- exporter.Export(exportCtx, batch)
	}()

	select {
	case err := <-done:
		return err
	case <-clock.After(timeout):
		return ErrExportTimeout
	}
}
