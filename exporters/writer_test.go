package exporters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriter(&buf)

	require.NoError(t, e.Export(context.Background(), testSpans(3)))

	scanner := bufio.NewScanner(&buf)
	var names []string
	for scanner.Scan() {
		var record SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		names = append(names, record.Name)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", record.TraceID)
	}
	assert.Equal(t, []string{"op-0", "op-1", "op-2"}, names)
}

func TestWriterStopsOnCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Export(ctx, testSpans(2)), context.Canceled)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterReportsWriteErrors(t *testing.T) {
	e := NewWriter(failingWriter{})
	assert.ErrorContains(t, e.Export(context.Background(), testSpans(1)), "disk full")
}

func TestWriterShutdown(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriter(&buf)

	require.NoError(t, e.ForceFlush(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
	assert.ErrorIs(t, e.Export(context.Background(), testSpans(1)), ErrExporterShutdown)
}
