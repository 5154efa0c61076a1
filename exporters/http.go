package exporters

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/zoobzio/spanz"
)

// ErrUnexpectedStatus is returned when the collector answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("exporters: unexpected response status")

// HTTPOption configures an HTTP exporter.
type HTTPOption func(*resty.Client)

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(c *resty.Client) { c.SetHeader(key, value) }
}

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) HTTPOption {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// WithRequestTimeout bounds each HTTP request. The processor's export timeout
// still applies on top.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetry retries failed requests up to count times, waiting between
// wait and maxWait. Retries happen inside a single Export call.
func WithRetry(count int, wait, maxWait time.Duration) HTTPOption {
	return func(c *resty.Client) {
		c.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// HTTPPayload is the request body posted by the HTTP exporter.
type HTTPPayload struct {
	Spans []SpanRecord `json:"spans"`
}

// HTTP posts each batch as JSON to a collector endpoint.
type HTTP struct {
	client   *resty.Client
	endpoint string
	closed   atomic.Bool
}

// NewHTTP creates an exporter posting to endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTP {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "spanz/"+spanz.Version).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	for _, opt := range opts {
		opt(client)
	}
	return &HTTP{client: client, endpoint: endpoint}
}

// Export posts spans in one request. Cancelling ctx aborts the request.
func (e *HTTP) Export(ctx context.Context, spans []spanz.FinishedSpan) error {
	if e.closed.Load() {
		return ErrExporterShutdown
	}
	if len(spans) == 0 {
		return nil
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(HTTPPayload{Spans: NewSpanRecords(spans)}).
		Post(e.endpoint)
	if err != nil {
		return fmt.Errorf("failed to post spans: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}
	return nil
}

// ForceFlush does nothing; requests are not buffered.
func (*HTTP) ForceFlush(context.Context) error {
	return nil
}

// Shutdown rejects later exports and releases idle connections.
func (e *HTTP) Shutdown(context.Context) error {
	if e.closed.CompareAndSwap(false, true) {
		e.client.GetClient().CloseIdleConnections()
	}
	return nil
}
