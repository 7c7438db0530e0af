package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chat-lens-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "StreamFetcher"

// NetworkError reports a stage request that never produced a usable stream.
type NetworkError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("stream %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Fetcher POSTs JSON to a streaming endpoint and decodes the event stream.
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  logger.ILogger
	tracer  trace.Tracer
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client. Streams are long-lived, so the
// client should not carry a global Timeout; use context deadlines instead.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func NewFetcher(baseURL string, log logger.ILogger, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  log,
		tracer:  otel.Tracer("chat-lens-be/pkg/stream"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch is the fail-soft form of Stream: errors are logged and the text
// accumulated so far is returned ("" when the request itself failed).
// A stream that breaks after some chunks still yields those chunks rather
// than "", so the result always matches the last onChunk argument.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, body any, onChunk func(string), onSources func([]string)) string {
	text, err := f.Stream(ctx, endpoint, body, onChunk, onSources)
	if err != nil {
		details := map[string]interface{}{
			"endpoint":      endpoint,
			"error":         err,
			"partial_bytes": len(text),
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			f.logger.Warn(logModule, "Stream interrupted", details)
		} else {
			f.logger.Error(logModule, "Error streaming from endpoint", details)
		}
	}
	return text
}

// Stream issues the request and invokes onChunk with the full accumulated
// text after every chunk event, and onSources (when non-nil) with every
// sources event. It returns the accumulated text once the server closes the
// stream. On a mid-stream failure the partial text is returned with the error.
func (f *Fetcher) Stream(ctx context.Context, endpoint string, body any, onChunk func(string), onSources func([]string)) (string, error) {
	ctx, span := f.tracer.Start(ctx, "stream.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("stream.endpoint", endpoint)),
	)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return "", recordError(span, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", recordError(span, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", recordError(span, &NetworkError{Endpoint: endpoint, Err: err})
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", recordError(span, &NetworkError{Endpoint: endpoint, StatusCode: resp.StatusCode})
	}

	var accumulated strings.Builder
	chunks := 0
	decoder := NewDecoder(resp.Body)
	for {
		event, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.SetAttributes(attribute.Int("stream.chunks", chunks))
			return accumulated.String(), recordError(span, fmt.Errorf("read stream %s: %w", endpoint, err))
		}

		switch event.Type {
		case EventChunk:
			fragment, ok := event.Text()
			if !ok {
				continue
			}
			accumulated.WriteString(fragment)
			chunks++
			if onChunk != nil {
				onChunk(accumulated.String())
			}
		case EventSources:
			if onSources == nil {
				continue
			}
			if sources, ok := event.Sources(); ok {
				onSources(sources)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("stream.chunks", chunks),
		attribute.Int("stream.bytes", accumulated.Len()),
	)
	return accumulated.String(), nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
