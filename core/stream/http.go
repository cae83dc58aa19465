package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HTTPSource streams a lesson from an HTTP endpoint answering with
// newline-delimited records.
type HTTPSource struct {
	URL    string
	Method string
	// Body is sent with every request, typically the lesson request JSON.
	Body   []byte
	Header http.Header
	Client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, Method: http.MethodGet}
}

func (s *HTTPSource) Chunks(ctx context.Context) func(func(string, error) bool) {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "stream lesson over http")
		defer span.End()
		span.SetAttributes(attribute.String("request.url", s.URL))

		method := s.Method
		if method == "" {
			method = http.MethodGet
		}

		var body io.Reader
		if len(s.Body) > 0 {
			body = bytes.NewReader(s.Body)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.URL, body)
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		for key, values := range s.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		if len(s.Body) > 0 && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/x-ndjson")

		client := s.Client
		if client == nil {
			client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			)}
		}

		span.AddEvent("request started")
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}

		chunkCount := 0
		readChunks(ctx, resp.Body, func(chunk string, err error) bool {
			if err != nil {
				err = fmt.Errorf("error reading response body: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return yield("", err)
			}
			if chunkCount == 0 {
				span.AddEvent("received first chunk")
			}
			chunkCount++
			return yield(chunk, nil)
		})
		span.SetAttributes(attribute.Int("response.chunks", chunkCount))
	}
}
