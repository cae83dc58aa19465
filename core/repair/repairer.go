package repair

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Request describes a fragment that failed and why.
type Request struct {
	Fragment string `json:"fragment"`
	Language string `json:"language,omitempty"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// Repairer asks upstream for a corrected fragment.
type Repairer interface {
	Repair(ctx context.Context, req Request) (string, error)
}

// RepairerFunc adapts a function to Repairer.
type RepairerFunc func(ctx context.Context, req Request) (string, error)

func (f RepairerFunc) Repair(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var ErrEmptyRepair = errors.New("repair returned no code")

// HTTPRepairer posts a Request as JSON and expects {"code": "..."} back.
type HTTPRepairer struct {
	URL    string
	Header http.Header
	Client *http.Client
}

func NewHTTPRepairer(url string) *HTTPRepairer {
	return &HTTPRepairer{URL: url}
}

type repairResponse struct {
	Code string `json:"code"`
}

func (r *HTTPRepairer) Repair(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "request fragment repair")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.url", r.URL),
		attribute.String("repair.stage", req.Stage),
	)

	body, err := json.Marshal(req)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	for key, values := range r.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var decoded repairResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		err = fmt.Errorf("error unmarshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if decoded.Code == "" {
		span.RecordError(ErrEmptyRepair)
		span.SetStatus(codes.Error, ErrEmptyRepair.Error())
		return "", ErrEmptyRepair
	}

	return decoded.Code, nil
}
