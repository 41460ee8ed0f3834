package sinks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/BoxResin/HttpRequester/pkg/httpclient"
)

const (
	headerPrefix    = "X-Requester-"
	maxErrorSnippet = 512
)

// httpSink posts each event as JSON to a webhook. Event attributes travel
// as X-Requester-* headers so receivers can route without decoding the body.
type httpSink struct {
	id      string
	target  string
	method  string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPSink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("sink %q missing http configuration", cfg.ID)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &httpSink{
		id:      cfg.ID,
		target:  cfg.HTTP.URL,
		method:  cfg.HTTP.Method,
		headers: cfg.HTTP.Headers,
		client:  httpclient.NewRestyHTTPClient(timeout),
		log:     ensureLogger(log),
	}, nil
}

func (s *httpSink) ID() string   { return s.id }
func (s *httpSink) Type() string { return TypeHTTP }
func (s *httpSink) Close() error { return nil }

func (s *httpSink) Publish(ctx context.Context, evt Event) error {
	req := s.client.R().
		SetContext(ctx).
		SetHeaders(s.headers).
		SetHeader("Content-Type", "application/json").
		SetBody(evt)
	for k, v := range evt.attributes() {
		req.SetHeader(headerPrefix+headerName(k), v)
	}

	resp, err := req.Execute(s.method, s.target)
	if err != nil {
		return fmt.Errorf("sink %q: %s %s: %w", s.id, s.method, s.target, err)
	}
	if resp.IsError() {
		return fmt.Errorf("sink %q: webhook answered %d: %s", s.id, resp.StatusCode(), snippet(resp.Body()))
	}

	s.log.DebugObj("event posted", "http_sink", map[string]any{
		"sink_id": s.id,
		"task_id": evt.TaskID,
		"status":  resp.StatusCode(),
	})
	return nil
}

// headerName turns preset_id into Preset-Id.
func headerName(attr string) string {
	parts := strings.Split(attr, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func snippet(body []byte) string {
	if len(body) > maxErrorSnippet {
		body = body[:maxErrorSnippet]
	}
	return strings.TrimSpace(string(body))
}
