package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BoxResin/HttpRequester/internal/config"
	"github.com/BoxResin/HttpRequester/internal/domain"
	"github.com/BoxResin/HttpRequester/pkg/sinks"
)

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []sinks.Event
}

func (s *recordingSink) ID() string   { return "recording" }
func (s *recordingSink) Type() string { return "test" }
func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) Publish(_ context.Context, evt sinks.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Events() []sinks.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinks.Event(nil), s.events...)
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if r.URL.Path == "/echo" && string(raw) == "query=a" {
			_, _ = w.Write([]byte("line1\nline2"))
			return
		}
		_, _ = w.Write([]byte("hello\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:        "httprequester-test",
		Method:         "POST",
		StorageType:    "bbolt",
		BBoltPath:      filepath.Join(t.TempDir(), "history.db"),
		HistoryTTL:     time.Hour,
		HistoryCleanup: time.Hour,
		HistoryLimit:   10,
	}
}

func TestRunnerSingleRequestFromConfig(t *testing.T) {
	srv := echoServer(t)
	cfg := testConfig(t)
	cfg.Address = srv.URL + "/echo"
	cfg.Body = "query=a"

	sink := &recordingSink{}
	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, WithSinks(sink), WithOutput(&out))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != "ok" || events[0].Body != "line1line2" || events[0].Method != "POST" {
		t.Fatalf("unexpected event %+v", events[0])
	}

	if err := runner.History(); err != nil {
		t.Fatalf("History: %v", err)
	}
	var ex domain.Exchange
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &ex); err != nil {
		t.Fatalf("decode history %q: %v", out.String(), err)
	}
	if ex.Body != "line1line2" || ex.TaskID != events[0].TaskID {
		t.Fatalf("unexpected history entry %+v", ex)
	}
}

func TestRunnerPresetsReportFailures(t *testing.T) {
	srv := echoServer(t)
	presetsFile := filepath.Join(t.TempDir(), "requests.yaml")
	content := "requests:\n" +
		"  - id: echo\n    address: " + srv.URL + "/echo\n    method: POST\n    body: query=a\n" +
		"  - id: broken\n    address: not a url\n" +
		"  - id: plain\n    address: " + srv.URL + "/plain\n    timeout_ms: 2000\n"
	if err := os.WriteFile(presetsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	cfg := testConfig(t)
	cfg.PresetsFile = presetsFile
	cfg.StorageType = "none"

	sink := &recordingSink{}
	runner, err := NewRunner(context.Background(), cfg, nil, WithSinks(sink))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	err = runner.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("expected one failure reported, got %v", err)
	}

	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []struct{ preset, kind, body string }{
		{"echo", "ok", "line1line2"},
		{"broken", "invalid_address", ""},
		{"plain", "ok", "hello"},
	}
	for i, w := range want {
		if events[i].PresetID != w.preset || events[i].Kind != w.kind || events[i].Body != w.body {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], w)
		}
	}
}

func TestRunnerRequiresAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageType = "none"
	runner, err := NewRunner(context.Background(), cfg, nil, WithSinks(&recordingSink{}))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error without address or presets")
	}
}

// blockingSink holds every Publish until release is closed.
type blockingSink struct {
	recordingSink
	release chan struct{}
}

func (s *blockingSink) Publish(ctx context.Context, evt sinks.Event) error {
	<-s.release
	return s.recordingSink.Publish(ctx, evt)
}

func writePresets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}
	return path
}

func TestRunnerSlowSinkDoesNotHoldDeliveries(t *testing.T) {
	hits := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.URL.Path
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.StorageType = "none"
	cfg.PresetsFile = writePresets(t, "requests:\n"+
		"  - id: first\n    address: "+srv.URL+"/first\n"+
		"  - id: second\n    address: "+srv.URL+"/second\n")

	sink := &blockingSink{release: make(chan struct{})}
	runner, err := NewRunner(context.Background(), cfg, nil, WithSinks(sink))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background()) }()

	for _, want := range []string{"/first", "/second"} {
		select {
		case got := <-hits:
			if got != want {
				t.Fatalf("expected request %s, got %s", want, got)
			}
		case <-time.After(5 * time.Second):
			close(sink.release)
			t.Fatalf("request %s never sent while the sink was blocked", want)
		}
	}

	close(sink.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after sink release")
	}

	events := sink.Events()
	if len(events) != 2 || events[0].PresetID != "first" || events[1].PresetID != "second" {
		t.Fatalf("expected both events in order, got %+v", events)
	}
}

func TestHistoryRunnerSkipsSinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.SinksFile = filepath.Join(t.TempDir(), "missing-sinks.yaml")

	if _, err := NewRunner(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected sink loading to fail for a missing sinks file")
	}

	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, WithoutSinks(), WithOutput(&out))
	if err != nil {
		t.Fatalf("NewRunner without sinks: %v", err)
	}
	defer runner.Close()

	if err := runner.History(); err != nil {
		t.Fatalf("History: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty history, got %q", out.String())
	}
}

func TestRunnerInterruptedRunReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.StorageType = "none"
	cfg.Address = srv.URL + "/slow"

	sink := &recordingSink{}
	runner, err := NewRunner(context.Background(), cfg, nil, WithSinks(sink))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = runner.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected interrupted run to report the context error, got %v", err)
	}
	if n := len(sink.Events()); n != 0 {
		t.Fatalf("expected no delivered events, got %d", n)
	}
}
