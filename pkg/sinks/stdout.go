package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// stdoutSink prints delivered outcomes, the console analogue of showing the response on screen.
type stdoutSink struct {
	id     string
	asJSON bool
	mu     sync.Mutex
	out    io.Writer
}

func newStdoutSink(_ context.Context, cfg SinkConfig, _ Logger) (Sink, error) {
	s := &stdoutSink{id: cfg.ID, out: os.Stdout}
	if cfg.Stdout != nil {
		s.asJSON = cfg.Stdout.JSON
	}
	return s, nil
}

func (s *stdoutSink) ID() string   { return s.id }
func (s *stdoutSink) Type() string { return TypeStdout }
func (s *stdoutSink) Close() error { return nil }

func (s *stdoutSink) Publish(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.asJSON {
		return json.NewEncoder(s.out).Encode(evt)
	}
	if evt.Kind == "ok" {
		_, err := fmt.Fprintln(s.out, evt.Body)
		return err
	}
	_, err := fmt.Fprintf(s.out, "%s %s failed (%s): %s\n", evt.Method, evt.Address, evt.Kind, evt.Error)
	return err
}
