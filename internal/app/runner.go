package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BoxResin/HttpRequester/internal/config"
	"github.com/BoxResin/HttpRequester/internal/domain"
	"github.com/BoxResin/HttpRequester/internal/logger"
	"github.com/BoxResin/HttpRequester/internal/storage"
	"github.com/BoxResin/HttpRequester/pkg/httpclient"
	"github.com/BoxResin/HttpRequester/pkg/presets"
	"github.com/BoxResin/HttpRequester/pkg/requester"
	"github.com/BoxResin/HttpRequester/pkg/sinks"
)

// Runner represents the requester runtime. It owns the single-slot requester,
// the event loop on which outcomes are delivered, the exchange history and
// the sinks each delivered outcome is forwarded to.
type Runner struct {
	cfg       *config.Config
	log       logger.Logger
	requester *requester.Requester
	loop      *requester.EventLoop
	store     storage.Store
	fanout    *sinks.Fanout
	presets   []presets.Preset
	out       io.Writer

	// events carries delivered outcomes from the loop to the sink publisher.
	events chan sinks.Event
}

// Option customizes a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	client  httpclient.Client
	sinks   []sinks.Sink
	noSinks bool
	out     io.Writer
}

// WithHTTPClient overrides the requester transport.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *runnerOptions) { o.client = c }
}

// WithSinks replaces sinks configured through sinks_file.
func WithSinks(s ...sinks.Sink) Option {
	return func(o *runnerOptions) { o.sinks = s }
}

// WithoutSinks skips building sinks. History-only runners use it so that
// reading history never needs sink credentials.
func WithoutSinks() Option {
	return func(o *runnerOptions) { o.noSinks = true }
}

// WithOutput sets where History writes; defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *runnerOptions) { o.out = w }
}

// job is one request to submit.
type job struct {
	presetID string
	address  string
	spec     requester.Spec
}

// NewRunner builds a runner from config.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = httpclient.NewRestyClient(0)
	}
	if o.out == nil {
		o.out = os.Stdout
	}

	var presetList []presets.Preset
	if strings.TrimSpace(cfg.PresetsFile) != "" {
		reg, err := presets.Load(cfg.PresetsFile)
		if err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
		presetList = reg.Enabled()
		ids := make([]string, 0, len(presetList))
		for _, p := range presetList {
			ids = append(ids, p.ID)
		}
		log.InfoObj("presets loaded", "presets_meta", map[string]any{
			"count": len(ids),
			"ids":   ids,
		})
	}

	sinkList := o.sinks
	if sinkList == nil && !o.noSinks {
		built, err := buildSinks(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		sinkList = built
	}
	fanout := sinks.NewFanout(sinkList)

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		EntryTTL:        cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanup,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"history_ttl_seconds":      int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanup.Seconds()),
	})

	loop := requester.NewEventLoop()
	req := requester.New(cfg.Address,
		requester.WithClient(o.client),
		requester.WithDispatcher(loop),
		requester.WithLogger(log),
		requester.WithLineSeparator(cfg.LineSeparator),
	)

	return &Runner{
		cfg:       cfg,
		log:       log,
		requester: req,
		loop:      loop,
		store:     store,
		fanout:    fanout,
		presets:   presetList,
		out:       o.out,
	}, nil
}

// buildSinks loads sinks_file, or falls back to a single stdout sink.
func buildSinks(ctx context.Context, cfg *config.Config, log logger.Logger) ([]sinks.Sink, error) {
	cfgs := []sinks.SinkConfig{{ID: "stdout", Type: sinks.TypeStdout}}
	if strings.TrimSpace(cfg.SinksFile) != "" {
		reg, err := sinks.LoadRegistry(cfg.SinksFile)
		if err != nil {
			return nil, fmt.Errorf("load sinks registry: %w", err)
		}
		cfgs = reg.Enabled()
	}

	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), cfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(cfgs))
	for _, c := range cfgs {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("sinks loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return built, nil
}

// Run submits every configured request in order, waiting for each outcome,
// until all are done or ctx is cancelled. It reports how many failed.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.requester == nil {
		return fmt.Errorf("runner is not initialized")
	}

	jobs, err := r.jobs()
	if err != nil {
		return err
	}

	// At most one outcome per job is delivered, so the buffer never fills
	// and the loop never waits on sink I/O.
	r.events = make(chan sinks.Event, len(jobs))
	published := make(chan struct{})
	go r.publishEvents(ctx, r.events, published)

	loopCtx, stopLoop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		wg.Wait()
		close(r.events)
		<-published
	}()

	failed := 0
	for _, j := range jobs {
		ok, err := r.runJob(ctx, j)
		if err != nil {
			r.requester.Cancel()
			r.log.WarnObj("run interrupted", "reason", err.Error())
			return fmt.Errorf("run interrupted: %w", err)
		}
		if !ok {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(jobs))
	}
	return nil
}

func (r *Runner) jobs() ([]job, error) {
	if len(r.presets) > 0 {
		out := make([]job, 0, len(r.presets))
		for _, p := range r.presets {
			out = append(out, job{presetID: p.ID, address: p.Address, spec: p.Spec()})
		}
		return out, nil
	}

	if strings.TrimSpace(r.cfg.Address) == "" {
		return nil, errors.New("no address configured (set address or presets_file)")
	}
	return []job{{
		address: r.cfg.Address,
		spec: requester.Spec{
			Method:  requester.Method(r.cfg.Method),
			Body:    r.cfg.Body,
			Timeout: r.cfg.Timeout,
		},
	}}, nil
}

// runJob submits j and blocks until its outcome has been handled on the loop.
func (r *Runner) runJob(ctx context.Context, j job) (bool, error) {
	started := time.Now()
	handled := make(chan bool, 1)

	r.requester.SetAddress(j.address)
	task := r.requester.Submit(j.spec, func(o requester.Outcome) {
		r.handle(j, started, o)
		handled <- o.OK()
	})

	select {
	case ok := <-handled:
		return ok, nil
	case <-task.Done():
		if task.State() == requester.StateCancelled {
			return false, nil
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-handled:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// handle runs on the event loop for every delivered outcome. It records
// history and queues the event for publishing; sink I/O happens elsewhere.
func (r *Runner) handle(j job, started time.Time, o requester.Outcome) {
	ex := domain.Exchange{
		TaskID:     o.TaskID,
		PresetID:   j.presetID,
		Address:    j.address,
		Method:     string(j.spec.Method),
		Kind:       o.Kind.String(),
		StatusCode: o.StatusCode,
		Body:       o.Body,
		StartedAt:  started,
		Elapsed:    time.Since(started),
	}
	if o.Err != nil {
		ex.Error = o.Err.Error()
	}

	r.log.InfoObj("request delivered", "exchange", map[string]any{
		"task_id":    ex.TaskID,
		"preset_id":  ex.PresetID,
		"method":     ex.Method,
		"kind":       ex.Kind,
		"status":     ex.StatusCode,
		"body_bytes": len(ex.Body),
		"elapsed_ms": ex.Elapsed.Milliseconds(),
	})

	if err := r.store.Record(ex); err != nil {
		r.log.ErrorObj("history record failed", "error", err.Error())
	}
	r.events <- sinks.NewEvent(ex)
}

// publishEvents forwards events to the sinks in delivery order, off the
// event loop, and closes done once events is closed and drained.
func (r *Runner) publishEvents(ctx context.Context, events <-chan sinks.Event, done chan<- struct{}) {
	defer close(done)
	for evt := range events {
		if _, err := r.fanout.Publish(ctx, evt); err != nil {
			r.log.ErrorObj("sink publish failed", "error", err.Error())
		}
	}
}

// History writes the most recent exchanges as JSON lines, newest first.
func (r *Runner) History() error {
	entries, err := r.store.Recent(r.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	enc := json.NewEncoder(r.out)
	for _, ex := range entries {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	return nil
}

// Close releases sinks and storage.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.fanout != nil {
		errs = append(errs, r.fanout.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
