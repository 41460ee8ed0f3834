// Package requester implements a single-slot asynchronous HTTP requester:
// at most one request is in flight per Requester, submitting a new request
// supersedes the previous one, and each surviving request reports exactly one
// Outcome on the caller's chosen Dispatcher.
package requester

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BoxResin/HttpRequester/pkg/httpclient"
)

const formContentType = "application/x-www-form-urlencoded"

// Requester holds the address and the single in-flight task slot.
type Requester struct {
	mu      sync.RWMutex
	address string

	slot   atomic.Pointer[Task]
	nextID atomic.Uint64

	client     httpclient.Client
	dispatcher Dispatcher
	log        Logger
	lineSep    string
}

// Option customizes a Requester.
type Option func(*Requester)

// WithClient overrides the HTTP transport.
func WithClient(c httpclient.Client) Option {
	return func(r *Requester) {
		if c != nil {
			r.client = c
		}
	}
}

// WithDispatcher sets the context on which listeners are invoked.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Requester) {
		if d != nil {
			r.dispatcher = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log Logger) Option {
	return func(r *Requester) { r.log = ensureLogger(log) }
}

// WithLineSeparator joins response lines with sep instead of dropping line breaks.
func WithLineSeparator(sep string) Option {
	return func(r *Requester) { r.lineSep = sep }
}

// New creates a Requester targeting address.
func New(address string, opts ...Option) *Requester {
	r := &Requester{
		address:    address,
		client:     httpclient.NewRestyClient(0),
		dispatcher: Inline(),
		log:        noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address returns the target address.
func (r *Requester) Address() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address
}

// SetAddress replaces the target address. It is not validated until a request runs.
func (r *Requester) SetAddress(addr string) {
	r.mu.Lock()
	r.address = addr
	r.mu.Unlock()
}

// RequestGet submits a GET request.
func (r *Requester) RequestGet(timeout time.Duration, listener Listener) *Task {
	return r.Submit(Spec{Method: MethodGet, Timeout: timeout}, listener)
}

// RequestPost submits a POST request carrying body.
func (r *Requester) RequestPost(body string, timeout time.Duration, listener Listener) *Task {
	return r.Submit(Spec{Method: MethodPost, Body: body, Timeout: timeout}, listener)
}

// Submit places a new task in the slot, cancelling the previous occupant,
// and starts it in the background. It never blocks on I/O.
func (r *Requester) Submit(spec Spec, listener Listener) *Task {
	spec.Method = Method(strings.ToUpper(strings.TrimSpace(string(spec.Method))))
	if spec.Method == "" {
		spec.Method = MethodGet
	}
	if spec.Timeout < 0 {
		spec.Timeout = 0
	}

	t := newTask(r.nextID.Add(1), r.Address(), spec, listener)
	if prev := r.slot.Swap(t); prev != nil && !prev.State().Terminal() {
		cancelled := prev.Cancel()
		r.log.DebugObj("cancel previous request", "request_supersede", map[string]any{
			"previous_id": prev.ID(),
			"next_id":     t.ID(),
			"cancelled":   cancelled,
		})
	}

	r.log.DebugObj("request submitted", "request", map[string]any{
		"id":         t.ID(),
		"method":     string(spec.Method),
		"address":    t.Address(),
		"timeout_ms": spec.Timeout.Milliseconds(),
	})

	go r.run(t)
	return t
}

// Current returns the task held in the slot, if any.
func (r *Requester) Current() *Task {
	return r.slot.Load()
}

// Cancel empties the slot and cancels its task. It reports whether a
// running task was cancelled.
func (r *Requester) Cancel() bool {
	t := r.slot.Swap(nil)
	if t == nil {
		return false
	}
	return t.Cancel()
}

func (r *Requester) run(t *Task) {
	if !t.start() {
		return
	}

	outcome := r.execute(t)
	outcome.TaskID = t.ID()

	r.dispatcher.Dispatch(func() {
		if r.slot.Load() != t {
			t.Cancel()
		}
		if !t.complete(outcome) {
			r.log.DebugObj("request result suppressed", "request_suppressed", map[string]any{
				"id":   t.ID(),
				"kind": outcome.Kind.String(),
			})
			return
		}
		if t.listener != nil {
			t.listener(outcome)
		}
	})
}

func (r *Requester) execute(t *Task) (out Outcome) {
	defer func() {
		if v := recover(); v != nil {
			r.log.WarnObj("request worker panicked", "request_panic", map[string]any{
				"id":    t.ID(),
				"panic": fmt.Sprint(v),
			})
			out = Failure(&PanicError{Value: v})
		}
	}()

	switch t.spec.Method {
	case MethodGet, MethodPost:
	default:
		return Failure(fmt.Errorf("%w %q", ErrUnsupportedMethod, t.spec.Method))
	}

	target, err := parseAddress(t.Address())
	if err != nil {
		return Failure(err)
	}

	ctx := t.ctx
	if t.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.spec.Timeout)
		defer cancel()
	}

	headers := map[string]string{"Content-Type": formContentType}

	var resp httpclient.Response
	if t.spec.Method == MethodPost {
		resp, err = r.client.Post(ctx, target, headers, []byte(t.spec.Body))
	} else {
		resp, err = r.client.Get(ctx, target, headers)
	}
	if err != nil {
		return Failure(fmt.Errorf("%s %s: %w", t.spec.Method, target, err))
	}

	if code := resp.StatusCode(); code >= 400 {
		failed := Failure(&StatusError{Code: code})
		failed.StatusCode = code
		return failed
	}

	out = Success(joinLines(resp.Body(), r.lineSep))
	out.StatusCode = resp.StatusCode()
	return out
}

// parseAddress resolves addr into an absolute http(s) URL.
func parseAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	return u.String(), nil
}
