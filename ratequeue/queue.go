/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/rs/xid"
	"go.uber.org/atomic"
)

// Default parameter values for Queue.
const (
	DefaultTickInterval     = 500 * time.Millisecond
	DefaultThrottleCooldown = 5 * time.Second
	DefaultRemainingHeader  = "X-RateLimit-Remaining"
	DefaultResetHeader      = "X-RateLimit-Reset"
)

// submitChannelCapacity covers the gap between Submit calls and the scheduler
// loop draining them into its own buffer. The queue itself is unbounded.
const submitChannelCapacity = 128

// ErrQueueClosed is reported in Result.Err for descriptors that were still
// queued when the queue stopped.
var ErrQueueClosed = errors.New("request queue is closed")

// Opts represents options for Queue.
type Opts struct {
	// Logger is used for diagnostic records on failed dispatches.
	// Disabled logger is used by default.
	Logger log.FieldLogger

	// Collector is a metrics collector.
	Collector MetricsCollector

	// TickInterval is the period of the scheduler loop. At most one descriptor
	// is dispatched per tick. By default, DefaultTickInterval const is used.
	TickInterval time.Duration

	// ThrottleCooldown determines how long dispatching pauses after a 429
	// response that carries no server-provided reset hint.
	// By default, DefaultThrottleCooldown const is used.
	ThrottleCooldown time.Duration

	// RemainingHeader is the name of the response header with the remaining
	// request budget. By default, DefaultRemainingHeader const is used.
	RemainingHeader string

	// ResetHeader is the name of the response header with the budget reset
	// time in Unix seconds. By default, DefaultResetHeader const is used.
	ResetHeader string
}

// Queue serializes dispatching of outbound HTTP requests according to a budget
// learned from server responses. Descriptors are dispatched in strict FIFO
// submission order, at most one per scheduler tick.
type Queue struct {
	delegate  http.RoundTripper
	logger    log.FieldLogger
	collector MetricsCollector

	tickInterval     time.Duration
	throttleCooldown time.Duration
	remainingHeader  string
	resetHeader      string

	submitCh     chan *pendingCall
	completionCh chan completion
	stopCh       chan struct{}
	loopDone     chan struct{}
	started      atomic.Bool
	stopped      atomic.Bool
	gracefulStop atomic.Bool

	// submitMu orders submissions against closing: once closed is set, no new
	// descriptor can enter submitCh, so the final drain settles every future.
	submitMu sync.Mutex
	closed   bool

	now func() time.Time

	// The fields below are owned by the scheduler loop goroutine.
	pending  []*pendingCall
	limiter  limiterState
	inFlight int
}

// New creates a new Queue with default options.
func New(delegate http.RoundTripper) (*Queue, error) {
	return NewWithOpts(delegate, Opts{})
}

// NewWithOpts creates a new Queue with the specified options.
// For options that are not presented, the default values will be used.
func NewWithOpts(delegate http.RoundTripper, opts Opts) (*Queue, error) {
	if delegate == nil {
		return nil, fmt.Errorf("delegate must not be nil")
	}

	if opts.TickInterval < 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}

	if opts.ThrottleCooldown < 0 {
		return nil, fmt.Errorf("throttle cooldown must be positive")
	}
	if opts.ThrottleCooldown == 0 {
		opts.ThrottleCooldown = DefaultThrottleCooldown
	}

	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.Collector == nil {
		opts.Collector = disabledMetrics{}
	}
	if opts.RemainingHeader == "" {
		opts.RemainingHeader = DefaultRemainingHeader
	}
	if opts.ResetHeader == "" {
		opts.ResetHeader = DefaultResetHeader
	}

	return &Queue{
		delegate:         delegate,
		logger:           opts.Logger,
		collector:        opts.Collector,
		tickInterval:     opts.TickInterval,
		throttleCooldown: opts.ThrottleCooldown,
		remainingHeader:  opts.RemainingHeader,
		resetHeader:      opts.ResetHeader,
		submitCh:         make(chan *pendingCall, submitChannelCapacity),
		completionCh:     make(chan completion),
		stopCh:           make(chan struct{}),
		loopDone:         make(chan struct{}),
		now:              time.Now,
	}, nil
}

// Submit enqueues the descriptor for dispatching and returns a Future that will
// be settled exactly once when the dispatch completes. Submission order defines
// dispatch order. Once enqueued, a descriptor cannot be canceled.
// After Stop, the returned Future is settled with ErrQueueClosed.
func (q *Queue) Submit(d Descriptor) *Future {
	f := newFuture(d.OnComplete)
	pc := &pendingCall{descriptor: d, future: f, id: xid.New().String(), enqueuedAt: q.now()}

	q.submitMu.Lock()
	defer q.submitMu.Unlock()
	if q.closed {
		f.resolve(Result{Err: ErrQueueClosed})
		return f
	}
	select {
	case q.submitCh <- pc:
	case <-q.stopCh:
		f.resolve(Result{Err: ErrQueueClosed})
	}
	return f
}

// Start launches the scheduler loop in a separate goroutine.
// It implements the service.Unit interface and never reports fatal errors.
func (q *Queue) Start(_ chan<- error) {
	if q.started.CompareAndSwap(false, true) {
		go q.run()
	}
}

// Stop halts the scheduler loop. When gracefully is true, in-flight requests
// are allowed to complete first. Descriptors that are still queued are resolved
// with ErrQueueClosed. It implements the service.Unit interface.
func (q *Queue) Stop(gracefully bool) error {
	if q.stopped.CompareAndSwap(false, true) {
		q.gracefulStop.Store(gracefully)
		close(q.stopCh)
	}
	if !q.started.Load() {
		// The scheduler loop never ran, so its shutdown will not settle
		// descriptors that were submitted before the stop.
		for _, pc := range q.closeSubmissions() {
			pc.future.resolve(Result{Err: ErrQueueClosed})
		}
		return nil
	}
	<-q.loopDone
	return nil
}

// closeSubmissions rejects all future submissions and hands back the
// descriptors that entered the submit channel before the queue was closed.
func (q *Queue) closeSubmissions() []*pendingCall {
	q.submitMu.Lock()
	q.closed = true
	q.submitMu.Unlock()

	var raced []*pendingCall
	for {
		select {
		case pc := <-q.submitCh:
			raced = append(raced, pc)
			continue
		default:
		}
		break
	}
	return raced
}

// MustRegisterMetrics implements the service.MetricsRegisterer interface.
func (q *Queue) MustRegisterMetrics() {
	if mr, ok := q.collector.(interface{ MustRegister() }); ok {
		mr.MustRegister()
	}
}

// UnregisterMetrics implements the service.MetricsRegisterer interface.
func (q *Queue) UnregisterMetrics() {
	if mr, ok := q.collector.(interface{ Unregister() }); ok {
		mr.Unregister()
	}
}

// run is the scheduler loop. It is the only goroutine that touches the pending
// buffer and the limiter state.
func (q *Queue) run() {
	defer close(q.loopDone)

	ticker := time.NewTicker(q.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case pc := <-q.submitCh:
			q.enqueue(pc)
		case c := <-q.completionCh:
			q.handleCompletion(c)
		case <-ticker.C:
			q.tick()
		case <-q.stopCh:
			q.shutdown(q.gracefulStop.Load())
			return
		}
	}
}

func (q *Queue) enqueue(pc *pendingCall) {
	q.pending = append(q.pending, pc)
	q.collector.QueueLength(len(q.pending))
	q.logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("request queued",
			log.String("request_id", pc.id),
			log.String("method", pc.descriptor.Method),
			log.String("uri", pc.descriptor.URL),
			log.Int("queue_length", len(q.pending)),
		)
	})
}

// tick evaluates the dispatch predicate once and fires at most one pending
// descriptor. An empty queue or a throttled limiter makes the tick a no-op.
func (q *Queue) tick() {
	if len(q.pending) == 0 {
		return
	}
	if !q.limiter.allow(q.now()) {
		return
	}

	pc := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.inFlight++
	q.collector.QueueLength(len(q.pending))

	q.logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("dispatching request",
			log.String("request_id", pc.id),
			log.String("method", pc.descriptor.Method),
			log.String("uri", pc.descriptor.URL),
		)
	})

	go q.issue(pc)
}

// issue performs the HTTP exchange and reports it back to the scheduler loop.
// If the loop is already gone, the caller is settled directly.
func (q *Queue) issue(pc *pendingCall) {
	res := q.roundTrip(pc.descriptor)
	select {
	case q.completionCh <- completion{call: pc, res: res}:
	case <-q.loopDone:
		pc.future.resolve(res)
	}
}

func (q *Queue) roundTrip(d Descriptor) Result {
	var bodyReader io.Reader
	if len(d.Body) != 0 {
		bodyReader = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequest(d.Method, d.URL, bodyReader)
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err)}
	}
	if d.Header != nil {
		req.Header = d.Header.Clone()
	}
	// net/http takes the wire Content-Length from the request field and
	// ignores the header map entry, so an explicit value must be carried over.
	if v := req.Header.Get("Content-Length"); v != "" && bodyReader == nil {
		if size, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil {
			req.ContentLength = size
		}
	}

	resp, err := q.delegate.RoundTrip(req)
	if err != nil {
		return Result{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Header: resp.Header, Err: fmt.Errorf("read response body: %w", err)}
	}
	return Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}
}

// shutdown settles everything the loop still owns. With graceful stop,
// in-flight exchanges are drained first so that their callers get real results.
func (q *Queue) shutdown(gracefully bool) {
	if gracefully {
		for q.inFlight > 0 {
			q.handleCompletion(<-q.completionCh)
		}
	}

	q.pending = append(q.pending, q.closeSubmissions()...)

	for _, pc := range q.pending {
		pc.future.resolve(Result{Err: ErrQueueClosed})
	}
	q.pending = nil
	q.collector.QueueLength(0)
}
