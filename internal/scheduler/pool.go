package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hollowsim/internal/llm"
)

// State tracks a request through its lifecycle.
type State uint8

const (
	StateQueued State = iota
	StateDispatched
	StateCompleted
	StateFailed
)

// Request is one transient thinking request. Not persisted.
type Request struct {
	AgentID  string
	Context  string
	Priority Priority
	Override llm.Tier // optional explicit tier; empty means derive from Priority

	mu     sync.Mutex
	state  State
	result *Result
}

// State returns the request's current lifecycle state.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Request) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Tier resolves the model tier for this request.
func (r *Request) Tier() llm.Tier {
	if r.Override != "" {
		return r.Override
	}
	return TierFor(r.Priority)
}

// Result delivers a request's outcome to the waiting caller.
type Result struct {
	mu    sync.Mutex
	text  string
	err   error
	ready chan struct{}
}

func newResult() *Result {
	return &Result{ready: make(chan struct{})}
}

func (r *Result) finish(text string, err error) {
	r.mu.Lock()
	r.text = text
	r.err = err
	r.mu.Unlock()
	close(r.ready)
}

// Wait blocks until the request completes or fails, or ctx ends.
func (r *Result) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.ready:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// DefaultCapacity is the global worker-pool size across all agents.
const DefaultCapacity = 10

// Pool is the fixed-size worker pool over a FIFO queue of thinking
// requests. Capacity is the sole true contention point in the system and is
// enforced here, centrally, never per-agent. Each request invokes the
// generator exactly once; there is no retry.
type Pool struct {
	gen      llm.Generator
	queue    chan *Request
	capacity int
	timeout  time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a pool. timeout bounds each generation call so a stalled
// external call cannot permanently occupy a slot.
func NewPool(gen llm.Generator, capacity int, timeout time.Duration) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pool{
		gen:      gen,
		queue:    make(chan *Request, capacity*4),
		capacity: capacity,
		timeout:  timeout,
	}
}

// Start launches the workers. They run until Stop.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.capacity; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	slog.Info("scheduler pool started", "capacity", p.capacity, "timeout", p.timeout)
}

// Stop cancels the workers and waits for in-flight requests to settle.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit queues a request and returns its result handle. Blocks if the
// queue backlog is full, which is the intended backpressure.
func (p *Pool) Submit(req *Request) *Result {
	res := newResult()
	req.result = res
	req.setState(StateQueued)
	p.queue <- req
	return res
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.queue:
			p.dispatch(ctx, req)
		}
	}
}

// dispatch invokes the generation collaborator exactly once for a request.
func (p *Pool) dispatch(ctx context.Context, req *Request) {
	req.setState(StateDispatched)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	text, err := p.gen.Generate(callCtx, req.Context, req.Tier())
	cancel()

	if err != nil {
		req.setState(StateFailed)
		slog.Debug("thinking request failed",
			"agent", req.AgentID, "priority", req.Priority.String(), "error", err)
		req.result.finish("", err)
		return
	}
	req.setState(StateCompleted)
	req.result.finish(text, nil)
}
