package agentcomm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
)

var tracer = otel.Tracer("answerhub/agentcomm")

// HandlerFunc processes one request envelope and returns the reply payload.
// A returned error becomes an error reply to the original sender.
type HandlerFunc func(ctx context.Context, env *envelope.Envelope) (any, error)

// WorkerConfig bounds a worker's concurrency and timing.
type WorkerConfig struct {
	// MaxConcurrent is the admission gate: at most this many handler
	// invocations run at once; excess items wait in the inbox.
	MaxConcurrent int
	// InboxCapacity bounds the inbox channel.
	InboxCapacity int
	// DefaultTimeout applies to Request calls that pass no timeout.
	DefaultTimeout time.Duration
	// HeartbeatInterval is the period between heartbeats to the controller.
	// Zero disables heartbeats.
	HeartbeatInterval time.Duration
}

// DefaultWorkerConfig returns the default worker bounds.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxConcurrent:     10,
		InboxCapacity:     256,
		DefaultTimeout:    30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// StatusSnapshot is a read-only view of a worker, regenerated on demand.
// Not authoritative state.
type StatusSnapshot struct {
	Role            string `json:"role"`
	Name            string `json:"name"`
	Running         bool   `json:"running"`
	PendingRequests int    `json:"pending_requests"`
	InboxDepth      int    `json:"inbox_depth"`
	ActiveTasks     int    `json:"active_tasks"`
}

// Worker is a bounded-concurrency actor: one goroutine consumes its FIFO
// inbox and dispatches each envelope to the handler registered for its kind,
// up to MaxConcurrent invocations in flight.
type Worker struct {
	role   envelope.Role
	name   string
	cfg    WorkerConfig
	logger Logger
	router *Router

	handlerMu sync.RWMutex
	handlers  map[envelope.Kind]HandlerFunc

	inbox chan *envelope.Envelope
	gate  chan struct{}

	running atomic.Bool
	active  atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker for the given role. It is not consuming its
// inbox until Start is called.
func NewWorker(role envelope.Role, router *Router, logger Logger, cfg WorkerConfig) *Worker {
	if logger == nil {
		logger = NopLogger{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultWorkerConfig().MaxConcurrent
	}
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = DefaultWorkerConfig().InboxCapacity
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultWorkerConfig().DefaultTimeout
	}
	return &Worker{
		role:     role,
		name:     string(role),
		cfg:      cfg,
		logger:   logger.Bind("worker", string(role)),
		router:   router,
		handlers: make(map[envelope.Kind]HandlerFunc),
		inbox:    make(chan *envelope.Envelope, cfg.InboxCapacity),
		gate:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Role implements Mailbox.
func (w *Worker) Role() envelope.Role { return w.role }

// Register installs the handler for a message kind. Only one handler per
// kind is allowed.
func (w *Worker) Register(kind envelope.Kind, handler HandlerFunc) error {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()

	if _, exists := w.handlers[kind]; exists {
		return NewHandlerAlreadyRegisteredError(w.role, kind)
	}
	w.handlers[kind] = handler
	w.logger.Debug("handler_registered", "kind", string(kind))
	return nil
}

// Start begins consuming the inbox and emitting heartbeats.
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.consumeLoop()

	if w.cfg.HeartbeatInterval > 0 {
		w.wg.Add(1)
		go w.heartbeatLoop()
	}

	w.logger.Info("worker_started",
		"max_concurrent", w.cfg.MaxConcurrent,
		"default_timeout", w.cfg.DefaultTimeout.String(),
	)
}

// Stop halts the worker and cancels its own outstanding requests. Their
// callers observe a cancellation, not a timeout. In-flight handlers see a
// cancelled context.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	w.cancel()
	w.router.Correlations().CancelOwned(w.role)
	w.wg.Wait()
	w.logger.Info("worker_stopped")
}

// Submit enqueues an envelope for processing. Never blocks on downstream
// processing: a full inbox or stopped worker fails immediately.
func (w *Worker) Submit(env *envelope.Envelope) error {
	if !w.running.Load() {
		return NewWorkerUnavailableError(w.role, "not running")
	}
	select {
	case w.inbox <- env:
		return nil
	default:
		return NewWorkerUnavailableError(w.role, "inbox full")
	}
}

// Request sends a request envelope and suspends the caller until a
// correlated reply arrives or the timeout elapses. Zero timeout uses the
// worker's default. An error reply surfaces as a HandlerError; a missed
// deadline removes the stale pending entry and returns MessageTimeoutError.
func (w *Worker) Request(
	ctx context.Context,
	recipient envelope.Role,
	kind envelope.Kind,
	payload any,
	timeout time.Duration,
) (*envelope.Envelope, error) {
	if timeout <= 0 {
		timeout = w.cfg.DefaultTimeout
	}

	env := envelope.NewRequest(w.role, recipient, kind, payload)
	pending := w.router.Correlations().Register(env.ID, w.role, time.Now().Add(timeout))

	if err := w.router.Deliver(env); err != nil {
		w.router.Correlations().Remove(env.ID)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-pending.Reply():
		if reply.Kind == envelope.KindError {
			payload, _ := reply.Payload.(envelope.ErrorPayload)
			return nil, NewHandlerError(reply.Sender, payload)
		}
		return reply, nil

	case <-pending.Cancelled():
		return nil, NewRequestCancelledError(env.ID, w.role)

	case <-timer.C:
		w.router.Correlations().Remove(env.ID)
		observability.RecordRequestTimeout(string(recipient))
		return nil, NewMessageTimeoutError(env.ID, recipient, timeout)

	case <-ctx.Done():
		w.router.Correlations().Remove(env.ID)
		return nil, ctx.Err()
	}
}

// Status returns a point-in-time snapshot of the worker.
func (w *Worker) Status() StatusSnapshot {
	return StatusSnapshot{
		Role:            string(w.role),
		Name:            w.name,
		Running:         w.running.Load(),
		PendingRequests: w.router.Correlations().LenOwned(w.role),
		InboxDepth:      len(w.inbox),
		ActiveTasks:     int(w.active.Load()),
	}
}

// =============================================================================
// INTERNAL LOOPS
// =============================================================================

func (w *Worker) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case env := <-w.inbox:
			// Admission gate: dispatch order stays FIFO, at most
			// MaxConcurrent handlers run at once.
			select {
			case w.gate <- struct{}{}:
			case <-w.ctx.Done():
				return
			}
			w.wg.Add(1)
			go w.handle(env)
		}
	}
}

func (w *Worker) handle(env *envelope.Envelope) {
	defer w.wg.Done()
	defer func() { <-w.gate }()

	w.active.Add(1)
	defer w.active.Add(-1)

	ctx, span := tracer.Start(w.ctx, "worker.handle")
	span.SetAttributes(
		attribute.String("worker.role", string(w.role)),
		attribute.String("message.kind", string(env.Kind)),
		attribute.String("message.id", env.ID),
	)
	defer span.End()

	w.handlerMu.RLock()
	handler, ok := w.handlers[env.Kind]
	w.handlerMu.RUnlock()

	if !ok {
		// Unregistered kinds are dropped for forward compatibility.
		w.logger.Warn("no_handler_for_kind", "kind", string(env.Kind), "id", env.ID)
		observability.RecordMessageRouted(string(env.Kind), "dropped")
		return
	}

	result, err := SafeExecuteWithResult(w.logger, "handler:"+string(env.Kind), func() (any, error) {
		return handler(ctx, env)
	})

	if !env.Kind.IsRequest() {
		if err != nil {
			w.logger.Error("handler_failed", "kind", string(env.Kind), "error", err.Error())
			span.SetStatus(codes.Error, err.Error())
		}
		return
	}

	var reply *envelope.Envelope
	if err != nil {
		w.logger.Error("handler_failed",
			"kind", string(env.Kind),
			"id", env.ID,
			"error", err.Error(),
		)
		span.SetStatus(codes.Error, err.Error())
		reply = envelope.NewErrorReply(env, err.Error())
	} else {
		responseKind, _ := env.Kind.ResponseKind()
		reply = envelope.NewReply(env, responseKind, result)
	}

	if err := w.router.Deliver(reply); err != nil {
		w.logger.Warn("reply_delivery_failed",
			"id", reply.ID,
			"correlation_id", reply.CorrelationID,
			"error", err.Error(),
		)
	}
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			hb := envelope.NewHeartbeat(w.role, envelope.HeartbeatPayload{
				Status: "healthy",
				SentAt: time.Now().UTC(),
			})
			if err := w.router.Deliver(hb); err != nil {
				w.logger.Debug("heartbeat_delivery_failed", "error", err.Error())
			}
		}
	}
}
