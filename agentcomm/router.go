// Package agentcomm provides the message fabric between the pipeline
// controller and its workers.
//
// Thread-safe, in-process request/reply transport for single-process
// deployments.
//
// Components:
//   - Router: delivers envelopes to worker inboxes, resolves replies
//   - CorrelationTable: outstanding request handles, keyed by request id
//   - Worker: bounded-concurrency actor consuming one FIFO inbox
//
// Usage:
//
//	router := NewRouter(logger)
//	w := NewWorker(envelope.RoleRetriever, router, logger, cfg)
//	w.Register(envelope.KindSearchRequest, searchHandler)
//	w.Start()
//
//	reply, err := caller.Request(ctx, envelope.RoleRetriever,
//	    envelope.KindSearchRequest, payload, 30*time.Second)
package agentcomm

import (
	"sync"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
)

// Mailbox is the router's view of an attached worker.
type Mailbox interface {
	Role() envelope.Role
	Submit(env *envelope.Envelope) error
}

// Router delivers envelopes to the addressed worker's inbox, or resolves an
// outstanding pending request when the envelope carries a matching
// correlation id. Delivery is best-effort and never blocks the sender on
// downstream processing.
//
// Ordering: FIFO per (sender, recipient) inbox; no ordering across workers.
type Router struct {
	mu      sync.RWMutex
	workers map[envelope.Role]Mailbox

	table  *CorrelationTable
	logger Logger
}

// NewRouter creates a router with an empty correlation table.
func NewRouter(logger Logger) *Router {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Router{
		workers: make(map[envelope.Role]Mailbox),
		table:   NewCorrelationTable(),
		logger:  logger.Bind("component", "router"),
	}
}

// Correlations returns the shared correlation table.
func (r *Router) Correlations() *CorrelationTable {
	return r.table
}

// Attach registers a worker mailbox for delivery.
func (r *Router) Attach(m Mailbox) {
	r.mu.Lock()
	r.workers[m.Role()] = m
	r.mu.Unlock()
	r.logger.Debug("worker_attached", "role", string(m.Role()))
}

// Detach removes a worker mailbox.
func (r *Router) Detach(role envelope.Role) {
	r.mu.Lock()
	delete(r.workers, role)
	r.mu.Unlock()
	r.logger.Debug("worker_detached", "role", string(role))
}

// Deliver routes a single envelope. Malformed envelopes are rejected at
// ingress; replies matching an outstanding request resolve it directly and
// never invoke a handler.
func (r *Router) Deliver(env *envelope.Envelope) error {
	if err := env.Validate(); err != nil {
		r.logger.Warn("envelope_rejected",
			"id", env.ID,
			"kind", string(env.Kind),
			"error", err.Error(),
		)
		observability.RecordMessageRouted(string(env.Kind), "rejected")
		return err
	}

	if env.IsReply() {
		if r.table.Resolve(env.CorrelationID, env) {
			observability.RecordMessageRouted(string(env.Kind), "resolved")
			return nil
		}
		// Late or duplicate reply: the pending entry is gone. Drop it.
		r.logger.Debug("reply_discarded",
			"id", env.ID,
			"correlation_id", env.CorrelationID,
		)
		observability.RecordMessageRouted(string(env.Kind), "dropped")
		return nil
	}

	r.mu.RLock()
	m, ok := r.workers[env.Recipient]
	r.mu.RUnlock()

	if !ok {
		observability.RecordMessageRouted(string(env.Kind), "rejected")
		return NewWorkerUnavailableError(env.Recipient, "not attached")
	}

	if err := m.Submit(env); err != nil {
		observability.RecordMessageRouted(string(env.Kind), "rejected")
		return err
	}
	observability.RecordMessageRouted(string(env.Kind), "delivered")
	return nil
}
