package agentcomm

import (
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// PendingRequest is the caller-side handle for one outstanding request.
// Exactly one reply may resolve it; later replies are discarded. It is
// created at send time and destroyed at resolution, timeout, or cancellation.
type PendingRequest struct {
	id       string
	owner    envelope.Role
	deadline time.Time

	replyCh  chan *envelope.Envelope // buffered, capacity 1
	cancelCh chan struct{}

	once sync.Once
}

// ID returns the request envelope id this handle is keyed by.
func (p *PendingRequest) ID() string { return p.id }

// Reply returns the channel that receives the first matching reply.
func (p *PendingRequest) Reply() <-chan *envelope.Envelope { return p.replyCh }

// Cancelled returns a channel closed when the owning worker stops.
func (p *PendingRequest) Cancelled() <-chan struct{} { return p.cancelCh }

// Deadline returns the request deadline.
func (p *PendingRequest) Deadline() time.Time { return p.deadline }

func (p *PendingRequest) resolve(env *envelope.Envelope) {
	p.once.Do(func() { p.replyCh <- env })
}

func (p *PendingRequest) cancel() {
	p.once.Do(func() { close(p.cancelCh) })
}

// CorrelationTable maps outstanding request ids to pending-response handles.
// It is one of the two shared mutable structures in the system (the other
// being worker inboxes) and is mutated only here.
type CorrelationTable struct {
	mu      sync.Mutex
	pending map[string]*PendingRequest
}

// NewCorrelationTable creates an empty correlation table.
func NewCorrelationTable() *CorrelationTable {
	return &CorrelationTable{pending: make(map[string]*PendingRequest)}
}

// Register creates a pending handle for a request id owned by the given role.
func (t *CorrelationTable) Register(id string, owner envelope.Role, deadline time.Time) *PendingRequest {
	p := &PendingRequest{
		id:       id,
		owner:    owner,
		deadline: deadline,
		replyCh:  make(chan *envelope.Envelope, 1),
		cancelCh: make(chan struct{}),
	}
	t.mu.Lock()
	t.pending[id] = p
	t.mu.Unlock()
	return p
}

// Resolve delivers a reply to the pending request matching correlationID.
// Returns false if no such request is outstanding (late or duplicate reply).
func (t *CorrelationTable) Resolve(correlationID string, env *envelope.Envelope) bool {
	t.mu.Lock()
	p, ok := t.pending[correlationID]
	if ok {
		delete(t.pending, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	p.resolve(env)
	return true
}

// Remove drops a stale pending entry (after a timeout) so a late reply can
// never resolve it.
func (t *CorrelationTable) Remove(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// CancelOwned cancels every pending request owned by role. Their callers see
// a cancellation, not a timeout.
func (t *CorrelationTable) CancelOwned(owner envelope.Role) {
	t.mu.Lock()
	var cancelled []*PendingRequest
	for id, p := range t.pending {
		if p.owner == owner {
			cancelled = append(cancelled, p)
			delete(t.pending, id)
		}
	}
	t.mu.Unlock()

	for _, p := range cancelled {
		p.cancel()
	}
}

// Len returns the number of outstanding requests.
func (t *CorrelationTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// LenOwned returns the number of outstanding requests owned by role.
func (t *CorrelationTable) LenOwned(owner envelope.Role) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.pending {
		if p.owner == owner {
			n++
		}
	}
	return n
}
