// Package envelope defines the message envelope exchanged between workers.
//
// An Envelope is the immutable unit of communication: identity, addressing,
// a kind tag, a typed payload, and correlation/retry bookkeeping. The Role
// and Kind enumerations are closed; handlers are dispatched by Kind, and
// replies are matched to requests strictly by CorrelationID.
package envelope

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Worker Roles
// =============================================================================

// Role identifies a worker (or the controller) as a message endpoint.
type Role string

const (
	// RoleController is the pipeline controller's own mailbox address.
	RoleController Role = "controller"
	// RoleQueryAnalyzer handles query normalization and keyword expansion.
	RoleQueryAnalyzer Role = "query_analyzer"
	// RoleRetriever handles document search requests.
	RoleRetriever Role = "retriever"
	// RoleSynthesizer handles content analysis and answer generation.
	RoleSynthesizer Role = "synthesizer"
	// RoleCategorizer handles document categorization and grouping.
	RoleCategorizer Role = "categorizer"
)

// WorkerRoles returns the roles that run as workers (excludes the controller).
func WorkerRoles() []Role {
	return []Role{RoleQueryAnalyzer, RoleRetriever, RoleSynthesizer, RoleCategorizer}
}

// Valid returns true for a role in the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleController, RoleQueryAnalyzer, RoleRetriever, RoleSynthesizer, RoleCategorizer:
		return true
	}
	return false
}

// =============================================================================
// Message Kinds
// =============================================================================

// Kind is the closed set of message tags. Each request kind has exactly one
// response kind; error and heartbeat stand alone.
type Kind string

const (
	KindAnalysisRequest         Kind = "analysis_request"
	KindAnalysisResponse        Kind = "analysis_response"
	KindSearchRequest           Kind = "search_request"
	KindSearchResponse          Kind = "search_response"
	KindContentAnalysisRequest  Kind = "content_analysis_request"
	KindContentAnalysisResponse Kind = "content_analysis_response"
	KindSynthesisRequest        Kind = "synthesis_request"
	KindSynthesisResponse       Kind = "synthesis_response"
	KindCategorizationRequest   Kind = "categorization_request"
	KindCategorizationResponse  Kind = "categorization_response"
	KindError                   Kind = "error"
	KindHeartbeat               Kind = "heartbeat"
)

var responseKinds = map[Kind]Kind{
	KindAnalysisRequest:        KindAnalysisResponse,
	KindSearchRequest:          KindSearchResponse,
	KindContentAnalysisRequest: KindContentAnalysisResponse,
	KindSynthesisRequest:       KindSynthesisResponse,
	KindCategorizationRequest:  KindCategorizationResponse,
}

// Valid returns true for a kind in the closed set.
func (k Kind) Valid() bool {
	if _, ok := responseKinds[k]; ok {
		return true
	}
	switch k {
	case KindAnalysisResponse, KindSearchResponse, KindContentAnalysisResponse,
		KindSynthesisResponse, KindCategorizationResponse, KindError, KindHeartbeat:
		return true
	}
	return false
}

// IsRequest returns true if the kind expects a correlated reply.
func (k Kind) IsRequest() bool {
	_, ok := responseKinds[k]
	return ok
}

// ResponseKind returns the reply kind paired with a request kind.
func (k Kind) ResponseKind() (Kind, bool) {
	r, ok := responseKinds[k]
	return r, ok
}

// =============================================================================
// Envelope
// =============================================================================

// Envelope is the addressed, typed unit of inter-worker communication.
//
// Invariants:
//   - A request has CorrelationID == "".
//   - A reply's CorrelationID equals the ID of the request it answers.
//   - Priority is carried but never used to reorder delivery (reserved).
type Envelope struct {
	ID            string    `json:"id"`
	Sender        Role      `json:"sender"`
	Recipient     Role      `json:"recipient"`
	Kind          Kind      `json:"kind"`
	Payload       any       `json:"payload"`
	CreatedAt     time.Time `json:"created_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Priority      int       `json:"priority"`
	RetryCount    int       `json:"retry_count"`
	MaxRetries    int       `json:"max_retries"`
}

// NewRequest creates a request envelope with a fresh id.
func NewRequest(sender, recipient Role, kind Kind, payload any) *Envelope {
	return &Envelope{
		ID:         uuid.New().String(),
		Sender:     sender,
		Recipient:  recipient,
		Kind:       kind,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
		Priority:   1,
		MaxRetries: 3,
	}
}

// NewReply creates a reply to req, addressed back to its sender and
// correlated by the request id.
func NewReply(req *Envelope, kind Kind, payload any) *Envelope {
	reply := NewRequest(req.Recipient, req.Sender, kind, payload)
	reply.CorrelationID = req.ID
	return reply
}

// NewErrorReply creates an error reply carrying the failure text and the
// original request id in its payload.
func NewErrorReply(req *Envelope, errText string) *Envelope {
	return NewReply(req, KindError, ErrorPayload{
		Error:             errText,
		OriginalMessageID: req.ID,
	})
}

// NewHeartbeat creates a heartbeat envelope addressed to the controller.
func NewHeartbeat(sender Role, payload HeartbeatPayload) *Envelope {
	return NewRequest(sender, RoleController, KindHeartbeat, payload)
}

// IsReply returns true if the envelope answers a prior request.
func (e *Envelope) IsReply() bool {
	return e.CorrelationID != ""
}

// Validate checks addressing, kind membership, payload shape, and the
// request/reply correlation invariant. Called at router ingress so malformed
// envelopes fail fast instead of deep inside a handler.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope missing id")
	}
	if !e.Sender.Valid() {
		return fmt.Errorf("unknown sender role %q", e.Sender)
	}
	if !e.Recipient.Valid() {
		return fmt.Errorf("unknown recipient role %q", e.Recipient)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown message kind %q", e.Kind)
	}
	if e.Kind.IsRequest() && e.CorrelationID != "" {
		return fmt.Errorf("request %s carries correlation_id %s", e.ID, e.CorrelationID)
	}
	return ValidatePayload(e.Kind, e.Payload)
}
