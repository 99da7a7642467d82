package agentcomm

import (
	"fmt"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// =============================================================================
// TRANSPORT ERRORS
// =============================================================================

// MessageTimeoutError is returned when no correlated reply arrives before the
// request deadline. Retryable.
type MessageTimeoutError struct {
	MessageID string
	Recipient envelope.Role
	Timeout   time.Duration
}

func (e *MessageTimeoutError) Error() string {
	return fmt.Sprintf("message %s to %s timed out after %s", e.MessageID, e.Recipient, e.Timeout)
}

// NewMessageTimeoutError creates a new MessageTimeoutError.
func NewMessageTimeoutError(messageID string, recipient envelope.Role, timeout time.Duration) *MessageTimeoutError {
	return &MessageTimeoutError{MessageID: messageID, Recipient: recipient, Timeout: timeout}
}

// WorkerUnavailableError is returned when the addressed worker is not
// attached to the router or not running. Retryable.
type WorkerUnavailableError struct {
	Role   envelope.Role
	Reason string
}

func (e *WorkerUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("worker %s unavailable: %s", e.Role, e.Reason)
	}
	return fmt.Sprintf("worker %s unavailable", e.Role)
}

// NewWorkerUnavailableError creates a new WorkerUnavailableError.
func NewWorkerUnavailableError(role envelope.Role, reason string) *WorkerUnavailableError {
	return &WorkerUnavailableError{Role: role, Reason: reason}
}

// RequestCancelledError is returned to callers whose pending requests were
// cancelled because the owning worker stopped. Distinct from a timeout.
type RequestCancelledError struct {
	MessageID string
	Owner     envelope.Role
}

func (e *RequestCancelledError) Error() string {
	return fmt.Sprintf("request %s cancelled: worker %s stopped", e.MessageID, e.Owner)
}

// NewRequestCancelledError creates a new RequestCancelledError.
func NewRequestCancelledError(messageID string, owner envelope.Role) *RequestCancelledError {
	return &RequestCancelledError{MessageID: messageID, Owner: owner}
}

// =============================================================================
// HANDLER ERRORS
// =============================================================================

// HandlerError carries a remote handler failure reported through an error
// reply envelope. Transport succeeded; the worker's own logic failed.
type HandlerError struct {
	Worker            envelope.Role
	Message           string
	OriginalMessageID string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler on %s failed: %s", e.Worker, e.Message)
}

// NewHandlerError creates a HandlerError from an error reply.
func NewHandlerError(worker envelope.Role, payload envelope.ErrorPayload) *HandlerError {
	return &HandlerError{
		Worker:            worker,
		Message:           payload.Error,
		OriginalMessageID: payload.OriginalMessageID,
	}
}

// HandlerAlreadyRegisteredError is returned when registering a second handler
// for the same message kind on one worker.
type HandlerAlreadyRegisteredError struct {
	Role envelope.Role
	Kind envelope.Kind
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("handler already registered on %s for %s", e.Role, e.Kind)
}

// NewHandlerAlreadyRegisteredError creates a new HandlerAlreadyRegisteredError.
func NewHandlerAlreadyRegisteredError(role envelope.Role, kind envelope.Kind) *HandlerAlreadyRegisteredError {
	return &HandlerAlreadyRegisteredError{Role: role, Kind: kind}
}
