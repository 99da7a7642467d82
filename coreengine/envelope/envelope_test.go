package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestDefaults(t *testing.T) {
	env := NewRequest(RoleController, RoleRetriever, KindSearchRequest, SearchRequest{Query: "go"})

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, RoleController, env.Sender)
	assert.Equal(t, RoleRetriever, env.Recipient)
	assert.Equal(t, KindSearchRequest, env.Kind)
	assert.Empty(t, env.CorrelationID)
	assert.False(t, env.IsReply())
	assert.False(t, env.CreatedAt.IsZero())
	assert.Equal(t, 3, env.MaxRetries)
}

func TestNewRequestUniqueIDs(t *testing.T) {
	a := NewRequest(RoleController, RoleRetriever, KindSearchRequest, SearchRequest{})
	b := NewRequest(RoleController, RoleRetriever, KindSearchRequest, SearchRequest{})

	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewReplyCorrelation(t *testing.T) {
	req := NewRequest(RoleController, RoleRetriever, KindSearchRequest, SearchRequest{Query: "go"})
	reply := NewReply(req, KindSearchResponse, SearchResult{Results: []Document{}})

	assert.Equal(t, req.ID, reply.CorrelationID)
	assert.Equal(t, req.Recipient, reply.Sender)
	assert.Equal(t, req.Sender, reply.Recipient)
	assert.True(t, reply.IsReply())
	assert.NotEqual(t, req.ID, reply.ID)
	require.NoError(t, reply.Validate())
}

func TestNewErrorReply(t *testing.T) {
	req := NewRequest(RoleController, RoleSynthesizer, KindSynthesisRequest, SynthesisRequest{Query: "go"})
	reply := NewErrorReply(req, "backend unavailable")

	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, req.ID, reply.CorrelationID)
	payload, ok := reply.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "backend unavailable", payload.Error)
	assert.Equal(t, req.ID, payload.OriginalMessageID)
	require.NoError(t, reply.Validate())
}

func TestNewHeartbeatAddressing(t *testing.T) {
	env := NewHeartbeat(RoleRetriever, HeartbeatPayload{Status: "healthy"})

	assert.Equal(t, RoleRetriever, env.Sender)
	assert.Equal(t, RoleController, env.Recipient)
	assert.Equal(t, KindHeartbeat, env.Kind)
	require.NoError(t, env.Validate())
}

func TestValidateRejections(t *testing.T) {
	valid := func() *Envelope {
		return NewRequest(RoleController, RoleRetriever, KindSearchRequest, SearchRequest{Query: "go"})
	}

	tests := []struct {
		name    string
		mutate  func(*Envelope)
		wantErr string
	}{
		{
			name:    "missing id",
			mutate:  func(e *Envelope) { e.ID = "" },
			wantErr: "missing id",
		},
		{
			name:    "unknown sender",
			mutate:  func(e *Envelope) { e.Sender = Role("intruder") },
			wantErr: "unknown sender",
		},
		{
			name:    "unknown recipient",
			mutate:  func(e *Envelope) { e.Recipient = Role("nobody") },
			wantErr: "unknown recipient",
		},
		{
			name:    "unknown kind",
			mutate:  func(e *Envelope) { e.Kind = Kind("bogus") },
			wantErr: "unknown message kind",
		},
		{
			name:    "request with correlation id",
			mutate:  func(e *Envelope) { e.CorrelationID = "abc" },
			wantErr: "carries correlation_id",
		},
		{
			name:    "payload kind mismatch",
			mutate:  func(e *Envelope) { e.Payload = SynthesisRequest{} },
			wantErr: "does not match kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := valid()
			require.NoError(t, env.Validate())
			tt.mutate(env)
			err := env.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResponseKindPairs(t *testing.T) {
	tests := []struct {
		request  Kind
		response Kind
	}{
		{KindAnalysisRequest, KindAnalysisResponse},
		{KindSearchRequest, KindSearchResponse},
		{KindContentAnalysisRequest, KindContentAnalysisResponse},
		{KindSynthesisRequest, KindSynthesisResponse},
		{KindCategorizationRequest, KindCategorizationResponse},
	}

	for _, tt := range tests {
		t.Run(string(tt.request), func(t *testing.T) {
			assert.True(t, tt.request.IsRequest())
			resp, ok := tt.request.ResponseKind()
			require.True(t, ok)
			assert.Equal(t, tt.response, resp)
			assert.False(t, tt.response.IsRequest())
		})
	}
}

func TestStandaloneKinds(t *testing.T) {
	for _, k := range []Kind{KindError, KindHeartbeat} {
		assert.True(t, k.Valid(), string(k))
		assert.False(t, k.IsRequest(), string(k))
		_, ok := k.ResponseKind()
		assert.False(t, ok, string(k))
	}
}

func TestWorkerRolesExcludeController(t *testing.T) {
	roles := WorkerRoles()

	assert.Len(t, roles, 4)
	assert.NotContains(t, roles, RoleController)
	for _, r := range roles {
		assert.True(t, r.Valid(), string(r))
	}
}
