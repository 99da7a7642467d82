package agentcomm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

func TestCorrelationTableResolve(t *testing.T) {
	table := NewCorrelationTable()

	req := envelope.NewRequest(envelope.RoleController, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "test"})
	pending := table.Register(req.ID, envelope.RoleController, time.Now().Add(time.Second))
	require.Equal(t, 1, table.Len())

	reply := envelope.NewReply(req, envelope.KindSearchResponse, envelope.SearchResult{})
	ok := table.Resolve(reply.CorrelationID, reply)
	assert.True(t, ok)
	assert.Equal(t, 0, table.Len(), "resolved entry must be removed")

	select {
	case got := <-pending.Reply():
		assert.Equal(t, reply.ID, got.ID)
	default:
		t.Fatal("reply channel should hold the resolved envelope")
	}
}

func TestCorrelationTableSecondReplyIsNoOp(t *testing.T) {
	table := NewCorrelationTable()

	req := envelope.NewRequest(envelope.RoleController, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "test"})
	table.Register(req.ID, envelope.RoleController, time.Now().Add(time.Second))

	reply := envelope.NewReply(req, envelope.KindSearchResponse, envelope.SearchResult{})
	require.True(t, table.Resolve(reply.CorrelationID, reply))

	// Duplicate reply for the same correlation id: silently discarded.
	assert.False(t, table.Resolve(reply.CorrelationID, reply))
}

func TestCorrelationTableResolveUnknownID(t *testing.T) {
	table := NewCorrelationTable()

	req := envelope.NewRequest(envelope.RoleController, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "test"})
	reply := envelope.NewReply(req, envelope.KindSearchResponse, envelope.SearchResult{})

	assert.False(t, table.Resolve(reply.CorrelationID, reply))
}

func TestCorrelationTableCancelOwned(t *testing.T) {
	table := NewCorrelationTable()

	mine := envelope.NewRequest(envelope.RoleController, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "a"})
	theirs := envelope.NewRequest(envelope.RoleSynthesizer, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "b"})

	pMine := table.Register(mine.ID, envelope.RoleController, time.Now().Add(time.Second))
	pTheirs := table.Register(theirs.ID, envelope.RoleSynthesizer, time.Now().Add(time.Second))
	require.Equal(t, 2, table.Len())

	table.CancelOwned(envelope.RoleController)

	select {
	case <-pMine.Cancelled():
	default:
		t.Fatal("owned request should be cancelled")
	}
	select {
	case <-pTheirs.Cancelled():
		t.Fatal("other owner's request must survive")
	default:
	}
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, table.LenOwned(envelope.RoleSynthesizer))
	assert.Equal(t, 0, table.LenOwned(envelope.RoleController))
}

func TestPendingRequestCancelAfterResolveIsNoOp(t *testing.T) {
	table := NewCorrelationTable()

	req := envelope.NewRequest(envelope.RoleController, envelope.RoleRetriever,
		envelope.KindSearchRequest, envelope.SearchRequest{Query: "test"})
	pending := table.Register(req.ID, envelope.RoleController, time.Now().Add(time.Second))

	reply := envelope.NewReply(req, envelope.KindSearchResponse, envelope.SearchResult{})
	require.True(t, table.Resolve(reply.CorrelationID, reply))

	// Settles exactly once: a late cancel cannot clobber the reply.
	pending.cancel()

	select {
	case got := <-pending.Reply():
		assert.Equal(t, reply.ID, got.ID)
	default:
		t.Fatal("resolved reply should still be observable")
	}
}
