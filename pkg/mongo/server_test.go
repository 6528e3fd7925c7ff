package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func testServer() *Server {
	return &Server{name: "db01", addr: "10.0.0.1:27017", rates: NewRateCache()}
}

func TestExecute_TransientRetriesThenSucceeds(t *testing.T) {
	s := testServer()
	calls := 0
	err := s.execute("serverStatus", func() error {
		calls++
		if calls < 4 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestExecute_TransientExhaustionBecomesExecuteFailure(t *testing.T) {
	s := testServer()
	calls := 0
	err := s.execute("serverStatus", func() error {
		calls++
		return errors.New("no reachable servers")
	})

	require.Error(t, err)
	assert.Equal(t, 10, calls)
	assert.True(t, IsExecuteFailure(err))

	var ef *ExecuteFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "db01", ef.Server)
	assert.Equal(t, "serverStatus", ef.Op)
}

func TestExecute_OperationFailureNotRetried(t *testing.T) {
	s := testServer()
	calls := 0
	err := s.execute("killOp", func() error {
		calls++
		return mongo.CommandError{Code: 13, Message: "unauthorized"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsExecuteFailure(err))
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "keyword match", err: errors.New("read tcp: connection refused"), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "stepdown code", err: mongo.CommandError{Code: 189}, want: true},
		{name: "auth failure code", err: mongo.CommandError{Code: 18}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func secs(n int64) *int64 { return &n }

func TestFilterReplicationOps(t *testing.T) {
	inprog := []InProg{
		{Opid: 1, Op: "getmore", Ns: "local.oplog.rs"},
		{Opid: 2, Op: "query", Ns: ""},
		{Opid: 3, Op: "query", Ns: "local.sources"},
		{Opid: 4, Op: "query", Ns: "app.users", SecsRunning: secs(3)},
		{Opid: 5, Op: "query", Ns: ""},
	}

	got := filterReplicationOps(inprog, true)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].Opid)
	// after a real namespaced operation, empty-namespace ops are no longer
	// treated as replication noise
	assert.Equal(t, int64(5), got[1].Opid)
}

func TestFilterReplicationOps_Disabled(t *testing.T) {
	inprog := []InProg{
		{Opid: 1, Op: "getmore", Ns: "local.oplog.rs"},
		{Opid: 2, Op: "query", Ns: ""},
	}

	got := filterReplicationOps(inprog, false)
	assert.Len(t, got, 2)
}

func TestInProgPayload(t *testing.T) {
	op := InProg{Query: bson.D{{Key: "find", Value: "users"}}}
	m, opaque := op.Payload()
	require.Empty(t, opaque)
	assert.Equal(t, "users", m["find"])

	op = InProg{Command: bson.D{{Key: "aggregate", Value: "events"}}}
	m, opaque = op.Payload()
	require.Empty(t, opaque)
	assert.Equal(t, "events", m["aggregate"])

	op = InProg{Query: "getmore local.oplog.rs"}
	m, opaque = op.Payload()
	assert.Nil(t, m)
	assert.Equal(t, "getmore local.oplog.rs", opaque)

	op = InProg{}
	m, opaque = op.Payload()
	assert.Nil(t, m)
	assert.Empty(t, opaque)
}
