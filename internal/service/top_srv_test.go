package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/SisyphusSQ/mongo-top-tool/internal/config"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/log"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/mongo"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/render"
)

func TestMain(m *testing.M) {
	log.New(false)
	os.Exit(m.Run())
}

type fakePoller struct {
	name string

	statusErr   error
	statusCalls int

	ops      []mongo.InProg
	opsErr   error
	lastHide bool

	explainOut   bson.M
	explainCalls int

	killed []int64
	closed bool
}

func (p *fakePoller) Name() string { return p.name }
func (p *fakePoller) Addr() string { return p.name + ":27017" }

func (p *fakePoller) Status(_ context.Context) (*mongo.StatusSnapshot, error) {
	p.statusCalls++
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	return &mongo.StatusSnapshot{Server: p.name, QPS: 100}, nil
}

func (p *fakePoller) ReplicationSource(_ context.Context) (*mongo.ReplSource, error) {
	return nil, nil
}

func (p *fakePoller) ReplicaSetStatus(_ context.Context) (*mongo.RsStatus, error) {
	return nil, fmt.Errorf("not a replica set member")
}

func (p *fakePoller) CurrentOperations(_ context.Context, hide bool) ([]mongo.InProg, error) {
	p.lastHide = hide
	return p.ops, p.opsErr
}

func (p *fakePoller) Explain(_ context.Context, _, _ string, _ bson.M, _ bson.D) (bson.M, error) {
	p.explainCalls++
	return p.explainOut, nil
}

func (p *fakePoller) KillOperation(_ context.Context, opid int64) error {
	p.killed = append(p.killed, opid)
	return nil
}

func (p *fakePoller) Close() { p.closed = true }

// fakeScreen plays back a scripted run: keys consumed one at a time by
// WaitKey/ReadKey, prompt answers in order, everything printed captured.
type fakeScreen struct {
	keys    []byte
	prompts [][]string

	printed   []string
	refreshes int
}

func (s *fakeScreen) Refresh(_ []*render.Block) { s.refreshes++ }

func (s *fakeScreen) nextKey() byte {
	if len(s.keys) == 0 {
		return 'q'
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k
}

func (s *fakeScreen) WaitKey(_ time.Duration) (byte, bool) { return s.nextKey(), true }
func (s *fakeScreen) ReadKey() (byte, error)               { return s.nextKey(), nil }

func (s *fakeScreen) Prompt(_ ...string) ([]string, error) {
	if len(s.prompts) == 0 {
		return nil, nil
	}
	v := s.prompts[0]
	s.prompts = s.prompts[1:]
	return v, nil
}

func (s *fakeScreen) Print(format string, args ...interface{}) {
	s.printed = append(s.printed, fmt.Sprintf(format, args...))
}

func (s *fakeScreen) outputContains(substr string) bool {
	for _, p := range s.printed {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func secs(n int64) *int64 { return &n }

func newTestSrv(screen Screen, chosen map[string][]Poller) *TopSrvImpl {
	cfg := &config.TopConfig{Interval: time.Second}
	return NewTopSrv(context.Background(), cfg, screen, chosen, &atomic.Bool{}).(*TopSrvImpl)
}

func TestRun_QuitImmediately(t *testing.T) {
	p := &fakePoller{name: "db01"}
	screen := &fakeScreen{keys: []byte{'q'}}
	srv := newTestSrv(screen, map[string][]Poller{"status": {p}})

	require.NoError(t, srv.Run())
	assert.Equal(t, 1, screen.refreshes)
	assert.Equal(t, 1, p.statusCalls)
}

func TestRun_FailingServerDroppedFromView(t *testing.T) {
	good := &fakePoller{name: "db01"}
	bad := &fakePoller{
		name:      "db02",
		statusErr: &mongo.ExecuteFailure{Server: "db02", Op: "serverStatus", Err: fmt.Errorf("down")},
	}
	screen := &fakeScreen{keys: []byte{0, 'q'}} // two cycles, ignored key first
	srv := newTestSrv(screen, map[string][]Poller{"status": {good, bad}})

	require.NoError(t, srv.Run())

	// db02 polled on the first cycle only, db01 on both
	assert.Equal(t, 2, good.statusCalls)
	assert.Equal(t, 1, bad.statusCalls)
	require.Len(t, srv.chosen["status"], 1)
	assert.Equal(t, "db01", srv.chosen["status"][0].Name())
}

func TestRun_KillMatchingOperation(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 42, Op: "query", Ns: "app.users", SecsRunning: secs(7), Query: bson.D{{Key: "name", Value: "ann"}}},
			{Opid: 43, Op: "query", Ns: "app.users", SecsRunning: secs(1), Query: bson.D{{Key: "name", Value: "bob"}}},
		},
	}
	screen := &fakeScreen{
		keys:    []byte{'k', 'q'},
		prompts: [][]string{{"db01", "42"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{"operations": {p}})

	require.NoError(t, srv.Run())
	assert.Equal(t, []int64{42}, p.killed)
}

func TestRun_KillUnknownSelectionReportsInvalid(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 42, Op: "query", Ns: "app.users", SecsRunning: secs(7)},
		},
	}
	screen := &fakeScreen{
		keys:    []byte{'k', 'q'},
		prompts: [][]string{{"db01", "999"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{"operations": {p}})

	require.NoError(t, srv.Run())
	assert.Empty(t, p.killed)
	assert.True(t, screen.outputContains("Invalid operation."))
}

func TestRun_BatchKillOverThreshold(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 1, Op: "query", Ns: "app.users", SecsRunning: secs(10)},
			{Opid: 2, Op: "query", Ns: "app.users", SecsRunning: secs(5)},
			{Opid: 3, Op: "query", Ns: "app.users", SecsRunning: secs(3)},
			{Opid: 4, Op: "query", Ns: "app.users"}, // unknown duration
		},
	}
	screen := &fakeScreen{
		keys:    []byte{'K', 'q'},
		prompts: [][]string{{"5"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{"operations": {p}})

	require.NoError(t, srv.Run())
	assert.Equal(t, []int64{1}, p.killed) // strictly greater than 5 only
}

func TestRun_ExplainWithoutNamespaceRefused(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 42, Op: "none", SecsRunning: secs(7)},
		},
	}
	screen := &fakeScreen{
		keys:    []byte{'e', 'q'},
		prompts: [][]string{{"db01", "42"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{
		"operations":            {p},
		"replicationOperations": {p},
	})

	require.NoError(t, srv.Run())
	assert.Equal(t, 0, p.explainCalls)
	assert.True(t, screen.outputContains("Only queries with namespace can be explained."))
}

func TestRun_ExplainPrintsPlan(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 42, Op: "query", Ns: "app.users", SecsRunning: secs(7), Query: bson.D{{Key: "name", Value: "ann"}}},
		},
		explainOut: bson.M{
			"queryPlanner": bson.M{
				"winningPlan": bson.M{
					"stage":      "FETCH",
					"inputStage": bson.M{"stage": "IXSCAN", "indexName": "name_1"},
				},
			},
			"executionStats": bson.M{
				"executionTimeMillis": int32(12),
				"nReturned":           int32(3),
				"totalKeysExamined":   int32(3),
				"totalDocsExamined":   int32(3),
			},
		},
	}
	screen := &fakeScreen{
		keys:    []byte{'e', 'q'},
		prompts: [][]string{{"db01", "42"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{"operations": {p}})

	require.NoError(t, srv.Run())
	assert.Equal(t, 1, p.explainCalls)
	assert.True(t, screen.outputContains("Stage: FETCH"))
	assert.True(t, screen.outputContains("Index: name_1"))
	assert.True(t, screen.outputContains("Milliseconds: 12"))
}

func TestRun_ReplicationOperationsChoiceShowsNoise(t *testing.T) {
	shown := &fakePoller{name: "db01"}
	hidden := &fakePoller{name: "db02"}
	screen := &fakeScreen{keys: []byte{'q'}}
	srv := newTestSrv(screen, map[string][]Poller{
		"operations":            {shown, hidden},
		"replicationOperations": {shown},
	})

	require.NoError(t, srv.Run())
	assert.False(t, shown.lastHide)
	assert.True(t, hidden.lastHide)
}

func TestRun_CommandModeChain(t *testing.T) {
	p := &fakePoller{
		name: "db01",
		ops: []mongo.InProg{
			{Opid: 42, Op: "query", Ns: "app.users", SecsRunning: secs(7)},
			{Opid: 43, Op: "query", Ns: "app.users", SecsRunning: secs(9)},
		},
	}
	// two kills back to back without leaving command mode, then quit
	screen := &fakeScreen{
		keys:    []byte{'k', 'k', 'q'},
		prompts: [][]string{{"db01", "42"}, {"db01", "43"}},
	}
	srv := newTestSrv(screen, map[string][]Poller{"operations": {p}})

	require.NoError(t, srv.Run())
	assert.Equal(t, []int64{42, 43}, p.killed)
}

func TestClose_ClosesEveryServer(t *testing.T) {
	a := &fakePoller{name: "db01"}
	b := &fakePoller{name: "db02"}
	srv := newTestSrv(&fakeScreen{}, map[string][]Poller{
		"status":     {a, b},
		"operations": {a},
	})

	srv.Close()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
