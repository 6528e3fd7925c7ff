package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/SisyphusSQ/mongo-top-tool/utils/retry"
)

const (
	// display names longer than this break column alignment
	maxNameLen = 13

	retryAttempts = 10
	retryBackoff  = 100 * time.Millisecond
)

// Server owns one monitored mongod's session: the connection, the retrying
// executor around its admin commands and the rate cache that carries the
// previous poll's counters. Identity is immutable after New.
type Server struct {
	name  string
	addr  string
	conn  *Conn
	rates *RateCache
}

func NewServer(name, addr, uri string) (*Server, error) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	conn, err := NewMongoConn(uri)
	if err != nil {
		return nil, err
	}

	return &Server{
		name:  name,
		addr:  addr,
		conn:  conn,
		rates: NewRateCache(),
	}, nil
}

func (s *Server) Name() string { return s.name }
func (s *Server) Addr() string { return s.addr }

func (s *Server) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// execute retries fn on transient connectivity failures, up to 10 attempts
// with a fixed 100ms pause. Anything that still fails surfaces as an
// ExecuteFailure so the polling loop can drop this server for the cycle.
func (s *Server) execute(op string, fn retry.Func) error {
	if err := retry.DoFixed(fn, retryAttempts, retryBackoff, IsTransientError); err != nil {
		return &ExecuteFailure{Server: s.name, Op: op, Err: err}
	}
	return nil
}

// Status polls serverStatus and turns the monotonic counters into per-second
// rates against the previous poll.
func (s *Server) Status(ctx context.Context) (*StatusSnapshot, error) {
	var raw ServerStatusRaw
	err := s.execute("serverStatus", func() error {
		r, err := s.conn.ServerStatus(ctx)
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.rates.Observe(now)

	return &StatusSnapshot{
		Server: s.name,
		Taken:  now,

		QPS:      s.rates.Rate("qps", float64(raw.OpcounterTotal())),
		Flushes:  s.rates.Rate("flushes", float64(raw.BackgroundFlushing.Flushes)),
		BytesIn:  s.rates.Rate("bytesIn", float64(raw.Network.BytesIn)),
		BytesOut: s.rates.Rate("bytesOut", float64(raw.Network.BytesOut)),

		ActiveClients: raw.GlobalLock.ActiveClients.Total,
		CurrentQueue:  raw.GlobalLock.CurrentQueue.Total,
		CurrentConn:   raw.Connections.Current,
		TotalConn:     raw.Connections.Current + raw.Connections.Available,
		ResidentMem:   raw.Mem.Resident * 1_000_000,
		MappedMem:     raw.Mem.Mapped * 1_000_000,
	}, nil
}

// ReplicaSetStatus returns the raw replSetGetStatus view of this member.
func (s *Server) ReplicaSetStatus(ctx context.Context) (*RsStatus, error) {
	var st RsStatus
	err := s.execute("replSetGetStatus", func() error {
		r, err := s.conn.RsStatus(ctx)
		if err != nil {
			return err
		}
		st = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Server) ReplicationSource(ctx context.Context) (*ReplSource, error) {
	var src *ReplSource
	err := s.execute("replicationSource", func() error {
		r, err := s.conn.ReplicationSource(ctx)
		if err != nil {
			return err
		}
		src = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// CurrentOperations lists in-flight operations, optionally hiding replication
// noise. One pass per call; records are rebuilt wholesale every poll.
func (s *Server) CurrentOperations(ctx context.Context, hideReplication bool) ([]InProg, error) {
	var cur CurrentOp
	err := s.execute("currentOp", func() error {
		r, err := s.conn.CurrentOp(ctx)
		if err != nil {
			return err
		}
		cur = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filterReplicationOps(cur.Inprog, hideReplication), nil
}

func (s *Server) Explain(ctx context.Context, db, coll string, filter bson.M, sort bson.D) (bson.M, error) {
	var out bson.M
	err := s.execute("explain", func() error {
		r, err := s.conn.Explain(ctx, db, coll, filter, sort)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) KillOperation(ctx context.Context, opid int64) error {
	return s.execute("killOp", func() error {
		return s.conn.KillOp(ctx, opid)
	})
}

// filterReplicationOps drops replication traffic from the operation list:
// oplog tailing reads anywhere, and on a secondary the leading contiguous run
// of operations with no namespace or the legacy replication-source namespace.
// Once a namespace-bearing non-replication operation shows up, the rest of
// the list is real work and passes through.
func filterReplicationOps(inprog []InProg, hide bool) []InProg {
	out := make([]InProg, 0, len(inprog))
	leading := true
	for _, op := range inprog {
		if hide {
			if op.Op == "getmore" && strings.Contains(op.Ns, "local.oplog.") {
				continue
			}
			if leading && op.Op != "" && (op.Ns == "" || op.Ns == "local.sources") {
				continue
			}
		}
		if op.Ns != "" && op.Ns != "local.sources" {
			leading = false
		}
		out = append(out, op)
	}
	return out
}

// Payload normalizes the operation's query document: modern servers report it
// under "command", older ones under "query", and either may arrive as a
// shell-ish string.
func (op *InProg) Payload() (bson.M, string) {
	if m, opaque := AsDocument(op.Query); m != nil || opaque != "" {
		return m, opaque
	}
	return AsDocument(op.Command)
}
