package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/SisyphusSQ/mongo-top-tool/internal/config"
	"github.com/SisyphusSQ/mongo-top-tool/internal/model"
	l "github.com/SisyphusSQ/mongo-top-tool/pkg/log"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/mongo"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/progress"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/render"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/term"
)

var _ TopSrv = (*TopSrvImpl)(nil)

var _ Poller = (*mongo.Server)(nil)
var _ Screen = (*term.Console)(nil)

// Poller is one monitored server as the dashboard sees it.
type Poller interface {
	Name() string
	Addr() string
	Status(ctx context.Context) (*mongo.StatusSnapshot, error)
	ReplicationSource(ctx context.Context) (*mongo.ReplSource, error)
	ReplicaSetStatus(ctx context.Context) (*mongo.RsStatus, error)
	CurrentOperations(ctx context.Context, hideReplication bool) ([]mongo.InProg, error)
	Explain(ctx context.Context, db, coll string, filter bson.M, sort bson.D) (bson.M, error)
	KillOperation(ctx context.Context, opid int64) error
	Close()
}

// Screen is the terminal surface the dashboard draws on and reads keys from.
type Screen interface {
	Refresh(blocks []*render.Block)
	WaitKey(d time.Duration) (byte, bool)
	ReadKey() (byte, error)
	Prompt(fields ...string) ([]string, error)
	Print(format string, args ...interface{})
}

type TopSrv interface {
	Run() error
	Close()
}

// TopSrvImpl drives the dashboard: refresh every enabled view, draw the
// blocks, wait for a key, run the requested action, repeat until 'q' or an
// interrupt. A server whose poll ends in ExecuteFailure is dropped from that
// view for the rest of the run.
type TopSrvImpl struct {
	ctx    context.Context
	cfg    *config.TopConfig
	screen Screen

	cancelled *atomic.Bool

	chosen map[string][]Poller
	byName map[string]Poller

	statusBlock   *render.Block
	replInfoBlock *render.Block
	replSetBlock  *render.Block
	opBlock       *render.Block
}

func NewTopSrv(ctx context.Context, cfg *config.TopConfig, screen Screen,
	chosen map[string][]Poller, cancelled *atomic.Bool) TopSrv {
	t := &TopSrvImpl{
		ctx:       ctx,
		cfg:       cfg,
		screen:    screen,
		cancelled: cancelled,
		chosen:    chosen,
		byName:    make(map[string]Poller),

		statusBlock:   render.NewBlock(model.StatusHeaders...),
		replInfoBlock: render.NewBlock(model.ReplicationInfoHeaders...),
		replSetBlock:  render.NewBlock(model.ReplicaSetHeaders...),
		opBlock:       render.NewBlock(model.OperationHeaders...),
	}
	for _, servers := range chosen {
		for _, p := range servers {
			t.byName[p.Name()] = p
		}
	}
	return t
}

func (t *TopSrvImpl) Run() error {
	for !t.cancelled.Load() {
		t.refresh()

		key, ok := t.screen.WaitKey(t.cfg.Interval)
		if !ok {
			continue
		}

		// command mode: keep taking e/k actions until some other key
		for key == 'e' || key == 'k' {
			if key == 'e' {
				t.explainAction()
			} else {
				t.killAction()
			}
			next, err := t.screen.ReadKey()
			if err != nil {
				return nil
			}
			key = next
		}

		switch key {
		case 'q':
			return nil
		case 'K':
			t.batchKillAction()
		}
	}
	return nil
}

func (t *TopSrvImpl) Close() {
	for _, p := range t.byName {
		p.Close()
	}
}

func (t *TopSrvImpl) refresh() {
	blocks := make([]*render.Block, 0, 4)
	if len(t.chosen["status"]) > 0 {
		t.statusBlock.Reset(t.statusRows())
		blocks = append(blocks, t.statusBlock)
	}
	if len(t.chosen["replicationInfo"]) > 0 {
		t.replInfoBlock.Reset(t.replicationInfoRows())
		blocks = append(blocks, t.replInfoBlock)
	}
	if len(t.chosen["replicaSet"]) > 0 {
		t.replSetBlock.Reset(t.replicaSetRows())
		blocks = append(blocks, t.replSetBlock)
	}
	if len(t.chosen["operations"]) > 0 {
		t.opBlock.Reset(t.operationRows())
		blocks = append(blocks, t.opBlock)
	}
	t.screen.Refresh(blocks)
}

// pollEach runs fn once per server of the view, in parallel with a bounded
// limit. A server whose fn errored is removed from the view; the caller's
// result slots keep the pre-removal indexes, failed ones left empty.
func (t *TopSrvImpl) pollEach(view string, fn func(ctx context.Context, idx int, p Poller) error) {
	servers := t.chosen[view]
	if len(servers) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(8)
	failed := make([]error, len(servers))
	for i, p := range servers {
		i, p := i, p
		g.Go(func() error {
			failed[i] = fn(t.ctx, i, p)
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]Poller, 0, len(servers))
	for i, p := range servers {
		if err := failed[i]; err != nil {
			l.Logger.Debugf("dropping %s from %s view: %v", p.Name(), view, err)
			continue
		}
		kept = append(kept, p)
	}
	t.chosen[view] = kept
}

func (t *TopSrvImpl) statusRows() []render.Row {
	results := make([]*model.StatusRow, len(t.chosen["status"]))
	t.pollEach("status", func(ctx context.Context, idx int, p Poller) error {
		snap, err := p.Status(ctx)
		if err != nil {
			return err
		}
		results[idx] = model.NewStatusRow(snap)
		return nil
	})

	rows := make([]render.Row, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, r)
		}
	}
	return rows
}

var errNoReplicationSource = fmt.Errorf("no replication source")

func (t *TopSrvImpl) replicationInfoRows() []render.Row {
	results := make([]*model.ReplicationInfoRow, len(t.chosen["replicationInfo"]))
	t.pollEach("replicationInfo", func(ctx context.Context, idx int, p Poller) error {
		src, err := p.ReplicationSource(ctx)
		if err != nil {
			return err
		}
		if src == nil {
			return errNoReplicationSource
		}
		results[idx] = &model.ReplicationInfoRow{
			Server:   p.Name(),
			Source:   src.Host,
			SyncedTo: time.Unix(int64(src.SyncedTo.T), 0),
		}
		return nil
	})

	rows := make([]render.Row, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, r)
		}
	}
	return rows
}

func (t *TopSrvImpl) replicaSetRows() []render.Row {
	views := make([]*model.ReplicaSet, len(t.chosen["replicaSet"]))
	t.pollEach("replicaSet", func(ctx context.Context, idx int, p Poller) error {
		st, err := p.ReplicaSetStatus(ctx)
		if err != nil {
			return err
		}
		views[idx] = buildReplicaSet(p, st)
		return nil
	})

	// merge the per-server views of the same set, first discovery fixes
	// the member order
	var sets []*model.ReplicaSet
	for _, v := range views {
		if v == nil {
			continue
		}
		merged := false
		for _, s := range sets {
			if s.Name == v.Name {
				s.Revise(v)
				merged = true
				break
			}
		}
		if !merged {
			sets = append(sets, v)
		}
	}

	var rows []render.Row
	for _, s := range sets {
		for _, m := range s.Members {
			rows = append(rows, m)
		}
	}
	return rows
}

// buildReplicaSet turns one server's replSetGetStatus into its view of the
// set. Arbiters carry no data worth a row; lag is measured against the
// reporting server's clock.
func buildReplicaSet(p Poller, st *mongo.RsStatus) *model.ReplicaSet {
	rs := model.NewReplicaSet(st.Set, st.MyState)
	for _, m := range st.Members {
		if m.StateStr == "ARBITER" {
			continue
		}

		member := &model.Member{
			Host:      m.Name,
			State:     strings.ToLower(m.StateStr),
			Lag:       st.Date.Sub(m.OptimeDate),
			Increment: int64(m.Optime.Ts.I),
			Ping:      m.PingMs,
		}
		if m.Uptime != nil {
			d := time.Duration(*m.Uptime) * time.Second
			member.Uptime = &d
		}
		if m.Name == p.Addr() {
			member.Server = p
		}
		rs.AddMember(member)
	}
	return rs
}

func (t *TopSrvImpl) operationRows() []render.Row {
	showRepl := make(map[string]bool)
	for _, p := range t.chosen["replicationOperations"] {
		showRepl[p.Name()] = true
	}

	results := make([][]*model.OperationRow, len(t.chosen["operations"]))
	t.pollEach("operations", func(ctx context.Context, idx int, p Poller) error {
		ops, err := p.CurrentOperations(ctx, !showRepl[p.Name()])
		if err != nil {
			return err
		}
		rows := make([]*model.OperationRow, 0, len(ops))
		for _, op := range ops {
			rows = append(rows, model.NewOperationRow(p.Name(), op))
		}
		results[idx] = rows
		return nil
	})

	var all []*model.OperationRow
	for _, rs := range results {
		all = append(all, rs...)
	}
	model.SortOperations(all)

	rows := make([]render.Row, 0, len(all))
	for _, r := range all {
		rows = append(rows, r)
	}
	return rows
}

// askForOperation prompts for a server name and opid and resolves them
// against the rows on screen. Anything that does not match exactly one
// operation is an invalid selection.
func (t *TopSrvImpl) askForOperation() *model.OperationRow {
	values, err := t.screen.Prompt("Server", "Opid")
	if err != nil || len(values) != 2 {
		return nil
	}

	rows := t.opBlock.FindRows(func(cells []string) bool {
		return len(cells) >= 2 && cells[0] == values[0] && cells[1] == values[1]
	})
	if len(rows) != 1 {
		t.screen.Print("Invalid operation.\n")
		return nil
	}

	op, ok := rows[0].(*model.OperationRow)
	if !ok {
		return nil
	}
	return op
}

func (t *TopSrvImpl) explainAction() {
	op := t.askForOperation()
	if op == nil {
		return
	}
	if !op.Executable() {
		t.screen.Print("Only queries with namespace can be explained.\n")
		return
	}

	filter, sortDoc, err := op.QueryParts()
	if err != nil {
		t.screen.Print("Explain failed: %v\n", err)
		return
	}

	p, ok := t.byName[op.Server]
	if !ok {
		t.screen.Print("Invalid operation.\n")
		return
	}

	db, coll := op.Namespace()
	out, err := p.Explain(t.ctx, db, coll, filter, sortDoc)
	if err != nil {
		t.screen.Print("Explain failed: %v\n", err)
		return
	}
	t.printExplain(filter, sortDoc, out)
}

func (t *TopSrvImpl) printExplain(filter bson.M, sortDoc bson.D, out bson.M) {
	t.screen.Print("\n")
	if b, err := bson.MarshalExtJSONIndent(filter, false, false, "", "    "); err == nil {
		t.screen.Print("Query: %s\n", b)
	}
	if len(sortDoc) > 0 {
		pairs := make([]string, 0, len(sortDoc))
		for _, e := range sortDoc {
			pairs = append(pairs, fmt.Sprintf("%s: %v", e.Key, e.Value))
		}
		t.screen.Print("Sort: %s\n", strings.Join(pairs, ", "))
	}

	if qp, ok := out["queryPlanner"].(bson.M); ok {
		if wp, ok := qp["winningPlan"].(bson.M); ok {
			t.screen.Print("Stage: %s\n", cast.ToString(wp["stage"]))
			if is, ok := wp["inputStage"].(bson.M); ok {
				if name := cast.ToString(is["indexName"]); name != "" {
					t.screen.Print("Index: %s\n", name)
				}
			}
		}
	}
	if es, ok := out["executionStats"].(bson.M); ok {
		t.screen.Print("Milliseconds: %s\n", cast.ToString(es["executionTimeMillis"]))
		t.screen.Print("Documents: %s\n", cast.ToString(es["nReturned"]))
		t.screen.Print("KeysExamined: %s\n", cast.ToString(es["totalKeysExamined"]))
		t.screen.Print("DocsExamined: %s\n", cast.ToString(es["totalDocsExamined"]))
	}
}

func (t *TopSrvImpl) killAction() {
	op := t.askForOperation()
	if op == nil {
		return
	}
	if err := t.killOne(op); err != nil {
		t.screen.Print("Kill failed: %v\n", err)
	}
}

func (t *TopSrvImpl) killOne(op *model.OperationRow) error {
	p, ok := t.byName[op.Server]
	if !ok {
		return fmt.Errorf("unknown server: %s", op.Server)
	}
	return p.KillOperation(t.ctx, op.Opid)
}

// batchKillAction kills every displayed operation running strictly longer
// than the given threshold.
func (t *TopSrvImpl) batchKillAction() {
	values, err := t.screen.Prompt("Sec")
	if err != nil || len(values) != 1 {
		return
	}
	threshold, err := cast.ToInt64E(values[0])
	if err != nil {
		t.screen.Print("Invalid duration.\n")
		return
	}

	rows := t.opBlock.FindRows(func(cells []string) bool {
		return len(cells) > 3 && cells[3] != "" && cast.ToInt64(cells[3]) > threshold
	})
	if len(rows) == 0 {
		return
	}

	t.screen.Print("\n")
	bar := progress.NewBar(&screenWriter{s: t.screen}, int64(len(rows)))
	for i, r := range rows {
		op, ok := r.(*model.OperationRow)
		if !ok {
			continue
		}
		if err := t.killOne(op); err != nil {
			l.Logger.Debugf("kill %s/%d failed: %v", op.Server, op.Opid, err)
		}
		bar.Update(int64(i + 1))
	}
	bar.Finish()
}

// screenWriter lets the progress bar draw through the raw-mode-aware screen.
type screenWriter struct {
	s Screen
}

func (w *screenWriter) Write(p []byte) (int, error) {
	w.s.Print("%s", p)
	return len(p), nil
}
