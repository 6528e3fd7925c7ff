package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/SisyphusSQ/mongo-top-tool/pkg/mongo"
)

// UnknownDuration is the sort sentinel for operations the server reports
// without a running time: they sort below any real duration, a 0-second
// operation included.
const UnknownDuration int64 = -1

// OpKey identifies an operation across the fleet: opids are only unique
// within one server.
type OpKey struct {
	Server string
	Opid   int64
}

// OperationRow is one in-flight operation. Rebuilt wholesale every poll; a
// killed operation is simply absent on the next one.
type OperationRow struct {
	Server   string
	Opid     int64
	Op       string
	Duration int64 // seconds, UnknownDuration when not reported
	Ns       string
	Query    bson.M
	RawQuery string // opaque payload when not a document
}

func NewOperationRow(server string, op mongo.InProg) *OperationRow {
	dur := UnknownDuration
	if op.SecsRunning != nil {
		dur = *op.SecsRunning
	}

	query, opaque := op.Payload()
	return &OperationRow{
		Server:   server,
		Opid:     op.Opid,
		Op:       op.Op,
		Duration: dur,
		Ns:       op.Ns,
		Query:    query,
		RawQuery: opaque,
	}
}

func (r *OperationRow) Key() OpKey {
	return OpKey{Server: r.Server, Opid: r.Opid}
}

func (r *OperationRow) Cells() []string {
	dur := ""
	if r.Duration != UnknownDuration {
		dur = cast.ToString(r.Duration)
	}

	query := r.RawQuery
	if r.Query != nil {
		if msg, ok := r.Query["$msg"]; ok {
			query = cast.ToString(msg)
		} else if b, err := bson.MarshalExtJSON(r.Query, false, false); err == nil {
			query = string(b)
		}
	}

	return []string{r.Server, cast.ToString(r.Opid), r.Op, dur, r.Ns, query}
}

// Executable reports whether this operation carries enough to be explained:
// a structured query and a db.collection namespace.
func (r *OperationRow) Executable() bool {
	return r.Query != nil && strings.Contains(r.Ns, ".")
}

// Namespace splits "db.collection" at the first dot.
func (r *OperationRow) Namespace() (db, coll string) {
	db, coll, _ = strings.Cut(r.Ns, ".")
	return db, coll
}

// QueryParts translates the stored payload into explain arguments. A payload
// with a query/$query wrapper may also carry orderby/$orderby (sort) and
// explain/$explain (ignored); any other wrapper key is an unsupported query
// shape and fails this one explain attempt.
func (r *OperationRow) QueryParts() (filter bson.M, sortDoc bson.D, err error) {
	wrapped := false
	for k := range r.Query {
		if k == "query" || k == "$query" {
			wrapped = true
			break
		}
	}
	if !wrapped {
		return r.Query, nil, nil
	}

	filter = bson.M{}
	keys := make([]string, 0, len(r.Query))
	for k := range r.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := r.Query[k]
		switch k {
		case "query", "$query":
			m, _ := mongo.AsDocument(v)
			if m == nil {
				return nil, nil, fmt.Errorf("query part %s is not a document", k)
			}
			filter = m
		case "orderby", "$orderby":
			m, _ := mongo.AsDocument(v)
			if m == nil {
				return nil, nil, fmt.Errorf("query part %s is not a document", k)
			}
			orderKeys := make([]string, 0, len(m))
			for ok := range m {
				orderKeys = append(orderKeys, ok)
			}
			sort.Strings(orderKeys)
			for _, ok := range orderKeys {
				sortDoc = append(sortDoc, bson.E{Key: ok, Value: m[ok]})
			}
		case "explain", "$explain":
			// explaining anyway
		default:
			return nil, nil, fmt.Errorf("unknown query part: %s", k)
		}
	}
	return filter, sortDoc, nil
}

// SortOperations orders by duration descending; ties break on server name and
// opid so parallel polling cannot shuffle the display.
func SortOperations(ops []*OperationRow) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Duration != ops[j].Duration {
			return ops[i].Duration > ops[j].Duration
		}
		if ops[i].Server != ops[j].Server {
			return ops[i].Server < ops[j].Server
		}
		return ops[i].Opid < ops[j].Opid
	})
}
