package model

import (
	"time"

	"github.com/spf13/cast"

	"github.com/SisyphusSQ/mongo-top-tool/utils/timeutil"
)

// ServerRef is the back-reference from a replica-set member to the polled
// server it corresponds to, when that member is one of the configured ones.
type ServerRef interface {
	Name() string
}

// ReplicaSet is one polled server's view of its set, rebuilt every cycle and
// then merged with the views of the other servers that report the same set
// name.
type ReplicaSet struct {
	Name    string
	MyState int
	Members []*Member
}

func NewReplicaSet(name string, myState int) *ReplicaSet {
	return &ReplicaSet{Name: name, MyState: myState}
}

// Primary reports whether the server that authored this view was primary at
// the time of the poll.
func (rs *ReplicaSet) Primary() bool {
	return rs.MyState == 1
}

func (rs *ReplicaSet) AddMember(m *Member) {
	m.Set = rs
	rs.Members = append(rs.Members, m)
}

func (rs *ReplicaSet) FindMember(host string) *Member {
	for _, m := range rs.Members {
		if m.Host == host {
			return m
		}
	}
	return nil
}

// Revise merges another server's view of the same set into this one,
// member by member keyed on the reported host name. Members only the other
// view knows about are ignored: the first discovery order fixes the rows.
func (rs *ReplicaSet) Revise(other *ReplicaSet) {
	for _, m := range rs.Members {
		if o := other.FindMember(m.Host); o != nil {
			m.revise(o)
		}
	}
}

// Member is one replica-set member as reported by some server in the set.
type Member struct {
	Set       *ReplicaSet
	Host      string
	State     string // lower-cased state label
	Uptime    *time.Duration
	Lag       time.Duration
	Increment int64
	Ping      *int64
	Server    ServerRef
}

// revise folds the other report of the same member in. Uptime, increment and
// ping keep the larger reading when both are known; lag is authoritative only
// when the incoming report was authored by the primary; an existing server
// back-reference is never replaced.
func (m *Member) revise(o *Member) {
	if o.Uptime != nil && (m.Uptime == nil || *m.Uptime < *o.Uptime) {
		m.Uptime = o.Uptime
	}
	if o.Set.Primary() {
		m.Lag = o.Lag
	}
	if m.Increment < o.Increment {
		m.Increment = o.Increment
	}
	if o.Ping != nil && (m.Ping == nil || *m.Ping < *o.Ping) {
		m.Ping = o.Ping
	}
	if o.Server != nil && m.Server == nil {
		m.Server = o.Server
	}
}

func (m *Member) Cells() []string {
	name := m.Host
	if m.Server != nil {
		name = m.Server.Name()
	}

	uptime := ""
	if m.Uptime != nil {
		uptime = timeutil.ShortDuration(*m.Uptime)
	}
	ping := ""
	if m.Ping != nil {
		ping = cast.ToString(*m.Ping)
	}

	return []string{
		name,
		m.Set.Name,
		m.State,
		uptime,
		timeutil.ShortDuration(m.Lag),
		cast.ToString(m.Increment),
		ping,
	}
}
