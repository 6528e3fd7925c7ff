package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServerStatusRaw is the subset of the serverStatus command output the
// dashboard reads. Engines without a background flusher simply leave
// backgroundFlushing zeroed.
type ServerStatusRaw struct {
	Host    string  `json:"host" bson:"host"`
	Version string  `json:"version" bson:"version"`
	Uptime  float64 `json:"uptime" bson:"uptime"`

	Opcounters struct {
		Insert  int64 `json:"insert" bson:"insert"`
		Query   int64 `json:"query" bson:"query"`
		Update  int64 `json:"update" bson:"update"`
		Delete  int64 `json:"delete" bson:"delete"`
		Getmore int64 `json:"getmore" bson:"getmore"`
		Command int64 `json:"command" bson:"command"`
	} `json:"opcounters" bson:"opcounters"`

	GlobalLock struct {
		ActiveClients struct {
			Total int64 `json:"total" bson:"total"`
		} `json:"activeClients" bson:"activeClients"`
		CurrentQueue struct {
			Total int64 `json:"total" bson:"total"`
		} `json:"currentQueue" bson:"currentQueue"`
	} `json:"globalLock" bson:"globalLock"`

	BackgroundFlushing struct {
		Flushes int64 `json:"flushes" bson:"flushes"`
	} `json:"backgroundFlushing" bson:"backgroundFlushing"`

	Connections struct {
		Current   int64 `json:"current" bson:"current"`
		Available int64 `json:"available" bson:"available"`
	} `json:"connections" bson:"connections"`

	Mem struct {
		Resident int64 `json:"resident" bson:"resident"`
		Mapped   int64 `json:"mapped" bson:"mapped"`
	} `json:"mem" bson:"mem"`

	Network struct {
		BytesIn  int64 `json:"bytesIn" bson:"bytesIn"`
		BytesOut int64 `json:"bytesOut" bson:"bytesOut"`
	} `json:"network" bson:"network"`
}

// OpcounterTotal sums all operation counters for the QPS rate.
func (s *ServerStatusRaw) OpcounterTotal() int64 {
	oc := s.Opcounters
	return oc.Insert + oc.Query + oc.Update + oc.Delete + oc.Getmore + oc.Command
}

// StatusSnapshot is one point-in-time read of a server, with monotonic
// counters already normalized to per-second rates against the previous poll.
type StatusSnapshot struct {
	Server string
	Taken  time.Time

	QPS      float64
	Flushes  float64
	BytesIn  float64
	BytesOut float64

	ActiveClients int64
	CurrentQueue  int64
	CurrentConn   int64
	TotalConn     int64
	ResidentMem   int64 // bytes
	MappedMem     int64 // bytes
}

type RsStatus struct {
	Set     string     `json:"set" bson:"set"`
	MyState int        `json:"myState" bson:"myState"`
	Date    time.Time  `json:"date" bson:"date"`
	Members []RsMember `json:"members" bson:"members"`
	Ok      int        `json:"ok" bson:"ok"`
}

type RsMember struct {
	Id         int        `json:"_id" bson:"_id"`
	Name       string     `json:"name" bson:"name"`
	Health     int        `json:"health" bson:"health"`
	State      int        `json:"state" bson:"state"`
	StateStr   string     `json:"stateStr" bson:"stateStr"`
	Uptime     *int64     `json:"uptime,omitempty" bson:"uptime,omitempty"`
	Optime     Optime     `json:"optime" bson:"optime"`
	OptimeDate time.Time  `json:"optimeDate" bson:"optimeDate"`
	PingMs     *int64     `json:"pingMs,omitempty" bson:"pingMs,omitempty"`
	Self       bool       `json:"self" bson:"self"`
	SyncSource string     `json:"syncSourceHost" bson:"syncSourceHost"`
}

type Optime struct {
	T  int64               `json:"t" bson:"t"`
	Ts primitive.Timestamp `json:"ts" bson:"ts"`
}

// ReplSource is one document of local.sources, present on legacy
// master/slave secondaries.
type ReplSource struct {
	Host     string              `json:"host" bson:"host"`
	Source   string              `json:"source" bson:"source"`
	SyncedTo primitive.Timestamp `json:"syncedTo" bson:"syncedTo"`
}

type CurrentOp struct {
	Info   string   `json:"info" bson:"info"`
	Inprog []InProg `json:"inprog" bson:"inprog"`
	Ok     int      `json:"ok" bson:"ok"`
}

type InProg struct {
	Opid        int64       `json:"opid" bson:"opid"`
	Active      bool        `json:"active" bson:"active"`
	Op          string      `json:"op" bson:"op"`
	Ns          string      `json:"ns" bson:"ns"`
	SecsRunning *int64      `json:"secs_running,omitempty" bson:"secs_running,omitempty"`
	Desc        string      `json:"desc" bson:"desc"`
	Client      string      `json:"client" bson:"client"`
	Msg         string      `json:"msg" bson:"msg"`
	Query       interface{} `json:"query" bson:"query"`
	Command     interface{} `json:"command" bson:"command"`
}
