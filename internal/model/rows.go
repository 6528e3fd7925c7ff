package model

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/SisyphusSQ/mongo-top-tool/pkg/mongo"
	"github.com/SisyphusSQ/mongo-top-tool/utils"
	"github.com/SisyphusSQ/mongo-top-tool/utils/timeutil"
)

var (
	StatusHeaders          = []string{"Server", "QPS", "Client", "Queue", "Flush", "Connection", "Memory", "Network I/O"}
	ReplicationInfoHeaders = []string{"Server", "Source", "SyncedTo"}
	ReplicaSetHeaders      = []string{"Server", "Set", "State", "Uptime", "Lag", "Inc", "Ping"}
	OperationHeaders       = []string{"Server", "Opid", "State", "Sec", "Namespace", "Query"}
)

// StatusRow is one server's line in the status block, rates already
// normalized per second.
type StatusRow struct {
	Server string

	QPS      float64
	Flushes  float64
	BytesIn  float64
	BytesOut float64

	ActiveClients int64
	CurrentQueue  int64
	CurrentConn   int64
	TotalConn     int64
	ResidentMem   int64
	MappedMem     int64
}

func NewStatusRow(snap *mongo.StatusSnapshot) *StatusRow {
	return &StatusRow{
		Server:        snap.Server,
		QPS:           snap.QPS,
		Flushes:       snap.Flushes,
		BytesIn:       snap.BytesIn,
		BytesOut:      snap.BytesOut,
		ActiveClients: snap.ActiveClients,
		CurrentQueue:  snap.CurrentQueue,
		CurrentConn:   snap.CurrentConn,
		TotalConn:     snap.TotalConn,
		ResidentMem:   snap.ResidentMem,
		MappedMem:     snap.MappedMem,
	}
}

func (r *StatusRow) Cells() []string {
	return []string{
		r.Server,
		utils.Abbrev(r.QPS),
		utils.Abbrev(float64(r.ActiveClients)),
		utils.Abbrev(float64(r.CurrentQueue)),
		utils.Abbrev(r.Flushes),
		utils.Pair(utils.Abbrev(float64(r.CurrentConn)), utils.Abbrev(float64(r.TotalConn))),
		utils.Pair(bytesCell(r.ResidentMem), bytesCell(r.MappedMem)),
		utils.Pair(utils.Abbrev(r.BytesIn), utils.Abbrev(r.BytesOut)),
	}
}

func bytesCell(n int64) string {
	if n < 0 {
		n = 0
	}
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

// ReplicationInfoRow shows where a legacy master/slave secondary pulls from
// and how far it got.
type ReplicationInfoRow struct {
	Server   string
	Source   string
	SyncedTo time.Time
}

func (r *ReplicationInfoRow) Cells() []string {
	return []string{r.Server, r.Source, timeutil.FormatLayoutString(r.SyncedTo)}
}
