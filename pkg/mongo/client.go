package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	l "github.com/SisyphusSQ/mongo-top-tool/pkg/log"
	"github.com/SisyphusSQ/mongo-top-tool/utils"
)

type Conn struct {
	URI    string
	Client *mongo.Client
}

// NewMongoConn dials one server directly. Each configured server gets its own
// Conn; the dashboard never wants driver-side topology routing because every
// member is polled for its own point of view.
func NewMongoConn(uri string) (*Conn, error) {
	clientOps := options.Client().ApplyURI(uri)
	clientOps.SetDirect(true)
	clientOps.SetReadPreference(readpref.SecondaryPreferred())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := mongo.NewClient(clientOps)
	if err != nil {
		return nil, fmt.Errorf("new client failed: %v", err)
	}
	if err = client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s failed: %v", utils.BlockPassword(uri, "***"), err)
	}

	if err = client.Ping(ctx, clientOps.ReadPreference); err != nil {
		return nil, fmt.Errorf("ping to %v failed: %v", utils.BlockPassword(uri, "***"), err)
	}

	l.Logger.Debugf("New session to %s successfully", utils.BlockPassword(uri, "***"))
	return &Conn{
		URI:    uri,
		Client: client,
	}, nil
}

func (c *Conn) Close() error {
	l.Logger.Debugf("Close client with %s", utils.BlockPassword(c.URI, "***"))
	return c.Client.Disconnect(context.Background())
}

func (c *Conn) ServerStatus(ctx context.Context) (result ServerStatusRaw, err error) {
	err = c.Client.Database("admin").RunCommand(ctx, bson.M{"serverStatus": 1}).Decode(&result)
	return
}

func (c *Conn) RsStatus(ctx context.Context) (result RsStatus, err error) {
	err = c.Client.Database("admin").RunCommand(ctx, bson.M{"replSetGetStatus": 1}).Decode(&result)
	return
}

func (c *Conn) CurrentOp(ctx context.Context) (result CurrentOp, err error) {
	err = c.Client.Database("admin").RunCommand(ctx, bson.M{"currentOp": 1}).Decode(&result)
	return
}

func (c *Conn) KillOp(ctx context.Context, opid int64) error {
	return c.Client.Database("admin").RunCommand(ctx, bson.D{
		{Key: "killOp", Value: 1},
		{Key: "op", Value: opid},
	}).Err()
}

// ReplicationSource reads the first document of local.sources. Servers that
// do not replicate from a legacy master have none.
func (c *Conn) ReplicationSource(ctx context.Context) (*ReplSource, error) {
	var src ReplSource
	err := c.Client.Database("local").Collection("sources").FindOne(ctx, bson.M{}).Decode(&src)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Explain runs the explain command for a find with the given filter and sort.
func (c *Conn) Explain(ctx context.Context, db, coll string, filter bson.M, sort bson.D) (bson.M, error) {
	find := bson.D{
		{Key: "find", Value: coll},
		{Key: "filter", Value: filter},
	}
	if len(sort) > 0 {
		find = append(find, bson.E{Key: "sort", Value: sort})
	}

	var result bson.M
	err := c.Client.Database(db).RunCommand(ctx, bson.D{
		{Key: "explain", Value: find},
		{Key: "verbosity", Value: "executionStats"},
	}).Decode(&result)
	return result, err
}
