package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ajay-css/chatify/pkg/logger"
)

// Mongo holds the client and the selected database.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// MongoConfig is the subset of settings needed to dial MongoDB.
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	MaxRetry    int
}

// NewMongo connects and pings, retrying up to MaxRetry times while ctx is
// alive.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 1
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 100
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(5 * time.Second)

	var (
		cli *mongo.Client
		err error
	)
	for attempt := 1; attempt <= cfg.MaxRetry; attempt++ {
		cli, err = connectMongo(ctx, opts)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("[database] mongo connect attempt %d/%d failed: %v", attempt, cfg.MaxRetry, err)
		time.Sleep(time.Second / 2)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	m := &Mongo{Client: cli, DB: cli.Database(cfg.Database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}

	logger.Infof("[database] mongo ready (db=%s)", cfg.Database)
	return m, nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// ensureIndexes creates the unique email index and the conversation index.
// Creating an index that already exists is a no-op.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.DB.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "create users index")
	}

	_, err = m.DB.Collection("messages").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "senderId", Value: 1}, {Key: "seen", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "create messages indexes")
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
