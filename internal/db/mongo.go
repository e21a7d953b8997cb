package db

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
)

type MongoDB struct {
	client  *mongo.Client
	records *mongo.Collection
	log     *zap.Logger
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, eris.Wrap(err, "db: connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "db: ping MongoDB")
	}

	d := &MongoDB{
		client:  client,
		records: client.Database(cfg.Database).Collection(cfg.Collections.Records),
		log:     log,
	}
	d.createIndexes(ctx)
	return d, nil
}

// createIndexes makes tweet_id unique among records that have one. Index
// errors are logged, not fatal.
func (d *MongoDB) createIndexes(ctx context.Context) {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "tweet_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"tweet_id": bson.M{"$type": "string"}}),
	}
	if _, err := d.records.Indexes().CreateOne(ctx, indexModel); err != nil {
		d.log.Warn("create tweet_id index", zap.Error(err))
	}

	indexModel = mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "last_seen", Value: -1}},
	}
	if _, err := d.records.Indexes().CreateOne(ctx, indexModel); err != nil {
		d.log.Warn("create user index", zap.Error(err))
	}
}

// SaveRecord upserts records that carry a key and inserts the rest.
func (d *MongoDB) SaveRecord(ctx context.Context, rec models.Persistable) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().Unix()
	filter, update, err := RecordUpdate(rec, now)
	if err != nil {
		return err
	}

	if filter == nil {
		_, err = d.records.InsertOne(ctx, update["$set"])
		return eris.Wrap(err, "db: insert record")
	}

	_, err = d.records.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return eris.Wrap(err, "db: upsert record")
}

// RecordUpdate builds the upsert filter and update document for rec. The
// filter is nil for records without a key.
func RecordUpdate(rec models.Persistable, now int64) (bson.M, bson.M, error) {
	data, err := bson.Marshal(rec)
	if err != nil {
		return nil, nil, eris.Wrap(err, "db: marshal record")
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, nil, eris.Wrap(err, "db: unmarshal record")
	}
	doc["last_seen"] = now

	key := rec.Key()
	if key == "" {
		return nil, bson.M{"$set": doc}, nil
	}

	return bson.M{"tweet_id": key}, bson.M{
		"$set":         doc,
		"$setOnInsert": bson.M{"first_seen": now},
		"$inc":         bson.M{"seen_count": 1},
	}, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
