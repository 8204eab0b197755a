package xsyncstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

const collSyncStatus = "travelclick_sync_status"

// MongoStore MongoDB 聚合存储。
type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore 创建 MongoDB 存储。
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(collSyncStatus)}
}

// EnsureIndexes 创建 (property_id, message_type) 复合唯一索引。
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "property_id", Value: 1}, {Key: "message_type", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("xsyncstatus: create indexes: %w", err)
	}
	return nil
}

func keyFilter(propertyID string, messageType xmsg.MessageType) bson.D {
	return bson.D{
		{Key: "property_id", Value: propertyID},
		{Key: "message_type", Value: messageType},
	}
}

func (s *MongoStore) Get(ctx context.Context, propertyID string, messageType xmsg.MessageType) (*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	var r Record
	err := s.coll.FindOne(ctx, keyFilter(propertyID, messageType)).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) Upsert(ctx context.Context, r *Record) error {
	if ctx == nil {
		return ErrNilContext
	}
	if r == nil {
		return ErrNilRecord
	}

	stored := *r
	stored.UpdatedAt = time.Now().UTC()
	_, err := s.coll.ReplaceOne(ctx,
		keyFilter(r.PropertyID, r.MessageType),
		&stored,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) List(ctx context.Context) ([]*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cur, err := s.coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "property_id", Value: 1}, {Key: "message_type", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
