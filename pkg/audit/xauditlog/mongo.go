package xauditlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// 集合名。
const (
	collLog      = "travelclick_log"
	collErrorLog = "travelclick_error_log"
)

// MongoStore MongoDB 审计存储。
type MongoStore struct {
	logs   *mongo.Collection
	errs   *mongo.Collection
	dbName string
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore 创建 MongoDB 存储。
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		logs:   db.Collection(collLog),
		errs:   db.Collection(collErrorLog),
		dbName: db.Name(),
	}
}

// EnsureIndexes 创建必要索引：message_id 唯一、
// (xml_sha256, confirmation_number) 唯一（幂等回放）、
// (property_id, status) 与 parent_message_id 查询索引。
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	_, err := s.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "xml_sha256", Value: 1}, {Key: "confirmation_number", Value: 1}}},
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "parent_message_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("xauditlog: create log indexes: %w", err)
	}

	_, err = s.errs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "travelclick_log_id", Value: 1}}},
		{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("xauditlog: create error log indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, e *Entry) error {
	if ctx == nil {
		return ErrNilContext
	}
	if e == nil {
		return ErrNilEntry
	}

	stored := *e
	prepareForWrite(&stored)
	_, err := s.logs.InsertOne(ctx, &stored)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateMessageID
	}
	return err
}

func (s *MongoStore) Update(ctx context.Context, e *Entry) error {
	if ctx == nil {
		return ErrNilContext
	}
	if e == nil {
		return ErrNilEntry
	}

	stored := *e
	prepareForWrite(&stored)
	stored.Version = e.Version + 1
	stored.UpdatedAt = time.Now().UTC()

	res, err := s.logs.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: e.ID}, {Key: "version", Value: e.Version}},
		&stored,
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// 区分不存在与版本冲突
		if err := s.logs.FindOne(ctx, bson.D{{Key: "_id", Value: e.ID}}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	e.Version = stored.Version
	e.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*Entry, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) FindByMessageID(ctx context.Context, messageID string) (*Entry, error) {
	return s.findOne(ctx, bson.D{{Key: "message_id", Value: messageID}})
}

func (s *MongoStore) FindByHash(ctx context.Context, xmlSHA256, confirmationNumber string) (*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	// 同一报文可能多次出现（全量同步重放），取最近一条
	var e Entry
	err := s.logs.FindOne(ctx,
		bson.D{
			{Key: "xml_sha256", Value: xmlSHA256},
			{Key: "confirmation_number", Value: confirmationNumber},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	var e Entry
	err := s.logs.FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MongoStore) Thread(ctx context.Context, parentMessageID string) ([]*Entry, error) {
	return s.findMany(ctx, bson.D{{Key: "parent_message_id", Value: parentMessageID}}, 0)
}

func (s *MongoStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	return s.findMany(ctx, bson.D{{Key: "status", Value: status}}, limit)
}

func (s *MongoStore) findMany(ctx context.Context, filter bson.D, limit int) ([]*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}

	terminal := []Status{StatusCompleted, StatusFailed, StatusFailedPermanent, StatusCancelled}
	res, err := s.logs.DeleteMany(ctx, bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: terminal}}},
		{Key: "created_at", Value: bson.D{{Key: "$lt", Value: olderThan}}},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertError(ctx context.Context, el *ErrorLog) error {
	if ctx == nil {
		return ErrNilContext
	}
	if el == nil {
		return ErrNilEntry
	}

	// 应用层外键校验：审计记录必须已存在
	err := s.logs.FindOne(ctx, bson.D{{Key: "_id", Value: el.LogID}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrMissingParentLog
	}
	if err != nil {
		return err
	}

	_, err = s.errs.InsertOne(ctx, el)
	return err
}

func (s *MongoStore) ErrorsFor(ctx context.Context, logID string) ([]*ErrorLog, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cur, err := s.errs.Find(ctx,
		bson.D{{Key: "travelclick_log_id", Value: logID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*ErrorLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ResolveError(ctx context.Context, errorID, resolvedBy string) error {
	if ctx == nil {
		return ErrNilContext
	}

	res, err := s.errs.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: errorID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "resolved", Value: true},
			{Key: "resolved_at", Value: time.Now().UTC()},
			{Key: "resolved_by", Value: resolvedBy},
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
