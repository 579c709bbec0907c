package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"iochunt/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// LogCursor interface for mocking
type LogCursor interface {
	Close(ctx context.Context) error
	Err() error
	Next(ctx context.Context) bool
	Decode(v interface{}) error
}

// LogCollection interface for mocking
type LogCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (LogCursor, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// mongoLogCollection adapts *mongo.Collection to LogCollection
type mongoLogCollection struct {
	*mongo.Collection
}

func (m *mongoLogCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (LogCursor, error) {
	cursor, err := m.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// MongoDB holds the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB creates a new MongoDB connection
func NewMongoDB(uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Infow("Connected to MongoDB", "database", dbName)

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// MongoLogStorage serves endpoint log searches from a MongoDB collection
type MongoLogStorage struct {
	LogsColl LogCollection
	logger   *zap.SugaredLogger
}

// NewMongoLogStorage creates the MongoDB log backend over the named collection
func NewMongoLogStorage(mongoDB *MongoDB, collection string, logger *zap.SugaredLogger) *MongoLogStorage {
	return &MongoLogStorage{
		LogsColl: &mongoLogCollection{Collection: mongoDB.Database.Collection(collection)},
		logger:   logger,
	}
}

// EnsureIndexes creates the lookup index used by message searches
func (s *MongoLogStorage) EnsureIndexes(ctx context.Context) error {
	coll, ok := s.LogsColl.(*mongoLogCollection)
	if !ok {
		return nil
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "org_id", Value: 1}, {Key: "event_time", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create log index: %w", err)
	}
	return nil
}

// AppendLog stores one log record
func (s *MongoLogStorage) AppendLog(ctx context.Context, rec *LogRecord) error {
	return s.AppendLogs(ctx, []*LogRecord{rec})
}

// AppendLogs stores records with a single InsertMany
func (s *MongoLogStorage) AppendLogs(ctx context.Context, recs []*LogRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		if err := rec.validate(); err != nil {
			return err
		}
		docs = append(docs, rec)
	}

	if _, err := s.LogsColl.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert logs: %w", err)
	}
	return nil
}

// messageFilter matches needle as a literal, case-insensitive substring of message
func messageFilter(orgID, needle string) bson.M {
	return bson.M{
		"org_id": orgID,
		"message": bson.M{
			"$regex":   regexp.QuoteMeta(needle),
			"$options": "i",
		},
	}
}

// FindByMessageSubstring returns log records whose message contains needle, ignoring case
func (s *MongoLogStorage) FindByMessageSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "event_time", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.LogsColl.Find(ctx, messageFilter(orgID, needle), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint logs: %w", err)
	}
	defer cursor.Close(ctx)

	hits := make([]core.RawHit, 0)
	for cursor.Next(ctx) {
		var rec LogRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode log document: %w", err)
		}
		hits = append(hits, rec.hit())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoint logs: %w", err)
	}
	return hits, nil
}
