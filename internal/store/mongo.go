package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dae9999nam/Memory-Garden/internal/models"
)

const (
	DefaultMongoDatabase   = "community_platform"
	DefaultMongoCollection = "stories"

	mongoConnectTimeout = 10 * time.Second
)

// MongoConfig configures a MongoDB-backed record store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one document per story, keyed by story id.
type MongoStore struct {
	client  *mongo.Client
	stories *mongo.Collection
}

// OpenMongo connects, pings and ensures indexes.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	database := strings.TrimSpace(cfg.Database)
	if database == "" {
		database = DefaultMongoDatabase
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = DefaultMongoCollection
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	st := &MongoStore{client: client, stories: client.Database(database).Collection(collection)}
	if err := st.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return st, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.stories.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "photos.blob_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create story indexes: %w", err)
	}
	return nil
}

// InsertStory inserts one document.
func (s *MongoStore) InsertStory(ctx context.Context, record *models.StoryRecord) error {
	if record == nil {
		return fmt.Errorf("story is required")
	}
	if _, err := s.stories.InsertOne(ctx, normalizeForMongo(*record)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrConflict, record.ID)
		}
		return err
	}
	return nil
}

// GetStory loads a document by id; nil when absent.
func (s *MongoStore) GetStory(ctx context.Context, id string) (*models.StoryRecord, error) {
	var record models.StoryRecord
	err := s.stories.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fromMongo(&record)
	return &record, nil
}

// UpdateStory replaces the document without upserting.
func (s *MongoStore) UpdateStory(ctx context.Context, record *models.StoryRecord) error {
	if record == nil {
		return fmt.Errorf("story is required")
	}
	res, err := s.stories.ReplaceOne(ctx, bson.M{"_id": record.ID}, normalizeForMongo(*record), options.Replace().SetUpsert(false))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, record.ID)
	}
	return nil
}

// DeleteStory removes a document. Missing ids are ignored.
func (s *MongoStore) DeleteStory(ctx context.Context, id string) error {
	_, err := s.stories.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListStories returns stories newest first.
func (s *MongoStore) ListStories(ctx context.Context, limit, offset int) ([]models.StoryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := s.stories.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.StoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	for i := range records {
		fromMongo(&records[i])
	}
	return records, nil
}

// ListReferencedBlobIDs collects every photo blob id across all documents.
func (s *MongoStore) ListReferencedBlobIDs(ctx context.Context) (map[string]struct{}, error) {
	cursor, err := s.stories.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"photos.blob_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := map[string]struct{}{}
	for cursor.Next(ctx) {
		var doc struct {
			Photos []struct {
				BlobID string `bson:"blob_id"`
			} `bson:"photos"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		for _, photo := range doc.Photos {
			out[photo.BlobID] = struct{}{}
		}
	}
	return out, cursor.Err()
}

// normalizeForMongo stores times in UTC at millisecond precision, which is
// what BSON dates hold.
func normalizeForMongo(record models.StoryRecord) models.StoryRecord {
	out := record.Clone()
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Millisecond)
	out.UpdatedAt = out.UpdatedAt.UTC().Truncate(time.Millisecond)
	if out.Photos == nil {
		out.Photos = []models.PhotoBlobRef{}
	}
	for i := range out.Photos {
		out.Photos[i].StoredAt = out.Photos[i].StoredAt.UTC().Truncate(time.Millisecond)
	}
	return out
}

func fromMongo(record *models.StoryRecord) {
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if record.Photos == nil {
		record.Photos = []models.PhotoBlobRef{}
	}
	for i := range record.Photos {
		record.Photos[i].StoredAt = record.Photos[i].StoredAt.UTC()
	}
}
