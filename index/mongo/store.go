// Package mongo provides a MongoDB implementation of index.Index.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailindex/index"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Compile-time check
var _ index.Index = (*Store)(nil)

// Store implements index.Index using MongoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// New creates a new MongoDB index with the provided client.
// Call Connect() to initialize the collection and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the collection and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return index.ErrAlreadyConnected
	}

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.collection = s.client.Database(s.opts.database).Collection(s.opts.collection)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database, "collection", s.opts.collection)
	return nil
}

// Close marks the index as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "thread_id", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "tags", Value: 1}}},
		{Keys: bson.D{
			bson.E{Key: "indexed_at", Value: 1},
			bson.E{Key: "_id", Value: 1},
		}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return index.ErrNotConnected
	}
	return nil
}

// document is the stored form of index.Document.
type document struct {
	ID        string            `bson:"_id"`
	ThreadID  string            `bson:"thread_id"`
	InReplyTo string            `bson:"in_reply_to,omitempty"`
	Filenames []string          `bson:"filenames"`
	Date      time.Time         `bson:"date"`
	From      string            `bson:"from"`
	To        string            `bson:"to"`
	Subject   string            `bson:"subject"`
	Headers   map[string]string `bson:"headers,omitempty"`
	Tags      []string          `bson:"tags"`
	IndexedAt time.Time         `bson:"indexed_at"`
}

func (d *document) toIndex() index.Document {
	return index.Document{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		InReplyTo: d.InReplyTo,
		Filenames: d.Filenames,
		Date:      d.Date.UTC(),
		From:      d.From,
		To:        d.To,
		Subject:   d.Subject,
		Headers:   d.Headers,
		Tags:      d.Tags,
	}
}

// Put inserts or replaces a document. indexed_at is only set on insert so
// a replaced document keeps its position in index order.
func (s *Store) Put(ctx context.Context, doc index.Document) (index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return index.Document{}, err
	}

	d := doc.Clone()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.ThreadID == "" {
		d.ThreadID = d.ID
	}
	if d.Filenames == nil {
		d.Filenames = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"thread_id":   d.ThreadID,
			"in_reply_to": d.InReplyTo,
			"filenames":   d.Filenames,
			"date":        d.Date.UTC(),
			"from":        d.From,
			"to":          d.To,
			"subject":     d.Subject,
			"headers":     d.Headers,
			"tags":        d.Tags,
		},
		"$setOnInsert": bson.M{"indexed_at": time.Now().UTC()},
	}
	opts := mongoopts.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(mongoopts.After)

	var stored document
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": d.ID}, update, opts).Decode(&stored); err != nil {
		return index.Document{}, fmt.Errorf("put document: %w", err)
	}
	return stored.toIndex(), nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, id string) (index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return index.Document{}, err
	}
	if id == "" {
		return index.Document{}, index.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc document
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return index.Document{}, index.ErrNotFound
		}
		return index.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc.toIndex(), nil
}

// Find returns candidate documents in index order.
func (s *Store) Find(ctx context.Context, q *index.Query) ([]index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	findOpts := mongoopts.Find().SetSort(bson.D{
		bson.E{Key: "indexed_at", Value: 1},
		bson.E{Key: "_id", Value: 1},
	})

	cursor, err := s.collection.Find(ctx, buildFilter(q), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	out := make([]index.Document, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toIndex())
	}
	return out, nil
}

// AddTag adds a tag to a document.
func (s *Store) AddTag(ctx context.Context, id, tag string) error {
	return s.updateTags(ctx, id, bson.M{"$addToSet": bson.M{"tags": tag}}, "add tag")
}

// RemoveTag removes a tag from a document.
func (s *Store) RemoveTag(ctx context.Context, id, tag string) error {
	return s.updateTags(ctx, id, bson.M{"$pull": bson.M{"tags": tag}}, "remove tag")
}

func (s *Store) updateTags(ctx context.Context, id string, update bson.M, op string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return index.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return index.ErrNotFound
	}
	return nil
}

// Filenames returns every indexed filename in index order.
func (s *Store) Filenames(ctx context.Context) ([]string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	findOpts := mongoopts.Find().
		SetProjection(bson.M{"filenames": 1}).
		SetSort(bson.D{
			bson.E{Key: "indexed_at", Value: 1},
			bson.E{Key: "_id", Value: 1},
		})

	cursor, err := s.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list filenames: %w", err)
	}
	defer cursor.Close(ctx)

	var out []string
	for cursor.Next(ctx) {
		var doc struct {
			Filenames []string `bson:"filenames"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode filenames: %w", err)
		}
		out = append(out, doc.Filenames...)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list filenames: %w", err)
	}
	return out, nil
}
