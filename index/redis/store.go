// Package redis provides a Redis implementation of index.Index.
//
// Key layout, under a configurable prefix:
//
//	{prefix}:doc:{id}        hash of document fields
//	{prefix}:doc:{id}:tags   set of the document's tags
//	{prefix}:tag:{tag}       set of ids carrying the tag
//	{prefix}:order           sorted set of ids by insertion sequence
//	{prefix}:seq             insertion counter
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailindex/index"
	goredis "github.com/redis/go-redis/v9"
)

// Compile-time check
var _ index.Index = (*Store)(nil)

// Store implements index.Index using Redis.
type Store struct {
	client    goredis.UniversalClient
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new Redis index.
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
// Call Connect() before use.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect verifies the server is reachable.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return index.ErrAlreadyConnected
	}

	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("redis: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("redis ping: %w", err)
	}

	s.logger.Info("connected to Redis", "prefix", s.opts.prefix)
	return nil
}

// Close marks the index as disconnected.
// The caller is responsible for closing the Redis client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return index.ErrNotConnected
	}
	return nil
}

func (s *Store) docKey(id string) string  { return s.opts.prefix + ":doc:" + id }
func (s *Store) tagsKey(id string) string { return s.opts.prefix + ":doc:" + id + ":tags" }
func (s *Store) tagKey(tag string) string { return s.opts.prefix + ":tag:" + tag }
func (s *Store) orderKey() string         { return s.opts.prefix + ":order" }
func (s *Store) seqKey() string           { return s.opts.prefix + ":seq" }

// Put inserts or replaces a document. A replaced document keeps its
// position in index order.
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
	fields, err := encode(d)
	if err != nil {
		return index.Document{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	oldTags, err := s.client.SMembers(ctx, s.tagsKey(d.ID)).Result()
	if err != nil {
		return index.Document{}, fmt.Errorf("load tags: %w", err)
	}
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return index.Document{}, fmt.Errorf("next sequence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, t := range oldTags {
			pipe.SRem(ctx, s.tagKey(t), d.ID)
		}
		pipe.Del(ctx, s.docKey(d.ID), s.tagsKey(d.ID))
		pipe.HSet(ctx, s.docKey(d.ID), fields)
		for _, t := range d.Tags {
			pipe.SAdd(ctx, s.tagsKey(d.ID), t)
			pipe.SAdd(ctx, s.tagKey(t), d.ID)
		}
		pipe.ZAddNX(ctx, s.orderKey(), goredis.Z{Score: float64(seq), Member: d.ID})
		return nil
	})
	if err != nil {
		return index.Document{}, fmt.Errorf("put document: %w", err)
	}
	return d, nil
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

	docs, err := s.load(ctx, []string{id})
	if err != nil {
		return index.Document{}, err
	}
	if len(docs) == 0 {
		return index.Document{}, index.ErrNotFound
	}
	return docs[0], nil
}

// Find returns candidate documents in index order. Required tags are
// resolved with SINTER before any document is loaded.
func (s *Store) Find(ctx context.Context, q *index.Query) ([]index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if id, ok := q.RequiredID(); ok {
		return s.load(ctx, []string{id})
	}

	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	if tags := q.RequiredTags(); len(tags) > 0 {
		keys := make([]string, len(tags))
		for i, t := range tags {
			keys[i] = s.tagKey(t)
		}
		members, err := s.client.SInter(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("intersect tags: %w", err)
		}
		allowed := make(map[string]bool, len(members))
		for _, m := range members {
			allowed[m] = true
		}
		filtered := ids[:0]
		for _, id := range ids {
			if allowed[id] {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	return s.load(ctx, ids)
}

// load fetches documents in the given order, skipping ids that no longer
// exist.
func (s *Store) load(ctx context.Context, ids []string) ([]index.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	hashes := make([]*goredis.MapStringStringCmd, len(ids))
	tags := make([]*goredis.StringSliceCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			hashes[i] = pipe.HGetAll(ctx, s.docKey(id))
			tags[i] = pipe.SMembers(ctx, s.tagsKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	out := make([]index.Document, 0, len(ids))
	for i, id := range ids {
		fields := hashes[i].Val()
		if len(fields) == 0 {
			continue
		}
		d, err := decode(id, fields)
		if err != nil {
			return nil, err
		}
		d.Tags = tags[i].Val()
		out = append(out, d)
	}
	return out, nil
}

// AddTag adds a tag to a document.
func (s *Store) AddTag(ctx context.Context, id, tag string) error {
	return s.updateTags(ctx, id, func(pipe goredis.Pipeliner) {
		pipe.SAdd(ctx, s.tagsKey(id), tag)
		pipe.SAdd(ctx, s.tagKey(tag), id)
	}, "add tag")
}

// RemoveTag removes a tag from a document.
func (s *Store) RemoveTag(ctx context.Context, id, tag string) error {
	return s.updateTags(ctx, id, func(pipe goredis.Pipeliner) {
		pipe.SRem(ctx, s.tagsKey(id), tag)
		pipe.SRem(ctx, s.tagKey(tag), id)
	}, "remove tag")
}

func (s *Store) updateTags(ctx context.Context, id string, fn func(goredis.Pipeliner), op string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return index.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return index.ErrNotFound
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		fn(pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
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

	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.docKey(id), "filenames")
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("list filenames: %w", err)
	}

	var out []string
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list filenames: %w", err)
		}
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("unmarshal filenames: %w", err)
		}
		out = append(out, names...)
	}
	return out, nil
}

func encode(d index.Document) (map[string]any, error) {
	filenames, err := json.Marshal(d.Filenames)
	if err != nil {
		return nil, fmt.Errorf("marshal filenames: %w", err)
	}
	headers, err := json.Marshal(d.Headers)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	return map[string]any{
		"thread_id":   d.ThreadID,
		"in_reply_to": d.InReplyTo,
		"filenames":   string(filenames),
		"date":        d.Date.UTC().Format(time.RFC3339Nano),
		"from":        d.From,
		"to":          d.To,
		"subject":     d.Subject,
		"headers":     string(headers),
	}, nil
}

func decode(id string, fields map[string]string) (index.Document, error) {
	d := index.Document{
		ID:        id,
		ThreadID:  fields["thread_id"],
		InReplyTo: fields["in_reply_to"],
		From:      fields["from"],
		To:        fields["to"],
		Subject:   fields["subject"],
	}
	if err := json.Unmarshal([]byte(fields["filenames"]), &d.Filenames); err != nil {
		return index.Document{}, fmt.Errorf("unmarshal filenames: %w", err)
	}
	if err := json.Unmarshal([]byte(fields["headers"]), &d.Headers); err != nil {
		return index.Document{}, fmt.Errorf("unmarshal headers: %w", err)
	}
	date, err := time.Parse(time.RFC3339Nano, fields["date"])
	if err != nil {
		return index.Document{}, fmt.Errorf("parse date: %w", err)
	}
	d.Date = date
	return d, nil
}
