package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"estudiantes-gateway/models"
)

const journalKey = "estudiantes:journal" // List: newest entry first

// RedisJournal keeps a capped list of gateway mutations in Redis
type RedisJournal struct {
	Client *redis.Client
	Max    int64
}

// NewRedisJournal creates a journal holding at most max entries
func NewRedisJournal(client *redis.Client, max int64) *RedisJournal {
	if max <= 0 {
		max = 1000
	}
	return &RedisJournal{
		Client: client,
		Max:    max,
	}
}

// Record pushes an entry and trims the list in one pipeline
func (j *RedisJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	pipe := j.Client.TxPipeline()
	pipe.LPush(ctx, journalKey, data)
	pipe.LTrim(ctx, journalKey, 0, j.Max-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write journal entry to Redis: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (j *RedisJournal) Recent(ctx context.Context, limit int64) ([]models.JournalEntry, error) {
	if limit <= 0 {
		return []models.JournalEntry{}, nil
	}
	raw, err := j.Client.LRange(ctx, journalKey, 0, limit-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.JournalEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal from Redis: %w", err)
	}

	entries := make([]models.JournalEntry, 0, len(raw))
	for _, item := range raw {
		var e models.JournalEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Skip entries written by an incompatible version
			log.Printf("Skipping unreadable journal entry: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// InitializeRedisClient creates a client and checks the connection
func InitializeRedisClient(ctx context.Context, addr, password string, database int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s (DB %d)", addr, database)
	return rdb, nil
}
