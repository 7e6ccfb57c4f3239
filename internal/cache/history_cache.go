// Package cache holds Redis-backed alternatives to the SQLite store.
package cache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryCache keeps each candidate's asked-question set in Redis so several
// server instances share one exclusion set.
type HistoryCache interface {
	UsedQuestions(ctx context.Context, candidateID string) ([]string, error)
	AddUsedQuestions(ctx context.Context, candidateID string, questions []string) error
	Forget(ctx context.Context, candidateID string) error
}

type historyCache struct {
	client *redis.Client
	prefix string
}

// NewHistoryCache creates a history cache. Sets never expire: a candidate's
// exclusion set only grows until the candidate is deleted.
func NewHistoryCache(client *redis.Client) HistoryCache {
	return &historyCache{
		client: client,
		prefix: "smarthire",
	}
}

func (c *historyCache) key(candidateID string) string {
	return fmt.Sprintf("%s:candidate:%s:asked", c.prefix, candidateID)
}

// UsedQuestions returns the candidate's asked questions sorted
// lexically; Redis sets carry no insertion order.
func (c *historyCache) UsedQuestions(ctx context.Context, candidateID string) ([]string, error) {
	members, err := c.client.SMembers(ctx, c.key(candidateID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slices.Sort(members)
	return members, nil
}

func (c *historyCache) AddUsedQuestions(ctx context.Context, candidateID string, questions []string) error {
	if len(questions) == 0 {
		return nil
	}
	members := make([]any, len(questions))
	for i, q := range questions {
		members[i] = q
	}
	if err := c.client.SAdd(ctx, c.key(candidateID), members...).Err(); err != nil {
		return fmt.Errorf("record asked questions: %w", err)
	}
	return nil
}

func (c *historyCache) Forget(ctx context.Context, candidateID string) error {
	return c.client.Del(ctx, c.key(candidateID)).Err()
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
