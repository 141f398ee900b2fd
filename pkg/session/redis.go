package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xhad/newschat/internal/models"
)

// ErrSessionNotFound is returned when an operation targets a session
// id that does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

const keyPrefix = "session:"

type StoreConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TTL         time.Duration // sliding expiration, reset on every append
	MaxMessages int
}

// Store keeps each session's message list as one JSON blob in Redis.
type Store struct {
	config StoreConfig
	client *redis.Client
}

func NewWithConfig(config StoreConfig) *Store {
	if config.TTL == 0 {
		config.TTL = time.Hour
	}
	if config.MaxMessages == 0 {
		config.MaxMessages = 100
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})

	return &Store{
		config: config,
		client: client,
	}
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Create initializes an empty message list under the session key.
func (s *Store) Create(ctx context.Context, id string) error {
	return s.client.Set(ctx, sessionKey(id), "[]", s.config.TTL).Err()
}

// Messages returns the session's messages in append order. A missing
// key yields an empty list; callers gate on Exists for 404 semantics.
func (s *Store) Messages(ctx context.Context, id string) ([]models.Message, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Message{}, nil
		}
		return nil, err
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %v", id, err)
	}
	return messages, nil
}

// Append adds a message and resets the session TTL. A missing key is
// treated as an empty list, so appending to an expired session
// silently recreates it; the HTTP layer's Exists check is what keeps
// unknown ids out.
func (s *Store) Append(ctx context.Context, id string, msg models.Message) error {
	messages, err := s.Messages(ctx, id)
	if err != nil {
		return err
	}

	messages = append(messages, msg)
	if len(messages) > s.config.MaxMessages {
		messages = messages[len(messages)-s.config.MaxMessages:]
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, sessionKey(id), data, s.config.TTL).Err()
}

// Clear deletes the session outright.
func (s *Store) Clear(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Exists is the authority for "session valid" used before any
// mutating operation.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
