package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// KeyPrefix préfixe des clés de session
const KeyPrefix = "assistantcom:import-session:"

// RedisStore sessions partagées entre instances, expirées par Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore crée le stockage ; ttl <= 0 → DefaultTTL
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Dial ouvre un client depuis une URL redis:// (ou une adresse host:port) et vérifie la connexion
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

func key(id string) string {
	return KeyPrefix + id
}

// Save écrit la session en JSON et renouvelle son expiration
func (r *RedisStore) Save(ctx context.Context, s *model.ImportSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// Load lit la session ; ErrNotFound si la clé n'existe pas
func (r *RedisStore) Load(ctx context.Context, id string) (*model.ImportSession, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return decode(data)
}

// Delete supprime la clé
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
