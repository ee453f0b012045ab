package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gcli-nexus-go/internal/credential"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisRepository is a lightweight row store for deployments without a SQL
// database. Ids come from an INCR sequence and upsert idempotence is kept
// through a refresh-token index.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures the redis repository.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OpenRedis connects and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultStorageTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "nexus"
	}
	log.Info("connected to Redis credential store")
	return &RedisRepository{client: client, prefix: prefix}, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) key(parts ...string) string {
	out := r.prefix
	for _, p := range parts {
		out += ":" + p
	}
	return out
}

func (r *RedisRepository) credKey(id int64) string {
	return r.key("cred", strconv.FormatInt(id, 10))
}

func (r *RedisRepository) LoadActive(ctx context.Context) ([]credential.Record, error) {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	ids, err := r.client.SMembers(ctx, r.key("ids")).Result()
	if err != nil {
		return nil, fmt.Errorf("list credential ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warnf("skipping malformed credential id %q", raw)
			continue
		}
		keys = append(keys, r.credKey(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	var out []credential.Record
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			log.Warnf("credential key %s missing, skipping", keys[i])
			continue
		}
		var rec credential.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal credential %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, rec *credential.Record) error {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	tokenKey := r.key("token", rec.RefreshToken)
	existing, err := r.client.Get(ctx, tokenKey).Result()
	switch {
	case err == nil:
		id, perr := strconv.ParseInt(existing, 10, 64)
		if perr != nil {
			return fmt.Errorf("corrupt token index %s: %w", tokenKey, perr)
		}
		rec.ID = id
	case errors.Is(err, redis.Nil):
		id, ierr := r.client.Incr(ctx, r.key("seq")).Result()
		if ierr != nil {
			return fmt.Errorf("allocate credential id: %w", ierr)
		}
		rec.ID = id
	default:
		return fmt.Errorf("lookup token index: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.credKey(rec.ID), data, 0)
	pipe.Set(ctx, tokenKey, strconv.FormatInt(rec.ID, 10), 0)
	pipe.SAdd(ctx, r.key("ids"), strconv.FormatInt(rec.ID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (r *RedisRepository) UpdateStatus(ctx context.Context, id int64, status bool) error {
	ctx, cancel := withStorageTimeout(ctx)
	defer cancel()

	raw, err := r.client.Get(ctx, r.credKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("credential %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("load credential %d: %w", id, err)
	}

	var rec credential.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("unmarshal credential %d: %w", id, err)
	}
	rec.Status = status

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal credential %d: %w", id, err)
	}
	if err := r.client.Set(ctx, r.credKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("store credential %d: %w", id, err)
	}
	return nil
}
