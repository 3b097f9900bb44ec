// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Lock records are JSON with millisecond timestamps so the scripts can compare
// them against the caller's clock.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local held = cjson.decode(cur)
  if held.exp > tonumber(ARGV[2]) then
    local want = cjson.decode(ARGV[1])
    if held.owner ~= want.owner or (held.session ~= '' and want.session ~= '' and held.session ~= want.session) then
      return {0, cur}
    end
    want.acq = held.acq
    if want.session == '' then want.session = held.session end
    local enc = cjson.encode(want)
    redis.call('SET', KEYS[1], enc, 'PX', ARGV[3])
    return {1, enc}
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return {1, ARGV[1]}
`)

var refreshScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return {0, ''} end
local held = cjson.decode(cur)
if held.exp <= tonumber(ARGV[2]) then return {0, ''} end
if held.owner ~= ARGV[1] then return {-1, cur} end
held.exp = tonumber(ARGV[3])
local enc = cjson.encode(held)
redis.call('SET', KEYS[1], enc, 'PX', ARGV[4])
return {1, enc}
`)

var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
if cjson.decode(cur).owner == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type wireLock struct {
	Tenant  string `json:"tenant"`
	Page    string `json:"page"`
	Owner   string `json:"owner"`
	Session string `json:"session"`
	Acq     int64  `json:"acq"`
	Exp     int64  `json:"exp"`
	TTL     int64  `json:"ttl"`
}

func toWire(l model.Lock) wireLock {
	return wireLock{
		Tenant:  l.TenantID,
		Page:    l.PageID,
		Owner:   l.OwnerID,
		Session: l.SessionID,
		Acq:     l.AcquiredAt.UnixMilli(),
		Exp:     l.ExpiresAt.UnixMilli(),
		TTL:     l.TTL.Milliseconds(),
	}
}

func fromWire(s string) (model.Lock, error) {
	var w wireLock
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return model.Lock{}, fmt.Errorf("decoding lock record: %w", err)
	}
	return model.Lock{
		TenantID:   w.Tenant,
		PageID:     w.Page,
		OwnerID:    w.Owner,
		SessionID:  w.Session,
		AcquiredAt: time.UnixMilli(w.Acq).UTC(),
		ExpiresAt:  time.UnixMilli(w.Exp).UTC(),
		TTL:        time.Duration(w.TTL) * time.Millisecond,
	}, nil
}

// RedisOptions configures the Redis lock backend.
type RedisOptions struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to all keys (e.g., "ocms:")
	Prefix string

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// RedisBackend shares locks between processes through Redis.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisBackend{client: client, prefix: opts.Prefix}, nil
}

func (b *RedisBackend) key(tenantID, pageID string) string {
	return b.prefix + "lock:" + tenantID + ":" + pageID
}

func pxUntil(expiresAt, now time.Time) int64 {
	px := expiresAt.Sub(now).Milliseconds()
	if px < 1 {
		px = 1
	}
	return px
}

// scriptResult unpacks the {code, record} pair returned by the scripts.
func scriptResult(res []any) (int64, string, error) {
	if len(res) != 2 {
		return 0, "", fmt.Errorf("unexpected lock script reply of length %d", len(res))
	}
	code, ok := res[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("unexpected lock script code %T", res[0])
	}
	rec, _ := res[1].(string)
	return code, rec, nil
}

// TryAcquire implements Backend.
func (b *RedisBackend) TryAcquire(ctx context.Context, want model.Lock, now time.Time) (model.Lock, error) {
	payload, err := json.Marshal(toWire(want))
	if err != nil {
		return model.Lock{}, fmt.Errorf("encoding lock: %w", err)
	}

	res, err := acquireScript.Run(ctx, b.client, []string{b.key(want.TenantID, want.PageID)},
		string(payload), now.UnixMilli(), pxUntil(want.ExpiresAt, now)).Slice()
	if err != nil {
		return model.Lock{}, fmt.Errorf("acquiring lock on page %s: %w", want.PageID, err)
	}
	code, rec, err := scriptResult(res)
	if err != nil {
		return model.Lock{}, err
	}
	l, err := fromWire(rec)
	if err != nil {
		return model.Lock{}, err
	}
	if code == 0 {
		return model.Lock{}, denied(l)
	}
	return l, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error) {
	rec, err := b.client.Get(ctx, b.key(tenantID, pageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock on page %s: %w", pageID, err)
	}
	l, err := fromWire(rec)
	if err != nil {
		return nil, err
	}
	if l.Expired(now) {
		return nil, nil
	}
	return &l, nil
}

// Refresh implements Backend.
func (b *RedisBackend) Refresh(ctx context.Context, tenantID, pageID, ownerID string, expiresAt, now time.Time) (model.Lock, error) {
	res, err := refreshScript.Run(ctx, b.client, []string{b.key(tenantID, pageID)},
		ownerID, now.UnixMilli(), expiresAt.UnixMilli(), pxUntil(expiresAt, now)).Slice()
	if err != nil {
		return model.Lock{}, fmt.Errorf("refreshing lock on page %s: %w", pageID, err)
	}
	code, rec, err := scriptResult(res)
	if err != nil {
		return model.Lock{}, err
	}
	if code == 0 {
		return model.Lock{}, notHeld(pageID)
	}
	l, err := fromWire(rec)
	if err != nil {
		return model.Lock{}, err
	}
	if code < 0 {
		return model.Lock{}, denied(l)
	}
	return l, nil
}

// Release implements Backend.
func (b *RedisBackend) Release(ctx context.Context, tenantID, pageID, ownerID string) error {
	if err := releaseScript.Run(ctx, b.client, []string{b.key(tenantID, pageID)}, ownerID).Err(); err != nil {
		return fmt.Errorf("releasing lock on page %s: %w", pageID, err)
	}
	return nil
}

// Break implements Backend.
func (b *RedisBackend) Break(ctx context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error) {
	rec, err := b.client.GetDel(ctx, b.key(tenantID, pageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("breaking lock on page %s: %w", pageID, err)
	}
	l, err := fromWire(rec)
	if err != nil {
		return nil, err
	}
	if l.Expired(now) {
		return nil, nil
	}
	return &l, nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
