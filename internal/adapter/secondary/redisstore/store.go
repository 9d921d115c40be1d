// Package redisstore shares confirmations between API replicas through Redis.
// Expiring confirmations are stored with a native TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

const defaultPrefix = "pix:"

// Store implements ConfirmationStore and EventLog on Redis
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var (
	_ output.ConfirmationStore = (*Store)(nil)
	_ output.EventLog          = (*Store)(nil)
)

// NewStore creates a store using rdb. An empty prefix defaults to "pix:".
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) recordKey(ext string) string { return s.prefix + "confirmation:" + ext }
func (s *Store) aliasKey(key string) string  { return s.prefix + "alias:" + key }
func (s *Store) indexKey() string            { return s.prefix + "confirmations" }
func (s *Store) eventsKey() string           { return s.prefix + "events" }

// Save writes the record and points every lookup key at its external ID
func (s *Store) Save(ctx context.Context, c *core.PaymentConfirmation) error {
	var ttl time.Duration
	if c.ExpiresAt != nil {
		ttl = c.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode confirmation: %w", err)
	}

	old, err := s.load(ctx, c.ExternalID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	var stale []string
	if old != nil {
		if stale, err = s.ownedAliases(ctx, old); err != nil {
			return err
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		pipe.Set(ctx, s.recordKey(c.ExternalID), data, ttl)
		for _, key := range aliases(c) {
			pipe.Set(ctx, s.aliasKey(key), c.ExternalID, ttl)
		}
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(c.ReceivedAt.UnixMilli()),
			Member: c.ExternalID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save confirmation: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, ext string) (*core.PaymentConfirmation, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(ext)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmation: %w", err)
	}
	var c core.PaymentConfirmation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode confirmation: %w", err)
	}
	return &c, nil
}

// Get resolves identifier as an external ID, then as an alias, then as a token
func (s *Store) Get(ctx context.Context, identifier string) (*core.PaymentConfirmation, error) {
	c, err := s.load(ctx, identifier)
	if err == nil {
		return s.live(ctx, c)
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	for _, key := range []string{identifier, core.TokenPrefix + identifier} {
		ext, err := s.rdb.Get(ctx, s.aliasKey(key)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve identifier: %w", err)
		}

		c, err := s.load(ctx, ext)
		if errors.Is(err, core.ErrNotFound) {
			s.rdb.ZRem(ctx, s.indexKey(), ext)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		return s.live(ctx, c)
	}
	return nil, core.ErrNotFound
}

func (s *Store) live(ctx context.Context, c *core.PaymentConfirmation) (*core.PaymentConfirmation, error) {
	if c.Expired(s.now()) {
		s.drop(ctx, c)
		return nil, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) drop(ctx context.Context, c *core.PaymentConfirmation) {
	keys, _ := s.ownedAliases(ctx, c)
	keys = append(keys, s.recordKey(c.ExternalID))
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), c.ExternalID)
	_, _ = pipe.Exec(ctx)
}

// aliases returns the lookup keys of c other than its external ID
func aliases(c *core.PaymentConfirmation) []string {
	return lo.Without(c.Keys(), c.ExternalID)
}

// ownedAliases returns the alias keys of c that still point at it;
// another record may have taken over a shared invoice ID
func (s *Store) ownedAliases(ctx context.Context, c *core.PaymentConfirmation) ([]string, error) {
	keys := lo.Map(aliases(c), func(key string, _ int) string { return s.aliasKey(key) })
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases: %w", err)
	}
	owned := make([]string, 0, len(keys))
	for i, v := range values {
		if ext, ok := v.(string); ok && ext == c.ExternalID {
			owned = append(owned, keys[i])
		}
	}
	return owned, nil
}

// List returns live confirmations ordered by ReceivedAt descending
func (s *Store) List(ctx context.Context) ([]core.PaymentConfirmation, error) {
	exts, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}
	if len(exts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(exts))
	for i, ext := range exts {
		keys[i] = s.recordKey(ext)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmations: %w", err)
	}

	now := s.now()
	list := make([]core.PaymentConfirmation, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var c core.PaymentConfirmation
		if err := json.Unmarshal([]byte(str), &c); err != nil {
			return nil, fmt.Errorf("failed to decode confirmation: %w", err)
		}
		if !c.Expired(now) {
			list = append(list, c)
		}
	}
	return list, nil
}

// DeleteExpired prunes index entries whose record has already timed out in Redis
func (s *Store) DeleteExpired(ctx context.Context, _ time.Time) (int, error) {
	exts, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan confirmations: %w", err)
	}

	removed := 0
	for _, ext := range exts {
		n, err := s.rdb.Exists(ctx, s.recordKey(ext)).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to check confirmation: %w", err)
		}
		if n == 0 {
			s.rdb.ZRem(ctx, s.indexKey(), ext)
			removed++
		}
	}
	return removed, nil
}

// Append pushes evt to the head of the events list and trims its tail
func (s *Store) Append(ctx context.Context, evt core.WebhookEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.eventsKey(), data)
		pipe.LTrim(ctx, s.eventsKey(), 0, output.MaxRecentEvents-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append webhook event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	if limit <= 0 || limit > output.MaxRecentEvents {
		limit = output.MaxRecentEvents
	}
	raw, err := s.rdb.LRange(ctx, s.eventsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook events: %w", err)
	}

	events := make([]core.WebhookEvent, 0, len(raw))
	for _, item := range raw {
		var evt core.WebhookEvent
		if err := json.Unmarshal([]byte(item), &evt); err != nil {
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		events = append(events, evt)
	}
	return events, nil
}
