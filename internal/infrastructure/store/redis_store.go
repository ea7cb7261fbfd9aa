package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

const anonymousViewer = "anonymous"

// RedisMirror persists cache slots in Redis so a new session can warm its cache.
// Slots carry viewer flags, so every key is scoped to the viewer they were read for.
type RedisMirror struct {
	rdb      *redis.Client
	entryTTL time.Duration
	listTTL  time.Duration
	viewer   func() string
}

// MirrorOption configures a RedisMirror.
type MirrorOption func(*RedisMirror)

// WithViewer scopes keys to the identity returned by fn at the time of each call.
func WithViewer(fn func() string) MirrorOption {
	return func(c *RedisMirror) { c.viewer = fn }
}

func NewRedisMirror(rdb *redis.Client, opts ...MirrorOption) *RedisMirror {
	c := &RedisMirror{
		rdb:      rdb,
		entryTTL: 60 * time.Minute,
		listTTL:  30 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisMirror) viewerID() string {
	if c.viewer == nil {
		return anonymousViewer
	}
	if v := c.viewer(); v != "" {
		return v
	}
	return anonymousViewer
}

func (c *RedisMirror) entryKey(subjectID string) string {
	return fmt.Sprintf("engagement:%s:subject:%s", c.viewerID(), subjectID)
}

func (c *RedisMirror) listKey(key string) string {
	return fmt.Sprintf("engagement:%s:list:%s", c.viewerID(), key)
}

func (c *RedisMirror) GetEntry(ctx context.Context, subjectID string) (*entity.CacheEntry, bool, error) {
	var entry entity.CacheEntry
	found, err := c.get(ctx, c.entryKey(subjectID), &entry)
	if !found {
		return nil, false, err
	}
	return &entry, true, nil
}

func (c *RedisMirror) SetEntry(ctx context.Context, entry entity.CacheEntry) error {
	return c.set(ctx, c.entryKey(entry.SubjectID), entry, c.entryTTL)
}

func (c *RedisMirror) GetListPage(ctx context.Context, key string) (*entity.ListPage, bool, error) {
	var page entity.ListPage
	found, err := c.get(ctx, c.listKey(key), &page)
	if !found {
		return nil, false, err
	}
	return &page, true, nil
}

func (c *RedisMirror) SetListPage(ctx context.Context, page entity.ListPage) error {
	return c.set(ctx, c.listKey(page.Key), page, c.listTTL)
}

func (c *RedisMirror) DeleteListPage(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.listKey(key)).Err()
}

// InvalidateListPages drops every mirrored list page of every viewer.
func (c *RedisMirror) InvalidateListPages(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, "engagement:*:list:*", 1000).Iterator()
	pipe := c.rdb.Pipeline()
	n := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		n++
		if n%200 == 0 {
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, _ = pipe.Exec(ctx)
	return nil
}

func (c *RedisMirror) get(ctx context.Context, key string, dst interface{}) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// a corrupt slot is treated as a miss
		return false, nil
	}
	return true, nil
}

func (c *RedisMirror) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

var _ contract.ICacheMirror = (*RedisMirror)(nil)
