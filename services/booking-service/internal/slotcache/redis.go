package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const (
	genKey        = "staffbook:slots:gen"
	versionPrefix = "staffbook:slots:ver:"
	dataPrefix    = "staffbook:slots:data:"

	versionTTL = 7 * 24 * time.Hour
)

// Redis namespaces entries by a global generation and a per-date version. Invalidation bumps
// a counter instead of scanning keys; stale entries age out through their TTL.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

type entry struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	CollaboratorID string    `json:"collaborator_id"`
}

func (r *Redis) dataKey(ctx context.Context, k Key) (string, error) {
	vals, err := r.client.MGet(ctx, genKey, versionPrefix+k.Date).Result()
	if err != nil {
		return "", err
	}
	gen, ver := counter(vals[0]), counter(vals[1])
	return fmt.Sprintf("%s%s:%s:%s:%s:%s", dataPrefix, gen, ver, k.Date, k.ServiceID, k.CollaboratorID), nil
}

func counter(v any) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return "0"
}

// Get resolves the data key from the counters before reading, and hands that key back as the
// ticket so a later Set cannot land under a version bumped in between.
func (r *Redis) Get(ctx context.Context, k Key) ([]availability.Candidate, Ticket, bool) {
	key, err := r.dataKey(ctx, k)
	if err != nil {
		r.logger.Warn("slot cache unavailable", "err", err)
		return nil, "", false
	}
	t := Ticket(key)
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, t, false
	}
	if err != nil {
		r.logger.Warn("slot cache get failed", "err", err)
		return nil, t, false
	}
	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		r.logger.Warn("slot cache entry corrupt", "key", key, "err", err)
		return nil, t, false
	}
	out := make([]availability.Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, availability.Candidate(e))
	}
	return out, t, true
}

func (r *Redis) Set(ctx context.Context, t Ticket, cs []availability.Candidate) {
	if t == "" {
		return
	}
	key := string(t)
	entries := make([]entry, 0, len(cs))
	for _, c := range cs {
		entries = append(entries, entry(c))
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("slot cache set failed", "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, date string) {
	key := versionPrefix + date
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("slot cache invalidate failed", "date", date, "err", err)
	}
}

func (r *Redis) InvalidateAll(ctx context.Context) {
	if err := r.client.Incr(ctx, genKey).Err(); err != nil {
		r.logger.Warn("slot cache invalidate failed", "err", err)
	}
}
