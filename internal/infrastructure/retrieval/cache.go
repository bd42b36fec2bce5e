package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
)

// RedisOptions configures the response cache connection.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// KeyValue is the part of a redis client the cache uses.
type KeyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// OpenRedis connects to the configured server.
func OpenRedis(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// CachedBackend memoises successful adapter responses in redis. Cache
// errors are logged and bypassed; adapter errors are never cached.
type CachedBackend struct {
	next   retrieval.Backend
	kv     KeyValue
	ttl    time.Duration
	logger *slog.Logger
}

var _ retrieval.Backend = (*CachedBackend)(nil)

func NewCachedBackend(next retrieval.Backend, kv KeyValue, ttl time.Duration, logger *slog.Logger) *CachedBackend {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedBackend{next: next, kv: kv, ttl: ttl, logger: logger}
}

func (c *CachedBackend) SimilaritySearch(ctx context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	return cached(ctx, c, "vector", q, func() (*retrieval.Response, error) {
		return c.next.SimilaritySearch(ctx, q)
	})
}

func (c *CachedBackend) GraphTraverse(ctx context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	return cached(ctx, c, "graph", q, func() (*retrieval.Response, error) {
		return c.next.GraphTraverse(ctx, q)
	})
}

func (c *CachedBackend) OntologyCoverage(ctx context.Context, q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	return cached(ctx, c, "ontology", q, func() (*retrieval.CoverageReport, error) {
		return c.next.OntologyCoverage(ctx, q)
	})
}

func cacheKey(source string, q any) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "smartreviewer:retrieval:" + source + ":" + hex.EncodeToString(sum[:]), nil
}

func cached[T any](ctx context.Context, c *CachedBackend, source string, q any, call func() (*T, error)) (*T, error) {
	key, err := cacheKey(source, q)
	if err != nil {
		return call()
	}

	s, err := c.kv.Get(ctx, key).Result()
	switch {
	case err == nil:
		var hit T
		if jerr := json.Unmarshal([]byte(s), &hit); jerr == nil {
			return &hit, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("retrieval cache unavailable", "source", source, "error", err)
	}

	out, err := call()
	if err != nil || out == nil {
		return out, err
	}
	if data, jerr := json.Marshal(out); jerr == nil {
		if serr := c.kv.Set(ctx, key, string(data), c.ttl).Err(); serr != nil {
			c.logger.Warn("retrieval cache write failed", "source", source, "error", serr)
		}
	}
	return out, nil
}
