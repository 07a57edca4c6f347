package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
)

// NewRedisFromEnv returns (nil, nil) when REDIS_ADDR is unset; the cache is
// optional and callers fall through to the base provider without it.
func NewRedisFromEnv(log *logger.Logger) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type cachedProvider struct {
	log  *logger.Logger
	base Provider
	rdb  *goredis.Client
	ttl  time.Duration
}

// NewCached wraps a provider with a redis read-through cache keyed by model
// and content hash. Cache failures degrade to the base provider.
func NewCached(log *logger.Logger, base Provider, rdb *goredis.Client, ttl time.Duration) Provider {
	if rdb == nil {
		return base
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &cachedProvider{
		log:  log.With("service", "EmbeddingCache"),
		base: base,
		rdb:  rdb,
		ttl:  ttl,
	}
}

func (c *cachedProvider) EmbedModel() string { return c.base.EmbedModel() }

func (c *cachedProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(inputs))
	missIdx := make([]int, 0, len(inputs))
	missTexts := make([]string, 0, len(inputs))

	for i, text := range inputs {
		key := c.key(text)
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var vec []float32
			if jErr := json.Unmarshal(raw, &vec); jErr == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
		} else if err != goredis.Nil {
			c.log.Warn("Embedding cache read failed", "error", err)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.base.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
		if b, jErr := json.Marshal(fresh[j]); jErr == nil {
			if sErr := c.rdb.Set(ctx, c.key(inputs[i]), b, c.ttl).Err(); sErr != nil {
				c.log.Warn("Embedding cache write failed", "error", sErr)
			}
		}
	}
	return out, nil
}

func (c *cachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.base.EmbedModel() + ":" + hex.EncodeToString(sum[:])
}
