package cache

import (
	"content-wiki/internal/config"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"slices"
	"time"
)

const (
	keyPrefixArticle    = "wiki:article:slug:"
	keyPrefixGeneration = "wiki:article:generation:"
	// generationTtl outlives every read that started before an invalidation
	generationTtl = 24 * time.Hour
)

// ErrStale is returned by SetArticle when the slug was invalidated after the generation was read.
var ErrStale = errors.New("article cache entry is stale")

// ArticleCache holds rendered article read models by slug.
// A miss is reported as (false, nil); errors are reserved for an unreachable cache.
//
// Every invalidation bumps the generation of a slug. Readers fill the cache in three steps:
// read the Generation, load the article from the database, then SetArticle with that generation.
// A fill whose generation is outdated is rejected with ErrStale, so a load that raced
// with a write never overwrites the invalidation of that write.
type ArticleCache interface {
	GetArticle(ctx context.Context, slug string, article *models.Article) (bool, error)
	Generation(ctx context.Context, slug string) (int64, error)
	SetArticle(ctx context.Context, article *models.Article, generation int64) error
	InvalidateArticles(ctx context.Context, slugs ...string) error
	Ping(ctx context.Context) error
}

// InitRedis connects to the redis server of the configuration.
// It returns nil without error if no redis host is configured.
func InitRedis(c *config.Configuration, l logging.Logger) (*redis.Client, error) {
	if len(c.Redis.Host) == 0 {
		l.LogInfo(nil, "no redis host configured, article cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		PoolSize: c.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		l.LogErrorf(nil, "error connecting to redis at %s: %v", client.Options().Addr, err)
		_ = client.Close()
		return nil, err
	}

	l.LogDebug(nil, "connected to Redis")
	return client, nil
}

// RedisArticleCache stores articles as JSON with a fixed time to live.
type RedisArticleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ensure RedisArticleCache implements ArticleCache
var _ ArticleCache = &RedisArticleCache{}

func NewRedisArticleCache(client *redis.Client, ttl time.Duration) *RedisArticleCache {
	return &RedisArticleCache{client: client, ttl: ttl}
}

func articleKey(slug string) string {
	return keyPrefixArticle + slug
}

func generationKey(slug string) string {
	return keyPrefixGeneration + slug
}

func (r *RedisArticleCache) GetArticle(ctx context.Context, slug string, article *models.Article) (bool, error) {
	data, err := r.client.Get(ctx, articleKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err = json.Unmarshal(data, article); err != nil {
		// a broken entry is a miss; it is overwritten by the next SetArticle
		return false, nil
	}
	return true, nil
}

// Generation returns the number of invalidations of slug, 0 if there were none.
func (r *RedisArticleCache) Generation(ctx context.Context, slug string) (int64, error) {
	generation, err := r.client.Get(ctx, generationKey(slug)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// SetArticle stores article if the generation of its slug still equals generation.
// The generation key is watched, so an invalidation between the check and the write aborts the write.
func (r *RedisArticleCache) SetArticle(ctx context.Context, article *models.Article, generation int64) error {
	data, err := json.Marshal(article)
	if err != nil {
		return err
	}

	genKey := generationKey(article.Slug)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, articleKey(article.Slug), data, r.ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// InvalidateArticles removes the entries of slugs and bumps their generations in one transaction.
func (r *RedisArticleCache) InvalidateArticles(ctx context.Context, slugs ...string) error {
	slugs = slices.DeleteFunc(slices.Clone(slugs), func(s string) bool { return len(s) == 0 })
	if len(slugs) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range slugs {
			pipe.Del(ctx, articleKey(s))
			pipe.Incr(ctx, generationKey(s))
			pipe.Expire(ctx, generationKey(s), generationTtl)
		}
		return nil
	})
	return err
}

func (r *RedisArticleCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NullArticleCache never holds anything.
type NullArticleCache struct{}

// ensure NullArticleCache implements ArticleCache
var _ ArticleCache = &NullArticleCache{}

func (n *NullArticleCache) GetArticle(ctx context.Context, slug string, article *models.Article) (bool, error) {
	return false, nil
}

func (n *NullArticleCache) Generation(ctx context.Context, slug string) (int64, error) {
	return 0, nil
}

func (n *NullArticleCache) SetArticle(ctx context.Context, article *models.Article, generation int64) error {
	return nil
}

func (n *NullArticleCache) InvalidateArticles(ctx context.Context, slugs ...string) error {
	return nil
}

func (n *NullArticleCache) Ping(ctx context.Context) error {
	return nil
}
