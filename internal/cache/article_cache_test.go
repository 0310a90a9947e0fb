package cache_test

import (
	"content-wiki/internal/cache"
	"content-wiki/internal/models"
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisArticleCache_SetAndGet(t *testing.T) {
	_, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	ctx := context.Background()

	description := "all about caching"
	article := &models.Article{
		Model:       models.Model{ID: 7},
		Title:       "Caching",
		Slug:        "caching",
		Description: &description,
		Body:        "# Caching",
		Published:   true,
		Views:       3,
		Tags:        []models.Tag{{Model: models.Model{ID: 1}, Name: "Redis", Slug: "redis"}},
	}

	require.NoError(t, c.SetArticle(ctx, article, 0))

	var got models.Article
	hit, err := c.GetArticle(ctx, "caching", &got)
	require.NoError(t, err)
	require.True(t, hit)

	assert.Equal(t, article.ID, got.ID)
	assert.Equal(t, article.Title, got.Title)
	assert.Equal(t, *article.Description, *got.Description)
	assert.Equal(t, article.Body, got.Body)
	assert.Equal(t, article.Views, got.Views)
	assert.Equal(t, "redis", got.Tags[0].Slug)
}

func TestRedisArticleCache_Miss(t *testing.T) {
	_, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)

	var got models.Article
	hit, err := c.GetArticle(context.Background(), "unknown", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisArticleCache_Expiry(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetArticle(ctx, &models.Article{Slug: "short-lived"}, 0))
	assert.Equal(t, time.Minute, server.TTL("wiki:article:slug:short-lived"))

	server.FastForward(2 * time.Minute)

	var got models.Article
	hit, err := c.GetArticle(ctx, "short-lived", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisArticleCache_InvalidateArticles(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetArticle(ctx, &models.Article{Slug: "old-slug"}, 0))
	require.NoError(t, c.SetArticle(ctx, &models.Article{Slug: "other"}, 0))

	require.NoError(t, c.InvalidateArticles(ctx, "old-slug", "new-slug", ""))

	assert.False(t, server.Exists("wiki:article:slug:old-slug"))
	assert.True(t, server.Exists("wiki:article:slug:other"))

	require.NoError(t, c.InvalidateArticles(ctx))
}

func TestRedisArticleCache_Generation(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	ctx := context.Background()

	generation, err := c.Generation(ctx, "guide")
	require.NoError(t, err)
	assert.Zero(t, generation)

	require.NoError(t, c.InvalidateArticles(ctx, "guide"))
	require.NoError(t, c.InvalidateArticles(ctx, "guide", "other"))

	generation, err = c.Generation(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, int64(2), generation)
	assert.Equal(t, 24*time.Hour, server.TTL("wiki:article:generation:guide"))
}

func TestRedisArticleCache_StaleFillIsRejected(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	ctx := context.Background()

	// a reader reads the generation, a writer commits and invalidates, then the reader fills
	generation, err := c.Generation(ctx, "guide")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateArticles(ctx, "guide"))

	err = c.SetArticle(ctx, &models.Article{Slug: "guide", Title: "old"}, generation)
	assert.ErrorIs(t, err, cache.ErrStale)
	assert.False(t, server.Exists("wiki:article:slug:guide"))

	// a reader that started after the invalidation fills the cache
	generation, err = c.Generation(ctx, "guide")
	require.NoError(t, err)
	require.NoError(t, c.SetArticle(ctx, &models.Article{Slug: "guide", Title: "new"}, generation))

	var got models.Article
	hit, err := c.GetArticle(ctx, "guide", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "new", got.Title)
}

func TestRedisArticleCache_BrokenEntryIsMiss(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)

	require.NoError(t, server.Set("wiki:article:slug:broken", "{not json"))

	var got models.Article
	hit, err := c.GetArticle(context.Background(), "broken", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisArticleCache_Unavailable(t *testing.T) {
	server, client := setupRedis(t)
	c := cache.NewRedisArticleCache(client, time.Minute)
	server.Close()

	var got models.Article
	_, err := c.GetArticle(context.Background(), "any", &got)
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}

func TestNullArticleCache(t *testing.T) {
	c := &cache.NullArticleCache{}
	ctx := context.Background()

	require.NoError(t, c.SetArticle(ctx, &models.Article{Slug: "a"}, 0))

	generation, err := c.Generation(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, generation)

	var got models.Article
	hit, err := c.GetArticle(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.InvalidateArticles(ctx, "a"))
	assert.NoError(t, c.Ping(ctx))
}
