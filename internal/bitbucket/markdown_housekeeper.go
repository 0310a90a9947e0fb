package bitbucket

import (
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"context"
	"fmt"
	"strings"
	"time"
)

// MarkdownHousekeeper takes imported articles offline once their markdown file is gone.
type MarkdownHousekeeper interface {
	// UnpublishVanishedArticles unpublishes the published articles of the import category
	// whose slug is not in importedSlugs and returns the slugs of the unpublished articles.
	// Articles are never deleted, so their revision history stays available.
	UnpublishVanishedArticles(ctx context.Context, actorId uint, categoryId uint, importedSlugs map[string]struct{}) ([]string, error)
}

// DefaultMarkdownHousekeeper unpublishes articles through the revision engine.
type DefaultMarkdownHousekeeper struct {
	*environment.Env
	Engine *revision.Engine
}

// ensure DefaultMarkdownHousekeeper implements MarkdownHousekeeper
var _ MarkdownHousekeeper = &DefaultMarkdownHousekeeper{}

func (hk *DefaultMarkdownHousekeeper) UnpublishVanishedArticles(ctx context.Context, actorId uint, categoryId uint, importedSlugs map[string]struct{}) ([]string, error) {
	logType := logging.GetLogTypeImport()
	start := time.Now()

	published := true
	articles := make([]models.Article, 0)
	err := hk.FindArticles(ctx, database.ArticleFilter{CategoryID: &categoryId, Published: &published}, &articles)
	if err != nil {
		return nil, fmt.Errorf("error reading imported articles: %w", err)
	}

	vanished := make([]models.Article, 0)
	for _, a := range articles {
		if _, ok := importedSlugs[a.Slug]; !ok {
			vanished = append(vanished, a)
		}
	}

	if len(vanished) == 0 {
		hk.LogInfo(logType, "no vanished markdown files; nothing to unpublish")
		return []string{}, nil
	}

	unpublished := make([]string, 0, len(vanished))
	failed := make([]string, 0)
	for _, a := range vanished {
		_, err = hk.Engine.Update(ctx, actorId, a.ID, revision.UpdateCommand{Published: new(bool)})
		if err != nil {
			hk.LogErrorf(logType, "error unpublishing article %d (%s): %v", a.ID, a.Slug, err)
			failed = append(failed, a.Slug)
			continue
		}
		unpublished = append(unpublished, a.Slug)
	}

	hk.LogInfof(logType, "unpublished %d article(s) in %dms", len(unpublished), time.Since(start).Milliseconds())

	if len(failed) > 0 {
		return unpublished, fmt.Errorf("error unpublishing article(s): %s", strings.Join(failed, ", "))
	}
	return unpublished, nil
}
