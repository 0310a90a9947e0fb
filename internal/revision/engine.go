package revision

import (
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"context"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"time"
)

// Engine is the only writer of article content and of the revision log.
// Every operation runs in one transaction: the article row is locked before the next version
// number is computed and both the article write and the revision appends commit or roll back together.
type Engine struct {
	*environment.Env
	now func() time.Time
}

func NewEngine(env *environment.Env) *Engine {
	return &Engine{Env: env, now: time.Now}
}

type CreateResult struct {
	Article  models.Article  `json:"article"`
	Revision models.Revision `json:"revision"`
}

type UpdateResult struct {
	Article models.Article `json:"article"`
	// Revision is nil if title, description and body did not change.
	Revision *models.Revision `json:"revision"`
}

// Changed reports whether the update appended a revision.
func (u *UpdateResult) Changed() bool {
	return u.Revision != nil
}

type RestoreResult struct {
	Article    models.Article  `json:"article"`
	Checkpoint models.Revision `json:"checkpoint"`
	Revision   models.Revision `json:"revision"`
}

// Create inserts a new article together with its first revision (version 1, CREATE).
func (e *Engine) Create(ctx context.Context, actorId uint, cmd CreateCommand) (*CreateResult, error) {
	if actorId == 0 {
		return nil, ErrUnauthenticated
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result := &CreateResult{}
	err := e.Transaction(ctx, func(tx database.Repository) error {
		if err := ensureSlugAvailable(ctx, tx, cmd.Slug, 0); err != nil {
			return err
		}
		if err := ensureCategoryExists(ctx, tx, cmd.CategoryID); err != nil {
			return err
		}

		article := models.Article{
			Slug:       cmd.Slug,
			Published:  cmd.Published,
			Featured:   cmd.Featured,
			CategoryID: cmd.CategoryID,
			AuthorID:   actorId,
		}
		article.ApplyContent(models.Content{Title: cmd.Title, Description: cmd.Description, Body: cmd.Body})
		if article.Published {
			publishedAt := e.now()
			article.PublishedAt = &publishedAt
		}

		if err := tx.CreateArticle(ctx, &article); err != nil {
			return err
		}
		if len(cmd.Tags) > 0 {
			if err := tx.ReplaceArticleTags(ctx, article.ID, tagsOf(cmd.Tags)); err != nil {
				return err
			}
		}

		revision := snapshot(article, models.ChangeKindCreate, actorId, "initial version")
		if err := tx.AppendRevision(ctx, &revision); err != nil {
			return err
		}

		result.Article = article
		result.Revision = revision
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "create", cmd.Slug, err)
	}

	e.LogInfof(logging.GetLogTypeRevision(logging.RequestId(ctx)), "created article %d (%s), version %d", result.Article.ID, result.Article.Slug, result.Revision.Version)
	e.invalidate(ctx, result.Article.Slug)
	return result, nil
}

// Update writes the metadata of cmd unconditionally and appends an UPDATE revision
// only if title, description or body changed.
func (e *Engine) Update(ctx context.Context, actorId uint, articleId uint, cmd UpdateCommand) (*UpdateResult, error) {
	if actorId == 0 {
		return nil, ErrUnauthenticated
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result := &UpdateResult{}
	var previousSlug string
	err := e.Transaction(ctx, func(tx database.Repository) error {
		var article models.Article
		if err := tx.LockArticleById(ctx, articleId, &article); err != nil {
			return err
		}
		previousSlug = article.Slug

		if cmd.Slug != nil && *cmd.Slug != article.Slug {
			if err := ensureSlugAvailable(ctx, tx, *cmd.Slug, article.ID); err != nil {
				return err
			}
			article.Slug = *cmd.Slug
		}
		if cmd.CategoryID != nil && *cmd.CategoryID != article.CategoryID {
			if err := ensureCategoryExists(ctx, tx, *cmd.CategoryID); err != nil {
				return err
			}
			article.CategoryID = *cmd.CategoryID
		}
		if cmd.Published != nil {
			article.Published = *cmd.Published
		}
		if cmd.Featured != nil {
			article.Featured = *cmd.Featured
		}
		if article.Published && article.PublishedAt == nil {
			publishedAt := e.now()
			article.PublishedAt = &publishedAt
		}

		current := article.Content()
		proposed := cmd.apply(current)
		changed := Changed(current, proposed)
		article.ApplyContent(proposed)

		if err := tx.UpdateArticle(ctx, &article); err != nil {
			return err
		}
		if cmd.Tags != nil {
			if err := tx.ReplaceArticleTags(ctx, article.ID, tagsOf(*cmd.Tags)); err != nil {
				return err
			}
		}

		if changed {
			next, err := nextVersion(ctx, tx, article.ID)
			if err != nil {
				return err
			}
			revision := snapshot(article, models.ChangeKindUpdate, actorId, fmt.Sprintf("version update %d", next))
			if err = tx.AppendRevision(ctx, &revision); err != nil {
				return err
			}
			result.Revision = &revision
		}

		result.Article = article
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "update", fmt.Sprint(articleId), err)
	}

	if result.Changed() {
		e.LogInfof(logging.GetLogTypeRevision(logging.RequestId(ctx)), "updated article %d, version %d", articleId, result.Revision.Version)
	} else {
		e.LogDebugf(logging.GetLogTypeRevision(logging.RequestId(ctx)), "updated metadata of article %d, content unchanged", articleId)
	}
	e.invalidate(ctx, previousSlug, result.Article.Slug)
	return result, nil
}

// UpdateBySlug resolves slug to its article and runs Update.
func (e *Engine) UpdateBySlug(ctx context.Context, actorId uint, slug string, cmd UpdateCommand) (*UpdateResult, error) {
	if actorId == 0 {
		return nil, ErrUnauthenticated
	}

	var article models.Article
	if err := e.FindArticleBySlug(ctx, slug, &article); err != nil {
		return nil, e.fail(ctx, "update", slug, err)
	}
	return e.Update(ctx, actorId, article.ID, cmd)
}

// Restore overwrites the content of an article with the snapshot of one of its revisions.
// The content being overwritten is appended first as an UPDATE checkpoint, followed by a RESTORE revision.
func (e *Engine) Restore(ctx context.Context, actorId uint, articleId uint, version uint) (*RestoreResult, error) {
	return e.restore(ctx, actorId, articleId, func(tx database.Repository, target *models.Revision) error {
		return tx.FindRevision(ctx, articleId, version, target)
	})
}

// RestoreRevision is Restore addressing the target by revision id instead of version.
// A revision of another article is reported as not found.
func (e *Engine) RestoreRevision(ctx context.Context, actorId uint, articleId uint, revisionId uint) (*RestoreResult, error) {
	return e.restore(ctx, actorId, articleId, func(tx database.Repository, target *models.Revision) error {
		return tx.FindRevisionById(ctx, articleId, revisionId, target)
	})
}

func (e *Engine) restore(ctx context.Context, actorId uint, articleId uint, findTarget func(tx database.Repository, target *models.Revision) error) (*RestoreResult, error) {
	if actorId == 0 {
		return nil, ErrUnauthenticated
	}

	result := &RestoreResult{}
	err := e.Transaction(ctx, func(tx database.Repository) error {
		var article models.Article
		if err := tx.LockArticleById(ctx, articleId, &article); err != nil {
			return err
		}

		var target models.Revision
		if err := findTarget(tx, &target); err != nil {
			return err
		}

		checkpoint := snapshot(article, models.ChangeKindUpdate, actorId, fmt.Sprintf("checkpoint before restoring version %d", target.Version))
		if err := tx.AppendRevision(ctx, &checkpoint); err != nil {
			return err
		}

		article.ApplyContent(target.Content())
		if err := tx.UpdateArticle(ctx, &article); err != nil {
			return err
		}

		restored := snapshot(article, models.ChangeKindRestore, actorId, fmt.Sprintf("restored from version %d", target.Version))
		if err := tx.AppendRevision(ctx, &restored); err != nil {
			return err
		}

		result.Article = article
		result.Checkpoint = checkpoint
		result.Revision = restored
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "restore", fmt.Sprint(articleId), err)
	}

	e.LogInfof(logging.GetLogTypeRevision(logging.RequestId(ctx)), "restored article %d, checkpoint version %d, restore version %d", articleId, result.Checkpoint.Version, result.Revision.Version)
	e.invalidate(ctx, result.Article.Slug)
	return result, nil
}

// History returns all revisions of an article, newest first, with their authors.
func (e *Engine) History(ctx context.Context, articleId uint) ([]models.Revision, error) {
	var article models.Article
	if err := e.FindArticleById(ctx, articleId, &article); err != nil {
		return nil, e.fail(ctx, "history", fmt.Sprint(articleId), err)
	}

	var revisions []models.Revision
	if err := e.FindRevisionsByArticleId(ctx, articleId, &revisions); err != nil {
		return nil, e.fail(ctx, "history", fmt.Sprint(articleId), err)
	}
	return revisions, nil
}

// Revision returns one revision of an article.
func (e *Engine) Revision(ctx context.Context, articleId uint, version uint) (*models.Revision, error) {
	var revision models.Revision
	if err := e.FindRevision(ctx, articleId, version, &revision); err != nil {
		return nil, e.fail(ctx, "revision", fmt.Sprint(articleId), err)
	}
	return &revision, nil
}

// fail classifies err and logs it; expected outcomes like not found are logged at debug level.
func (e *Engine) fail(ctx context.Context, operation string, subject string, err error) error {
	classified := Classify(err)

	logType := logging.GetLogTypeRevision(logging.RequestId(ctx))
	if errors.Is(classified, ErrUnavailable) {
		e.LogErrorf(logType, "%s %s failed: %v", operation, subject, classified)
	} else {
		e.LogDebugf(logType, "%s %s rejected: %v", operation, subject, classified)
	}
	return classified
}

// invalidate drops cached read models of the given slugs; the cache expires entries on its own
// so a failure is only logged.
func (e *Engine) invalidate(ctx context.Context, slugs ...string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.InvalidateArticles(ctx, slugs...); err != nil {
		e.LogWarnf(logging.GetLogTypeRevision(logging.RequestId(ctx)), "error invalidating cached articles %v: %v", slugs, err)
	}
}

func snapshot(article models.Article, kind models.ChangeKind, actorId uint, comment string) models.Revision {
	content := article.Content()
	return models.Revision{
		ArticleID:   article.ID,
		Title:       content.Title,
		Description: content.Description,
		Body:        content.Body,
		ChangeKind:  kind,
		Comment:     &comment,
		AuthorID:    actorId,
	}
}

// nextVersion returns the version the next appended revision receives; the article must be locked.
func nextVersion(ctx context.Context, tx database.Repository, articleId uint) (uint, error) {
	var latest models.Revision
	err := tx.FindLatestRevision(ctx, articleId, &latest)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}

func ensureSlugAvailable(ctx context.Context, tx database.Repository, slug string, ownerId uint) error {
	var existing models.Article
	err := tx.FindArticleBySlug(ctx, slug, &existing)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == ownerId {
		return nil
	}
	return fmt.Errorf("%w: slug %q is already used by article %d", ErrConflict, slug, existing.ID)
}

func ensureCategoryExists(ctx context.Context, tx database.Repository, categoryId uint) error {
	var category models.Category
	err := tx.FindCategoryById(ctx, categoryId, &category)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: category %d does not exist", ErrInvalidReference, categoryId)
	}
	return err
}
