package database

import (
	"content-wiki/internal/models"
	"content-wiki/internal/utils"
	"context"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"strings"
)

// columns written by UpdateArticle; views and author_id are never written
var articleUpdateColumns = []string{
	"title", "slug", "description", "body", "published", "featured", "published_at", "category_id", "updated_at",
}

func (g *GormRepository) FindArticleById(ctx context.Context, id uint, article *models.Article) error {
	return g.DB.
		WithContext(ctx).
		Where("id = ?", id).
		Take(article).
		Error
}

func (g *GormRepository) FindArticleBySlug(ctx context.Context, slug string, article *models.Article) error {
	return g.DB.
		WithContext(ctx).
		Preload("Category").
		Preload("Author").
		Preload("Tags").
		Where("slug = ?", slug).
		Take(article).
		Error
}

func (g *GormRepository) LockArticleById(ctx context.Context, id uint, article *models.Article) error {
	return g.DB.
		WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(article).
		Error
}

func (g *GormRepository) FindArticles(ctx context.Context, filter ArticleFilter, articles *[]models.Article) error {
	query := g.DB.
		WithContext(ctx).
		Preload("Category").
		Preload("Tags")

	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Published != nil {
		query = query.Where("published = ?", *filter.Published)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	return query.
		Order("featured DESC").
		Order("published_at DESC").
		Order("id DESC").
		Find(articles).
		Error
}

type revisionCount struct {
	ArticleID uint
	Count     int64
}

func (g *GormRepository) FindArticleListItems(ctx context.Context, items *[]models.ArticleListItem) error {
	var articles []models.Article
	err := g.DB.
		WithContext(ctx).
		Preload("Category").
		Order("updated_at DESC").
		Find(&articles).
		Error
	if err != nil {
		return err
	}

	var counts []revisionCount
	err = g.DB.
		WithContext(ctx).
		Model(&models.Revision{}).
		Select("article_id, COUNT(*) AS count").
		Group("article_id").
		Scan(&counts).
		Error
	if err != nil {
		return err
	}

	countByArticle := utils.SliceToMap(counts, func(c revisionCount) uint { return c.ArticleID })

	result := make([]models.ArticleListItem, 0, len(articles))
	for _, a := range articles {
		result = append(result, models.ArticleListItem{Article: a, RevisionCount: countByArticle[a.ID].Count})
	}
	*items = result
	return nil
}

func (g *GormRepository) FindArticlesBySearchTermSimple(ctx context.Context, searchTerm string, limit int, articles *[]models.Article) error {
	pattern := likePattern(searchTerm)
	return g.DB.
		WithContext(ctx).
		Preload("Category").
		Where("published = ?", true).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(body) LIKE ?", pattern, pattern, pattern).
		Order("featured DESC").
		Order("views DESC").
		Limit(limit).
		Find(articles).
		Error
}

func (g *GormRepository) CountArticlesMatchesBySearchTermSimple(ctx context.Context, searchTerm string, matchCount *int) error {
	pattern := likePattern(searchTerm)
	var count int64
	err := g.DB.
		WithContext(ctx).
		Model(&models.Article{}).
		Where("published = ?", true).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(body) LIKE ?", pattern, pattern, pattern).
		Count(&count).
		Error
	*matchCount = int(count)
	return err
}

func (g *GormRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	return g.DB.
		WithContext(ctx).
		Omit(clause.Associations).
		Create(article).
		Error
}

func (g *GormRepository) UpdateArticle(ctx context.Context, article *models.Article) error {
	return g.DB.
		WithContext(ctx).
		Model(article).
		Select(articleUpdateColumns).
		Updates(article).
		Error
}

func (g *GormRepository) ReplaceArticleTags(ctx context.Context, articleId uint, tags []models.Tag) error {
	db := g.DB.WithContext(ctx)

	if len(tags) > 0 {
		err := db.
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
			Create(&tags).
			Error
		if err != nil {
			return err
		}

		// ids of tags that already existed are not returned by the insert
		slugs := make([]string, 0, len(tags))
		for _, t := range tags {
			slugs = append(slugs, t.Slug)
		}
		tags = nil
		if err = db.Where("slug IN ?", slugs).Find(&tags).Error; err != nil {
			return err
		}
	}

	article := &models.Article{Model: models.Model{ID: articleId}}
	return db.
		Model(article).
		Omit("Tags.*").
		Association("Tags").
		Replace(tags)
}

func (g *GormRepository) IncrementArticleViews(ctx context.Context, id uint, views *uint) error {
	db := g.DB.WithContext(ctx)

	result := db.Exec("UPDATE articles SET views = views + 1 WHERE id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return db.
		Raw("SELECT views FROM articles WHERE id = ?", id).
		Scan(views).
		Error
}

func (g *GormRepository) DeleteArticleById(ctx context.Context, id uint) error {
	return g.DB.
		WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			// not every driver enforces ON DELETE CASCADE (sqlite without foreign keys)
			if err := tx.Where("article_id = ?", id).Delete(&models.Revision{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM article_tags WHERE article_id = ?", id).Error; err != nil {
				return err
			}
			result := tx.Delete(&models.Article{}, id)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		})
}

func likePattern(searchTerm string) string {
	return "%" + strings.ToLower(strings.TrimSpace(searchTerm)) + "%"
}
