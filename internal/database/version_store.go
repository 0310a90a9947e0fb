package database

import (
	"content-wiki/internal/models"
	"context"
)

func (g *GormRepository) AppendRevision(ctx context.Context, revision *models.Revision) error {
	db := g.DB.WithContext(ctx)

	var latest uint
	err := db.
		Model(&models.Revision{}).
		Select("COALESCE(MAX(version), 0)").
		Where("article_id = ?", revision.ArticleID).
		Scan(&latest).
		Error
	if err != nil {
		return err
	}

	revision.ID = 0
	revision.Version = latest + 1

	return db.
		Omit("Article", "Author").
		Create(revision).
		Error
}

func (g *GormRepository) FindLatestRevision(ctx context.Context, articleId uint, revision *models.Revision) error {
	return g.DB.
		WithContext(ctx).
		Where("article_id = ?", articleId).
		Order("version DESC").
		Take(revision).
		Error
}

func (g *GormRepository) FindRevision(ctx context.Context, articleId uint, version uint, revision *models.Revision) error {
	return g.DB.
		WithContext(ctx).
		Preload("Author").
		Where("article_id = ? AND version = ?", articleId, version).
		Take(revision).
		Error
}

func (g *GormRepository) FindRevisionById(ctx context.Context, articleId uint, revisionId uint, revision *models.Revision) error {
	return g.DB.
		WithContext(ctx).
		Preload("Author").
		Where("id = ? AND article_id = ?", revisionId, articleId).
		Take(revision).
		Error
}

func (g *GormRepository) FindRevisionsByArticleId(ctx context.Context, articleId uint, revisions *[]models.Revision) error {
	return g.DB.
		WithContext(ctx).
		Preload("Author").
		Where("article_id = ?", articleId).
		Order("version DESC").
		Find(revisions).
		Error
}
