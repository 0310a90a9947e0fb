package database

import (
	"content-wiki/internal/models"
	"context"
	"gorm.io/gorm"
)

// Repository defines data access methods for users, categories, articles and their revisions.
//
// Article methods form the Article Repository (the mutable "current" projection), revision methods
// form the Version Store (the append-only log). Writes spanning both must run inside Transaction.
//
// @Summary Interface for wiki data storage operations
type Repository interface {

	// Transaction runs fn inside a single database transaction. fn receives a Repository bound to
	// that transaction; the transaction commits if fn returns nil and rolls back otherwise.
	// Calling Transaction on a transaction-bound Repository joins the running transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// FindUserLoginCredentials fetches the user record with the specified username.
	//
	// Param username path string true "Username"
	FindUserLoginCredentials(ctx context.Context, username string, user *models.User) error

	// FindUserById fetches the user with the given id.
	FindUserById(ctx context.Context, id uint, user *models.User) error

	// CreateUser inserts a new user; plain text passwords are hashed by the model hook.
	CreateUser(ctx context.Context, user *models.User) error

	// FindAllCategories fetches all categories ordered by position and title.
	FindAllCategories(ctx context.Context, categories *[]models.Category) error

	FindCategoryById(ctx context.Context, id uint, category *models.Category) error

	FindCategoryBySlug(ctx context.Context, slug string, category *models.Category) error

	// FindMaxCategoryPosition returns the highest position among the children of parentId
	// (root categories if parentId is nil), 0 if there are none.
	FindMaxCategoryPosition(ctx context.Context, parentId *uint, maxPosition *int) error

	CreateCategory(ctx context.Context, category *models.Category) error

	// UpdateCategory writes title, slug, description, icon, position and parent of category.
	UpdateCategory(ctx context.Context, category *models.Category) error

	// CountCategoryDependents counts the articles and the direct child categories of a category.
	CountCategoryDependents(ctx context.Context, id uint, articleCount *int64, childCount *int64) error

	DeleteCategoryById(ctx context.Context, id uint) error

	// FindArticleById fetches the current projection of an article without associations.
	FindArticleById(ctx context.Context, id uint, article *models.Article) error

	// FindArticleBySlug fetches an article including its category, author and tags.
	FindArticleBySlug(ctx context.Context, slug string, article *models.Article) error

	// LockArticleById fetches an article and holds a row lock on it until the surrounding
	// transaction ends. Must be called inside Transaction.
	LockArticleById(ctx context.Context, id uint, article *models.Article) error

	// FindArticles fetches articles matching filter, featured first and newest publication first.
	FindArticles(ctx context.Context, filter ArticleFilter, articles *[]models.Article) error

	// FindArticleListItems fetches all articles with the number of their revisions.
	FindArticleListItems(ctx context.Context, items *[]models.ArticleListItem) error

	// FindArticlesBySearchTermSimple fetches published articles whose title, description or body
	// contains searchTerm (case-insensitive), at most limit rows.
	FindArticlesBySearchTermSimple(ctx context.Context, searchTerm string, limit int, articles *[]models.Article) error

	CountArticlesMatchesBySearchTermSimple(ctx context.Context, searchTerm string, matchCount *int) error

	// CreateArticle inserts a new article. Tags are not written; see ReplaceArticleTags.
	CreateArticle(ctx context.Context, article *models.Article) error

	// UpdateArticle writes content and metadata columns of an existing article.
	// The view counter and author are never written.
	UpdateArticle(ctx context.Context, article *models.Article) error

	// ReplaceArticleTags sets the tags of an article, creating unknown tags on the fly.
	ReplaceArticleTags(ctx context.Context, articleId uint, tags []models.Tag) error

	// IncrementArticleViews adds one to the view counter and returns the new value.
	IncrementArticleViews(ctx context.Context, id uint, views *uint) error

	// DeleteArticleById removes an article; its revisions are removed by cascade.
	DeleteArticleById(ctx context.Context, id uint) error

	// AppendRevision assigns the next version number of the revision's article and inserts it.
	// The caller must hold the article's row lock (LockArticleById) in the same transaction,
	// or have created the article in it.
	AppendRevision(ctx context.Context, revision *models.Revision) error

	// FindLatestRevision fetches the revision with the highest version of an article.
	FindLatestRevision(ctx context.Context, articleId uint, revision *models.Revision) error

	// FindRevision fetches the revision with the given version of the given article, including its author.
	FindRevision(ctx context.Context, articleId uint, version uint, revision *models.Revision) error

	// FindRevisionById fetches a revision by id; a revision of another article is reported as not found.
	FindRevisionById(ctx context.Context, articleId uint, revisionId uint, revision *models.Revision) error

	// FindRevisionsByArticleId fetches all revisions of an article descending by version, including authors.
	FindRevisionsByArticleId(ctx context.Context, articleId uint, revisions *[]models.Revision) error
}

// ArticleFilter narrows FindArticles. Nil fields do not filter; Limit <= 0 means no limit.
type ArticleFilter struct {
	CategoryID *uint
	Published  *bool
	Featured   *bool
	Limit      int
}

// NullRepository is a no-op implementation of the Repository interface.
// Useful for testing or default wiring when no database operations are required.
type NullRepository struct{}

// ensure NullRepository implements Repository
var _ Repository = &NullRepository{}

func (n *NullRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return fn(n)
}

func (n *NullRepository) FindUserLoginCredentials(ctx context.Context, username string, user *models.User) error {
	return nil
}

func (n *NullRepository) FindUserById(ctx context.Context, id uint, user *models.User) error {
	return nil
}

func (n *NullRepository) CreateUser(ctx context.Context, user *models.User) error {
	return nil
}

func (n *NullRepository) FindAllCategories(ctx context.Context, categories *[]models.Category) error {
	return nil
}

func (n *NullRepository) FindCategoryById(ctx context.Context, id uint, category *models.Category) error {
	return nil
}

func (n *NullRepository) FindCategoryBySlug(ctx context.Context, slug string, category *models.Category) error {
	return nil
}

func (n *NullRepository) FindMaxCategoryPosition(ctx context.Context, parentId *uint, maxPosition *int) error {
	return nil
}

func (n *NullRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	return nil
}

func (n *NullRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return nil
}

func (n *NullRepository) CountCategoryDependents(ctx context.Context, id uint, articleCount *int64, childCount *int64) error {
	return nil
}

func (n *NullRepository) DeleteCategoryById(ctx context.Context, id uint) error {
	return nil
}

func (n *NullRepository) FindArticleById(ctx context.Context, id uint, article *models.Article) error {
	return nil
}

func (n *NullRepository) FindArticleBySlug(ctx context.Context, slug string, article *models.Article) error {
	return nil
}

func (n *NullRepository) LockArticleById(ctx context.Context, id uint, article *models.Article) error {
	return nil
}

func (n *NullRepository) FindArticles(ctx context.Context, filter ArticleFilter, articles *[]models.Article) error {
	return nil
}

func (n *NullRepository) FindArticleListItems(ctx context.Context, items *[]models.ArticleListItem) error {
	return nil
}

func (n *NullRepository) FindArticlesBySearchTermSimple(ctx context.Context, searchTerm string, limit int, articles *[]models.Article) error {
	return nil
}

func (n *NullRepository) CountArticlesMatchesBySearchTermSimple(ctx context.Context, searchTerm string, matchCount *int) error {
	return nil
}

func (n *NullRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	return nil
}

func (n *NullRepository) UpdateArticle(ctx context.Context, article *models.Article) error {
	return nil
}

func (n *NullRepository) ReplaceArticleTags(ctx context.Context, articleId uint, tags []models.Tag) error {
	return nil
}

func (n *NullRepository) IncrementArticleViews(ctx context.Context, id uint, views *uint) error {
	return nil
}

func (n *NullRepository) DeleteArticleById(ctx context.Context, id uint) error {
	return nil
}

func (n *NullRepository) AppendRevision(ctx context.Context, revision *models.Revision) error {
	return nil
}

func (n *NullRepository) FindLatestRevision(ctx context.Context, articleId uint, revision *models.Revision) error {
	return nil
}

func (n *NullRepository) FindRevision(ctx context.Context, articleId uint, version uint, revision *models.Revision) error {
	return nil
}

func (n *NullRepository) FindRevisionById(ctx context.Context, articleId uint, revisionId uint, revision *models.Revision) error {
	return nil
}

func (n *NullRepository) FindRevisionsByArticleId(ctx context.Context, articleId uint, revisions *[]models.Revision) error {
	return nil
}

// GormRepository provides a GORM-based implementation of the Repository interface.
type GormRepository struct {
	*gorm.DB
}

// ensure GormRepository implements Repository
var _ Repository = &GormRepository{}

func (g *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return g.DB.
		WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			return fn(&GormRepository{DB: tx})
		})
}

// Ping checks that the database is reachable.
func (g *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormRepository) FindUserLoginCredentials(ctx context.Context, username string, user *models.User) error {
	return g.DB.
		WithContext(ctx).
		Model(models.User{}).
		Where("username = ?", username).
		Take(user).
		Error
}

func (g *GormRepository) FindUserById(ctx context.Context, id uint, user *models.User) error {
	return g.DB.
		WithContext(ctx).
		Where("id = ?", id).
		Take(user).
		Error
}

func (g *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	return g.DB.
		WithContext(ctx).
		Create(user).
		Error
}

func (g *GormRepository) FindAllCategories(ctx context.Context, categories *[]models.Category) error {
	return g.DB.
		WithContext(ctx).
		Order("position ASC").
		Order("title ASC").
		Find(categories).
		Error
}

func (g *GormRepository) FindCategoryById(ctx context.Context, id uint, category *models.Category) error {
	return g.DB.
		WithContext(ctx).
		Where("id = ?", id).
		Take(category).
		Error
}

func (g *GormRepository) FindCategoryBySlug(ctx context.Context, slug string, category *models.Category) error {
	return g.DB.
		WithContext(ctx).
		Where("slug = ?", slug).
		Take(category).
		Error
}

func (g *GormRepository) FindMaxCategoryPosition(ctx context.Context, parentId *uint, maxPosition *int) error {
	query := g.DB.
		WithContext(ctx).
		Model(&models.Category{}).
		Select("COALESCE(MAX(position), 0)")

	if parentId == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentId)
	}

	return query.Scan(maxPosition).Error
}

func (g *GormRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	return g.DB.
		WithContext(ctx).
		Omit("Parent").
		Create(category).
		Error
}

func (g *GormRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return g.DB.
		WithContext(ctx).
		Model(category).
		Select("title", "slug", "description", "icon", "position", "parent_id", "updated_at").
		Updates(category).
		Error
}

func (g *GormRepository) CountCategoryDependents(ctx context.Context, id uint, articleCount *int64, childCount *int64) error {
	db := g.DB.WithContext(ctx)

	err := db.
		Model(&models.Article{}).
		Where("category_id = ?", id).
		Count(articleCount).
		Error
	if err != nil {
		return err
	}

	return db.
		Model(&models.Category{}).
		Where("parent_id = ?", id).
		Count(childCount).
		Error
}

func (g *GormRepository) DeleteCategoryById(ctx context.Context, id uint) error {
	result := g.DB.
		WithContext(ctx).
		Delete(&models.Category{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
