package database_test

import (
	"content-wiki/internal/database"
	"content-wiki/internal/models"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"testing"
)

// seedMemory creates one user, one category and one article without revisions.
func seedMemory(t *testing.T) (*database.MemoryRepository, models.User, models.Category, models.Article) {
	t.Helper()
	ctx := context.Background()
	repo := database.NewMemoryRepository()

	user := models.User{Username: "alice", Email: "alice@example.com", Password: "secret"}
	require.NoError(t, repo.CreateUser(ctx, &user))

	category := models.Category{Title: "Guides", Slug: "guides"}
	require.NoError(t, repo.CreateCategory(ctx, &category))

	article := models.Article{Title: "Hello", Slug: "hello", Body: "# Hello", CategoryID: category.ID, AuthorID: user.ID}
	require.NoError(t, repo.CreateArticle(ctx, &article))

	return repo, user, category, article
}

// ####################### MemoryRepository
func TestMemoryRepository_CreateUser(t *testing.T) {
	repo, user, _, _ := seedMemory(t)
	ctx := context.Background()

	assert.NotEqual(t, "secret", user.Password)
	assert.NoError(t, models.VerifyPassword(user.Password, "secret"))
	assert.Equal(t, models.RoleEditor, user.Role)

	var found models.User
	require.NoError(t, repo.FindUserLoginCredentials(ctx, "alice", &found))
	assert.Equal(t, user.ID, found.ID)

	duplicate := models.User{Username: "alice", Email: "other@example.com", Password: "x"}
	assert.ErrorIs(t, repo.CreateUser(ctx, &duplicate), gorm.ErrDuplicatedKey)

	assert.ErrorIs(t, repo.FindUserById(ctx, 999, &found), gorm.ErrRecordNotFound)
}

func TestMemoryRepository_Categories(t *testing.T) {
	repo, _, guides, _ := seedMemory(t)
	ctx := context.Background()

	child := models.Category{Title: "Setup", Slug: "setup", ParentID: &guides.ID, Order: 2}
	require.NoError(t, repo.CreateCategory(ctx, &child))

	missingParent := uint(999)
	orphan := models.Category{Title: "Orphan", Slug: "orphan", ParentID: &missingParent}
	assert.ErrorIs(t, repo.CreateCategory(ctx, &orphan), gorm.ErrForeignKeyViolated)

	duplicate := models.Category{Title: "Guides again", Slug: "guides"}
	assert.ErrorIs(t, repo.CreateCategory(ctx, &duplicate), gorm.ErrDuplicatedKey)

	var maxPosition int
	require.NoError(t, repo.FindMaxCategoryPosition(ctx, &guides.ID, &maxPosition))
	assert.Equal(t, 2, maxPosition)
	require.NoError(t, repo.FindMaxCategoryPosition(ctx, nil, &maxPosition))
	assert.Equal(t, 0, maxPosition)

	var all []models.Category
	require.NoError(t, repo.FindAllCategories(ctx, &all))
	assert.Len(t, all, 2)

	var bySlug models.Category
	require.NoError(t, repo.FindCategoryBySlug(ctx, "setup", &bySlug))
	assert.Equal(t, child.ID, bySlug.ID)
}

func TestMemoryRepository_ArticleConstraints(t *testing.T) {
	repo, user, category, article := seedMemory(t)
	ctx := context.Background()

	sameSlug := models.Article{Title: "Other", Slug: "hello", CategoryID: category.ID, AuthorID: user.ID}
	assert.ErrorIs(t, repo.CreateArticle(ctx, &sameSlug), gorm.ErrDuplicatedKey)

	unknownCategory := models.Article{Title: "Other", Slug: "other", CategoryID: 999, AuthorID: user.ID}
	assert.ErrorIs(t, repo.CreateArticle(ctx, &unknownCategory), gorm.ErrForeignKeyViolated)

	second := models.Article{Title: "Second", Slug: "second", CategoryID: category.ID, AuthorID: user.ID}
	require.NoError(t, repo.CreateArticle(ctx, &second))

	second.Slug = article.Slug
	assert.ErrorIs(t, repo.UpdateArticle(ctx, &second), gorm.ErrDuplicatedKey)
}

func TestMemoryRepository_UpdateArticleKeepsViews(t *testing.T) {
	repo, _, _, article := seedMemory(t)
	ctx := context.Background()

	var views uint
	require.NoError(t, repo.IncrementArticleViews(ctx, article.ID, &views))
	require.NoError(t, repo.IncrementArticleViews(ctx, article.ID, &views))
	assert.Equal(t, uint(2), views)

	article.Title = "Hello again"
	article.Views = 0
	require.NoError(t, repo.UpdateArticle(ctx, &article))

	var found models.Article
	require.NoError(t, repo.FindArticleById(ctx, article.ID, &found))
	assert.Equal(t, "Hello again", found.Title)
	assert.Equal(t, uint(2), found.Views)

	assert.ErrorIs(t, repo.IncrementArticleViews(ctx, 999, &views), gorm.ErrRecordNotFound)
}

func TestMemoryRepository_ViewsDoNotWaitForWriters(t *testing.T) {
	repo, _, _, article := seedMemory(t)
	ctx := context.Background()

	inTransaction, release := make(chan struct{}), make(chan struct{})
	committed := make(chan error, 1)
	go func() {
		committed <- repo.Transaction(ctx, func(tx database.Repository) error {
			changed := article
			changed.Title = "Changed"
			if err := tx.UpdateArticle(ctx, &changed); err != nil {
				return err
			}
			close(inTransaction)
			<-release
			return nil
		})
	}()
	<-inTransaction

	// the writer lock is held; counting views must still complete
	var views uint
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementArticleViews(ctx, article.ID, &views))
	}
	assert.Equal(t, uint(3), views)

	close(release)
	require.NoError(t, <-committed)

	// views counted during the transaction survive its commit
	var found models.Article
	require.NoError(t, repo.FindArticleById(ctx, article.ID, &found))
	assert.Equal(t, "Changed", found.Title)
	assert.Equal(t, uint(3), found.Views)
}

func TestMemoryRepository_AppendRevision(t *testing.T) {
	repo, user, _, article := seedMemory(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		revision := models.Revision{ArticleID: article.ID, Title: article.Title, Body: article.Body, ChangeKind: models.ChangeKindUpdate, AuthorID: user.ID}
		require.NoError(t, repo.AppendRevision(ctx, &revision))
		assert.Equal(t, uint(i), revision.Version)
	}

	var latest models.Revision
	require.NoError(t, repo.FindLatestRevision(ctx, article.ID, &latest))
	assert.Equal(t, uint(3), latest.Version)

	var history []models.Revision
	require.NoError(t, repo.FindRevisionsByArticleId(ctx, article.ID, &history))
	require.Len(t, history, 3)
	assert.Equal(t, uint(3), history[0].Version)
	assert.Equal(t, uint(1), history[2].Version)
	assert.Equal(t, "alice", history[0].Author.Name())

	var byVersion models.Revision
	require.NoError(t, repo.FindRevision(ctx, article.ID, 2, &byVersion))
	assert.Equal(t, uint(2), byVersion.Version)

	var byId models.Revision
	require.NoError(t, repo.FindRevisionById(ctx, article.ID, byVersion.ID, &byId))
	assert.Equal(t, uint(2), byId.Version)
	assert.ErrorIs(t, repo.FindRevisionById(ctx, article.ID+1, byVersion.ID, &byId), gorm.ErrRecordNotFound)

	orphan := models.Revision{ArticleID: 999, AuthorID: user.ID}
	assert.ErrorIs(t, repo.AppendRevision(ctx, &orphan), gorm.ErrForeignKeyViolated)
}

func TestMemoryRepository_TransactionRollback(t *testing.T) {
	repo, user, _, article := seedMemory(t)
	ctx := context.Background()
	failure := errors.New("revision insert failed")

	err := repo.Transaction(ctx, func(tx database.Repository) error {
		var locked models.Article
		if err := tx.LockArticleById(ctx, article.ID, &locked); err != nil {
			return err
		}
		locked.Title = "Changed"
		if err := tx.UpdateArticle(ctx, &locked); err != nil {
			return err
		}
		if err := tx.AppendRevision(ctx, &models.Revision{ArticleID: article.ID, Title: locked.Title, AuthorID: user.ID}); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	var found models.Article
	require.NoError(t, repo.FindArticleById(ctx, article.ID, &found))
	assert.Equal(t, "Hello", found.Title)

	var latest models.Revision
	assert.ErrorIs(t, repo.FindLatestRevision(ctx, article.ID, &latest), gorm.ErrRecordNotFound)
}

func TestMemoryRepository_TransactionCanceledContext(t *testing.T) {
	repo, _, _, _ := seedMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.Transaction(ctx, func(tx database.Repository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryRepository_TagsAndListItems(t *testing.T) {
	repo, user, category, article := seedMemory(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceArticleTags(ctx, article.ID, []models.Tag{{Name: "Go", Slug: "go"}, {Name: "Wiki", Slug: "wiki"}}))
	require.NoError(t, repo.ReplaceArticleTags(ctx, article.ID, []models.Tag{{Name: "Go", Slug: "go"}}))

	var found models.Article
	require.NoError(t, repo.FindArticleBySlug(ctx, "hello", &found))
	require.Len(t, found.Tags, 1)
	assert.Equal(t, "go", found.Tags[0].Slug)
	assert.Equal(t, "Guides", found.Category.Title)
	assert.Equal(t, "alice", found.Author.Username)

	require.NoError(t, repo.AppendRevision(ctx, &models.Revision{ArticleID: article.ID, Title: "Hello", AuthorID: user.ID}))

	second := models.Article{Title: "Second", Slug: "second", CategoryID: category.ID, AuthorID: user.ID}
	require.NoError(t, repo.CreateArticle(ctx, &second))

	var items []models.ArticleListItem
	require.NoError(t, repo.FindArticleListItems(ctx, &items))
	require.Len(t, items, 2)

	counts := map[string]int64{}
	for _, i := range items {
		counts[i.Slug] = i.RevisionCount
	}
	assert.Equal(t, map[string]int64{"hello": 1, "second": 0}, counts)
}

func TestMemoryRepository_SearchAndFilter(t *testing.T) {
	repo, user, category, article := seedMemory(t)
	ctx := context.Background()

	description := "a guide about Gardening"
	published := models.Article{Title: "Plants", Slug: "plants", Description: &description, Body: "water them", Published: true, Featured: true, CategoryID: category.ID, AuthorID: user.ID}
	require.NoError(t, repo.CreateArticle(ctx, &published))

	var matches []models.Article
	require.NoError(t, repo.FindArticlesBySearchTermSimple(ctx, "gardening", 10, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "plants", matches[0].Slug)

	var count int
	require.NoError(t, repo.CountArticlesMatchesBySearchTermSimple(ctx, "hello", &count))
	assert.Equal(t, 0, count, "unpublished articles are not searchable")

	isPublished := true
	var list []models.Article
	require.NoError(t, repo.FindArticles(ctx, database.ArticleFilter{Published: &isPublished}, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "plants", list[0].Slug)

	require.NoError(t, repo.FindArticles(ctx, database.ArticleFilter{CategoryID: &category.ID}, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "plants", list[0].Slug, "featured articles come first")

	require.NoError(t, repo.DeleteArticleById(ctx, article.ID))
	assert.ErrorIs(t, repo.DeleteArticleById(ctx, article.ID), gorm.ErrRecordNotFound)
}

func TestMemoryRepository_UpdateAndDeleteCategory(t *testing.T) {
	repo, _, guides, article := seedMemory(t)
	ctx := context.Background()

	reference := models.Category{Title: "Reference", Slug: "reference"}
	require.NoError(t, repo.CreateCategory(ctx, &reference))
	child := models.Category{Title: "Setup", Slug: "setup", ParentID: &reference.ID}
	require.NoError(t, repo.CreateCategory(ctx, &child))

	renamed := reference
	renamed.Title = "API Reference"
	require.NoError(t, repo.UpdateCategory(ctx, &renamed))
	var found models.Category
	require.NoError(t, repo.FindCategoryById(ctx, reference.ID, &found))
	assert.Equal(t, "API Reference", found.Title)
	assert.Equal(t, reference.CreatedAt, found.CreatedAt)

	taken := reference
	taken.Slug = "guides"
	assert.ErrorIs(t, repo.UpdateCategory(ctx, &taken), gorm.ErrDuplicatedKey)

	missingParent := uint(999)
	dangling := reference
	dangling.ParentID = &missingParent
	assert.ErrorIs(t, repo.UpdateCategory(ctx, &dangling), gorm.ErrForeignKeyViolated)

	var articleCount, childCount int64
	require.NoError(t, repo.CountCategoryDependents(ctx, guides.ID, &articleCount, &childCount))
	assert.Equal(t, int64(1), articleCount)
	assert.Equal(t, int64(0), childCount)
	require.NoError(t, repo.CountCategoryDependents(ctx, reference.ID, &articleCount, &childCount))
	assert.Equal(t, int64(0), articleCount)
	assert.Equal(t, int64(1), childCount)

	assert.ErrorIs(t, repo.DeleteCategoryById(ctx, guides.ID), gorm.ErrForeignKeyViolated)
	require.NoError(t, repo.DeleteArticleById(ctx, article.ID))
	require.NoError(t, repo.DeleteCategoryById(ctx, guides.ID))
	assert.ErrorIs(t, repo.DeleteCategoryById(ctx, guides.ID), gorm.ErrRecordNotFound)

	require.NoError(t, repo.DeleteCategoryById(ctx, reference.ID))
	require.NoError(t, repo.FindCategoryById(ctx, child.ID, &found))
	assert.Nil(t, found.ParentID)
}
