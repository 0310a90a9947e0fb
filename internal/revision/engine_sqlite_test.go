package revision_test

import (
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"context"
	"fmt"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"sync"
	"testing"
)

// SqliteEngineSuite runs the Engine against the GormRepository on an in-memory sqlite database.
type SqliteEngineSuite struct {
	suite.Suite
	db       *gorm.DB
	engine   *revision.Engine
	repo     *database.GormRepository
	actor    models.User
	category models.Category
}

func TestSqliteEngineSuite(t *testing.T) {
	suite.Run(t, new(SqliteEngineSuite))
}

func (s *SqliteEngineSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	s.Require().NoError(err)

	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(database.Migrate(db, &logging.NullLogger{}))

	s.db = db
	s.repo = &database.GormRepository{DB: db}
	s.engine = revision.NewEngine(environment.Environment(s.repo, nil))

	ctx := context.Background()
	s.actor = models.User{Username: "editor", Email: "editor@example.com", Password: "secret"}
	s.Require().NoError(s.repo.CreateUser(ctx, &s.actor))
	s.category = models.Category{Title: "Guides", Slug: "guides"}
	s.Require().NoError(s.repo.CreateCategory(ctx, &s.category))
}

func (s *SqliteEngineSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func (s *SqliteEngineSuite) create(slug string) models.Article {
	result, err := s.engine.Create(context.Background(), s.actor.ID, revision.CreateCommand{
		Title:      "Title",
		Slug:       slug,
		Body:       "version 1",
		CategoryID: s.category.ID,
		Tags:       []string{"Go", "go", "Databases"},
	})
	s.Require().NoError(err)
	return result.Article
}

func (s *SqliteEngineSuite) TestCreateUpdateRestore() {
	ctx := context.Background()
	article := s.create("lifecycle")

	updated, err := s.engine.Update(ctx, s.actor.ID, article.ID, revision.UpdateCommand{Body: ptr("version 2"), Published: ptr(true)})
	s.Require().NoError(err)
	s.Require().True(updated.Changed())
	s.Equal(uint(2), updated.Revision.Version)
	s.NotNil(updated.Article.PublishedAt)

	unchanged, err := s.engine.Update(ctx, s.actor.ID, article.ID, revision.UpdateCommand{Body: ptr("version 2")})
	s.Require().NoError(err)
	s.False(unchanged.Changed())

	restored, err := s.engine.Restore(ctx, s.actor.ID, article.ID, 1)
	s.Require().NoError(err)
	s.Equal(uint(3), restored.Checkpoint.Version)
	s.Equal(uint(4), restored.Revision.Version)

	var found models.Article
	s.Require().NoError(s.repo.FindArticleBySlug(ctx, "lifecycle", &found))
	s.Equal("version 1", found.Body)
	s.True(found.Published)
	s.Len(found.Tags, 2)

	history, err := s.engine.History(ctx, article.ID)
	s.Require().NoError(err)
	s.Equal([]uint{4, 3, 2, 1}, []uint{history[0].Version, history[1].Version, history[2].Version, history[3].Version})
	s.Equal("restored from version 1", *history[0].Comment)
	s.Equal("checkpoint before restoring version 1", *history[1].Comment)
	s.Equal("version 2", history[1].Body)
	s.Equal("editor", history[0].Author.Name())
}

func (s *SqliteEngineSuite) TestErrorKinds() {
	ctx := context.Background()
	article := s.create("first")
	s.create("second")

	_, err := s.engine.Update(ctx, s.actor.ID, article.ID, revision.UpdateCommand{Slug: ptr("second")})
	s.ErrorIs(err, revision.ErrConflict)

	_, err = s.engine.Create(ctx, s.actor.ID, revision.CreateCommand{Title: "T", Slug: "third", CategoryID: 42})
	s.ErrorIs(err, revision.ErrInvalidReference)

	_, err = s.engine.Restore(ctx, s.actor.ID, article.ID, 9)
	s.ErrorIs(err, revision.ErrNotFound)

	history, err := s.engine.History(ctx, article.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *SqliteEngineSuite) TestConcurrentUpdates() {
	article := s.create("contended")
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.engine.Update(context.Background(), s.actor.ID, article.ID, revision.UpdateCommand{Body: ptr(fmt.Sprintf("writer %d", i))})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	history, err := s.engine.History(context.Background(), article.ID)
	s.Require().NoError(err)
	s.Equal(sequence(writers+1), versionsAscending(history))
}
