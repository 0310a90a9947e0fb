package database

import (
	"content-wiki/internal/models"
	"context"
	"gorm.io/gorm"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryRepository keeps all data in process. It backs the "memory" database driver and tests.
//
// Transactions are serialized by a single writer lock and work on a copy of the data that replaces
// the committed state on success, so a failing transaction leaves no trace. Writers to different
// articles therefore wait for each other; the driver is meant for tests and single-editor local runs.
// View counts live outside of the copied data. Constraint violations are reported with the same gorm
// errors a database with TranslateError enabled returns.
type MemoryRepository struct {
	root   *memoryRoot
	staged *memoryState
}

type memoryRoot struct {
	writer sync.Mutex
	mu     sync.RWMutex
	state  *memoryState
}

type memoryState struct {
	sequence    uint
	users       map[uint]models.User
	categories  map[uint]models.Category
	tags        map[uint]models.Tag
	articles    map[uint]models.Article
	articleTags map[uint][]uint
	revisions   map[uint]models.Revision
	// views are shared by all states and counted outside of transactions
	views map[uint]*atomic.Uint64
}

// ensure MemoryRepository implements Repository
var _ Repository = &MemoryRepository{}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{root: &memoryRoot{state: newMemoryState()}}
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:       map[uint]models.User{},
		categories:  map[uint]models.Category{},
		tags:        map[uint]models.Tag{},
		articles:    map[uint]models.Article{},
		articleTags: map[uint][]uint{},
		revisions:   map[uint]models.Revision{},
		views:       map[uint]*atomic.Uint64{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.sequence = s.sequence
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.articles {
		c.articles[k] = v
	}
	for k, v := range s.articleTags {
		c.articleTags[k] = append([]uint(nil), v...)
	}
	for k, v := range s.revisions {
		c.revisions[k] = v
	}
	for k, v := range s.views {
		c.views[k] = v
	}
	return c
}

func (s *memoryState) nextId() uint {
	s.sequence++
	return s.sequence
}

func (m *MemoryRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if m.staged != nil {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.root.writer.Lock()
	defer m.root.writer.Unlock()

	m.root.mu.RLock()
	staged := m.root.state.clone()
	m.root.mu.RUnlock()

	if err := fn(&MemoryRepository{root: m.root, staged: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.root.mu.Lock()
	m.root.state = staged
	m.root.mu.Unlock()
	return nil
}

// read runs fn against the transaction's data or, outside a transaction, the committed data.
func (m *MemoryRepository) read(ctx context.Context, fn func(s *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.staged != nil {
		return fn(m.staged)
	}
	m.root.mu.RLock()
	defer m.root.mu.RUnlock()
	return fn(m.root.state)
}

// write runs fn inside the current transaction or, if there is none, inside its own.
func (m *MemoryRepository) write(ctx context.Context, fn func(s *memoryState) error) error {
	if m.staged != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(m.staged)
	}
	return m.Transaction(ctx, func(tx Repository) error {
		return fn(tx.(*MemoryRepository).staged)
	})
}

func (m *MemoryRepository) FindUserLoginCredentials(ctx context.Context, username string, user *models.User) error {
	return m.read(ctx, func(s *memoryState) error {
		for _, u := range s.users {
			if u.Username == username {
				*user = u
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
}

func (m *MemoryRepository) FindUserById(ctx context.Context, id uint, user *models.User) error {
	return m.read(ctx, func(s *memoryState) error {
		u, ok := s.users[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		*user = u
		return nil
	})
}

func (m *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	return m.write(ctx, func(s *memoryState) error {
		for _, u := range s.users {
			if u.Username == user.Username || u.Email == user.Email {
				return gorm.ErrDuplicatedKey
			}
		}
		if err := user.BeforeSave(nil); err != nil {
			return err
		}
		if len(user.Role) == 0 {
			user.Role = models.RoleEditor
		}
		now := time.Now()
		user.ID = s.nextId()
		user.CreatedAt, user.UpdatedAt = now, now
		s.users[user.ID] = *user
		return nil
	})
}

func (m *MemoryRepository) FindAllCategories(ctx context.Context, categories *[]models.Category) error {
	return m.read(ctx, func(s *memoryState) error {
		result := make([]models.Category, 0, len(s.categories))
		for _, c := range s.categories {
			result = append(result, c)
		}
		sort.Slice(result, func(i, j int) bool {
			if result[i].Order != result[j].Order {
				return result[i].Order < result[j].Order
			}
			return result[i].Title < result[j].Title
		})
		*categories = result
		return nil
	})
}

func (m *MemoryRepository) FindCategoryById(ctx context.Context, id uint, category *models.Category) error {
	return m.read(ctx, func(s *memoryState) error {
		c, ok := s.categories[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		*category = c
		return nil
	})
}

func (m *MemoryRepository) FindCategoryBySlug(ctx context.Context, slug string, category *models.Category) error {
	return m.read(ctx, func(s *memoryState) error {
		for _, c := range s.categories {
			if c.Slug == slug {
				*category = c
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
}

func (m *MemoryRepository) FindMaxCategoryPosition(ctx context.Context, parentId *uint, maxPosition *int) error {
	return m.read(ctx, func(s *memoryState) error {
		result := 0
		for _, c := range s.categories {
			if !sameParent(c.ParentID, parentId) {
				continue
			}
			if c.Order > result {
				result = c.Order
			}
		}
		*maxPosition = result
		return nil
	})
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *MemoryRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	return m.write(ctx, func(s *memoryState) error {
		for _, c := range s.categories {
			if c.Slug == category.Slug {
				return gorm.ErrDuplicatedKey
			}
		}
		if category.ParentID != nil {
			if _, ok := s.categories[*category.ParentID]; !ok {
				return gorm.ErrForeignKeyViolated
			}
		}
		now := time.Now()
		category.ID = s.nextId()
		category.CreatedAt, category.UpdatedAt = now, now
		stored := *category
		stored.Parent = nil
		s.categories[category.ID] = stored
		return nil
	})
}

func (m *MemoryRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return m.write(ctx, func(s *memoryState) error {
		current, ok := s.categories[category.ID]
		if !ok {
			// gorm reports no error for an update matching no rows
			return nil
		}
		for id, c := range s.categories {
			if c.Slug == category.Slug && id != category.ID {
				return gorm.ErrDuplicatedKey
			}
		}
		if category.ParentID != nil {
			if _, ok = s.categories[*category.ParentID]; !ok {
				return gorm.ErrForeignKeyViolated
			}
		}
		category.UpdatedAt = time.Now()
		category.CreatedAt = current.CreatedAt
		stored := *category
		stored.Parent = nil
		s.categories[category.ID] = stored
		return nil
	})
}

func (m *MemoryRepository) CountCategoryDependents(ctx context.Context, id uint, articleCount *int64, childCount *int64) error {
	return m.read(ctx, func(s *memoryState) error {
		*articleCount, *childCount = 0, 0
		for _, a := range s.articles {
			if a.CategoryID == id {
				*articleCount++
			}
		}
		for _, c := range s.categories {
			if c.ParentID != nil && *c.ParentID == id {
				*childCount++
			}
		}
		return nil
	})
}

// DeleteCategoryById refuses categories that articles reference; children become roots.
func (m *MemoryRepository) DeleteCategoryById(ctx context.Context, id uint) error {
	return m.write(ctx, func(s *memoryState) error {
		if _, ok := s.categories[id]; !ok {
			return gorm.ErrRecordNotFound
		}
		for _, a := range s.articles {
			if a.CategoryID == id {
				return gorm.ErrForeignKeyViolated
			}
		}
		for childId, c := range s.categories {
			if c.ParentID != nil && *c.ParentID == id {
				c.ParentID = nil
				s.categories[childId] = c
			}
		}
		delete(s.categories, id)
		return nil
	})
}

func (m *MemoryRepository) FindArticleById(ctx context.Context, id uint, article *models.Article) error {
	return m.read(ctx, func(s *memoryState) error {
		a, ok := s.articles[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		*article = s.withViews(a)
		return nil
	})
}

func (m *MemoryRepository) FindArticleBySlug(ctx context.Context, slug string, article *models.Article) error {
	return m.read(ctx, func(s *memoryState) error {
		for _, a := range s.articles {
			if a.Slug == slug {
				*article = s.withAssociations(a)
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
}

// withViews returns a copy of a carrying the current view count.
func (s *memoryState) withViews(a models.Article) models.Article {
	if counter, ok := s.views[a.ID]; ok {
		a.Views = uint(counter.Load())
	}
	return a
}

// withAssociations returns a copy of a with category, author and tags attached.
func (s *memoryState) withAssociations(a models.Article) models.Article {
	a = s.withViews(a)
	if c, ok := s.categories[a.CategoryID]; ok {
		a.Category = &c
	}
	if u, ok := s.users[a.AuthorID]; ok {
		a.Author = &u
	}
	a.Tags = []models.Tag{}
	for _, tagId := range s.articleTags[a.ID] {
		a.Tags = append(a.Tags, s.tags[tagId])
	}
	return a
}

func (m *MemoryRepository) LockArticleById(ctx context.Context, id uint, article *models.Article) error {
	// the writer lock held by the transaction already excludes concurrent writers
	return m.FindArticleById(ctx, id, article)
}

func (m *MemoryRepository) FindArticles(ctx context.Context, filter ArticleFilter, articles *[]models.Article) error {
	return m.read(ctx, func(s *memoryState) error {
		result := make([]models.Article, 0)
		for _, a := range s.articles {
			if filter.CategoryID != nil && a.CategoryID != *filter.CategoryID {
				continue
			}
			if filter.Published != nil && a.Published != *filter.Published {
				continue
			}
			if filter.Featured != nil && a.Featured != *filter.Featured {
				continue
			}
			a = s.withAssociations(a)
			a.Author = nil
			result = append(result, a)
		}
		sort.Slice(result, func(i, j int) bool {
			if result[i].Featured != result[j].Featured {
				return result[i].Featured
			}
			pi, pj := result[i].PublishedAt, result[j].PublishedAt
			if pi != nil && pj != nil && !pi.Equal(*pj) {
				return pi.After(*pj)
			}
			if (pi == nil) != (pj == nil) {
				// NULLs sort first in descending order, like postgres
				return pi == nil
			}
			return result[i].ID > result[j].ID
		})
		if filter.Limit > 0 && len(result) > filter.Limit {
			result = result[:filter.Limit]
		}
		*articles = result
		return nil
	})
}

func (m *MemoryRepository) FindArticleListItems(ctx context.Context, items *[]models.ArticleListItem) error {
	return m.read(ctx, func(s *memoryState) error {
		counts := map[uint]int64{}
		for _, r := range s.revisions {
			counts[r.ArticleID]++
		}
		result := make([]models.ArticleListItem, 0, len(s.articles))
		for _, a := range s.articles {
			a = s.withViews(a)
			if c, ok := s.categories[a.CategoryID]; ok {
				a.Category = &c
			}
			result = append(result, models.ArticleListItem{Article: a, RevisionCount: counts[a.ID]})
		}
		sort.Slice(result, func(i, j int) bool {
			if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
				return result[i].UpdatedAt.After(result[j].UpdatedAt)
			}
			return result[i].ID > result[j].ID
		})
		*items = result
		return nil
	})
}

func matchesSearchTerm(a models.Article, searchTerm string) bool {
	term := strings.ToLower(strings.TrimSpace(searchTerm))
	if strings.Contains(strings.ToLower(a.Title), term) || strings.Contains(strings.ToLower(a.Body), term) {
		return true
	}
	return a.Description != nil && strings.Contains(strings.ToLower(*a.Description), term)
}

func (m *MemoryRepository) FindArticlesBySearchTermSimple(ctx context.Context, searchTerm string, limit int, articles *[]models.Article) error {
	return m.read(ctx, func(s *memoryState) error {
		result := make([]models.Article, 0)
		for _, a := range s.articles {
			if !a.Published || !matchesSearchTerm(a, searchTerm) {
				continue
			}
			a = s.withViews(a)
			if c, ok := s.categories[a.CategoryID]; ok {
				a.Category = &c
			}
			result = append(result, a)
		}
		sort.Slice(result, func(i, j int) bool {
			if result[i].Featured != result[j].Featured {
				return result[i].Featured
			}
			if result[i].Views != result[j].Views {
				return result[i].Views > result[j].Views
			}
			return result[i].ID < result[j].ID
		})
		if limit > 0 && len(result) > limit {
			result = result[:limit]
		}
		*articles = result
		return nil
	})
}

func (m *MemoryRepository) CountArticlesMatchesBySearchTermSimple(ctx context.Context, searchTerm string, matchCount *int) error {
	return m.read(ctx, func(s *memoryState) error {
		count := 0
		for _, a := range s.articles {
			if a.Published && matchesSearchTerm(a, searchTerm) {
				count++
			}
		}
		*matchCount = count
		return nil
	})
}

func (s *memoryState) checkArticleConstraints(article *models.Article) error {
	for id, a := range s.articles {
		if a.Slug == article.Slug && id != article.ID {
			return gorm.ErrDuplicatedKey
		}
	}
	if _, ok := s.categories[article.CategoryID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	if _, ok := s.users[article.AuthorID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	return nil
}

// stored strips associations, which are kept in their own tables.
func stored(a models.Article) models.Article {
	a.Category = nil
	a.Author = nil
	a.Tags = nil
	return a
}

func (m *MemoryRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	return m.write(ctx, func(s *memoryState) error {
		article.ID = 0
		if err := s.checkArticleConstraints(article); err != nil {
			return err
		}
		now := time.Now()
		article.ID = s.nextId()
		article.CreatedAt, article.UpdatedAt = now, now
		s.articles[article.ID] = stored(*article)
		s.views[article.ID] = new(atomic.Uint64)
		s.views[article.ID].Store(uint64(article.Views))
		return nil
	})
}

func (m *MemoryRepository) UpdateArticle(ctx context.Context, article *models.Article) error {
	return m.write(ctx, func(s *memoryState) error {
		current, ok := s.articles[article.ID]
		if !ok {
			// gorm reports no error for an update matching no rows
			return nil
		}
		if err := s.checkArticleConstraints(&models.Article{
			Model:      models.Model{ID: article.ID},
			Slug:       article.Slug,
			CategoryID: article.CategoryID,
			AuthorID:   current.AuthorID,
		}); err != nil {
			return err
		}
		article.UpdatedAt = time.Now()

		current.Title = article.Title
		current.Slug = article.Slug
		current.Description = article.Description
		current.Body = article.Body
		current.Published = article.Published
		current.Featured = article.Featured
		current.PublishedAt = article.PublishedAt
		current.CategoryID = article.CategoryID
		current.UpdatedAt = article.UpdatedAt
		s.articles[article.ID] = current
		return nil
	})
}

func (m *MemoryRepository) ReplaceArticleTags(ctx context.Context, articleId uint, tags []models.Tag) error {
	return m.write(ctx, func(s *memoryState) error {
		if _, ok := s.articles[articleId]; !ok {
			return gorm.ErrForeignKeyViolated
		}

		tagIds := make([]uint, 0, len(tags))
		for _, t := range tags {
			id := s.tagIdBySlug(t.Slug)
			if id == 0 {
				now := time.Now()
				t.ID = s.nextId()
				t.CreatedAt, t.UpdatedAt = now, now
				s.tags[t.ID] = t
				id = t.ID
			}
			tagIds = append(tagIds, id)
		}
		s.articleTags[articleId] = tagIds
		return nil
	})
}

func (s *memoryState) tagIdBySlug(slug string) uint {
	for id, t := range s.tags {
		if t.Slug == slug {
			return id
		}
	}
	return 0
}

// IncrementArticleViews counts a view without taking the writer lock.
func (m *MemoryRepository) IncrementArticleViews(ctx context.Context, id uint, views *uint) error {
	return m.read(ctx, func(s *memoryState) error {
		counter, ok := s.views[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		*views = uint(counter.Add(1))
		return nil
	})
}

func (m *MemoryRepository) DeleteArticleById(ctx context.Context, id uint) error {
	return m.write(ctx, func(s *memoryState) error {
		if _, ok := s.articles[id]; !ok {
			return gorm.ErrRecordNotFound
		}
		for revisionId, r := range s.revisions {
			if r.ArticleID == id {
				delete(s.revisions, revisionId)
			}
		}
		delete(s.articleTags, id)
		delete(s.articles, id)
		delete(s.views, id)
		return nil
	})
}

func (m *MemoryRepository) AppendRevision(ctx context.Context, revision *models.Revision) error {
	return m.write(ctx, func(s *memoryState) error {
		if _, ok := s.articles[revision.ArticleID]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if _, ok := s.users[revision.AuthorID]; !ok {
			return gorm.ErrForeignKeyViolated
		}

		var latest uint
		for _, r := range s.revisions {
			if r.ArticleID == revision.ArticleID && r.Version > latest {
				latest = r.Version
			}
		}

		revision.ID = s.nextId()
		revision.Version = latest + 1
		revision.CreatedAt = time.Now()

		r := *revision
		r.Article = nil
		r.Author = nil
		s.revisions[r.ID] = r
		return nil
	})
}

func (m *MemoryRepository) FindLatestRevision(ctx context.Context, articleId uint, revision *models.Revision) error {
	return m.read(ctx, func(s *memoryState) error {
		var latest *models.Revision
		for _, r := range s.revisions {
			if r.ArticleID != articleId {
				continue
			}
			if latest == nil || r.Version > latest.Version {
				r := r
				latest = &r
			}
		}
		if latest == nil {
			return gorm.ErrRecordNotFound
		}
		*revision = *latest
		return nil
	})
}

func (s *memoryState) withAuthor(r models.Revision) models.Revision {
	if u, ok := s.users[r.AuthorID]; ok {
		r.Author = &u
	}
	return r
}

func (m *MemoryRepository) FindRevision(ctx context.Context, articleId uint, version uint, revision *models.Revision) error {
	return m.read(ctx, func(s *memoryState) error {
		for _, r := range s.revisions {
			if r.ArticleID == articleId && r.Version == version {
				*revision = s.withAuthor(r)
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
}

func (m *MemoryRepository) FindRevisionById(ctx context.Context, articleId uint, revisionId uint, revision *models.Revision) error {
	return m.read(ctx, func(s *memoryState) error {
		r, ok := s.revisions[revisionId]
		if !ok || r.ArticleID != articleId {
			return gorm.ErrRecordNotFound
		}
		*revision = s.withAuthor(r)
		return nil
	})
}

func (m *MemoryRepository) FindRevisionsByArticleId(ctx context.Context, articleId uint, revisions *[]models.Revision) error {
	return m.read(ctx, func(s *memoryState) error {
		result := make([]models.Revision, 0)
		for _, r := range s.revisions {
			if r.ArticleID == articleId {
				result = append(result, s.withAuthor(r))
			}
		}
		sort.Slice(result, func(i, j int) bool {
			return result[i].Version > result[j].Version
		})
		*revisions = result
		return nil
	})
}
