package categories

import (
	"content-wiki/internal/api"
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Api defines HTTP endpoints for the category tree.
type Api interface {
	GetCategoryTree(c *gin.Context)
	CreateCategory(c *gin.Context)
	UpdateCategory(c *gin.Context)
	DeleteCategory(c *gin.Context)
}

type Controller struct {
	*environment.Env
	TreeService
}

// ensure Controller implements Api
var _ Api = &Controller{}

func NewController(env *environment.Env, lang language.Tag) *Controller {
	return &Controller{Env: env, TreeService: TreeService{Env: env, Language: lang}}
}

// GetCategoryTree returns all categories as a tree of root categories.
func (cc *Controller) GetCategoryTree(c *gin.Context) {
	ctx := c.Request.Context()

	categories := make([]models.Category, 0)
	if err := cc.FindAllCategories(ctx, &categories); err != nil {
		cc.LogError(logging.GetLogTypeCategories(logging.RequestId(ctx)), err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, api.NewErrorResponsef("error reading categories: %s", err.Error()))
		return
	}

	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", cc.BuildTree(categories)))
}

// CreateCategory creates a category below an optional parent.
// A category without an order is placed after its last sibling.
func (cc *Controller) CreateCategory(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeCategories(logging.RequestId(ctx))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error reading request body: %v", err))
		return
	}
	request := api.GenericRequest{}
	if err = request.Load(body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error loading request data: %v", err))
		return
	}

	var category models.Category
	if err = request.DecodeDataTo(&category); err != nil {
		cc.LogDebug(logType, err)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error reading category: %v", err))
		return
	}
	category.Title = strings.TrimSpace(category.Title)
	category.Slug = strings.TrimSpace(category.Slug)
	if err = category.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("invalid category: %v", err))
		return
	}

	err = cc.Transaction(ctx, func(tx database.Repository) error {
		return createCategory(ctx, tx, &category)
	})
	if err != nil {
		err = revision.Classify(err)
		if errors.Is(err, revision.ErrUnavailable) {
			cc.LogErrorf(logType, "error creating category %s: %v", category.Slug, err)
		}
		api.AbortWithError(c, err, "error creating category")
		return
	}

	cc.LogInfof(logType, "category %d (%s) created", category.ID, category.Slug)
	c.JSON(http.StatusCreated, api.NewGenericResponse(api.Success, "category created", category))
}

func createCategory(ctx context.Context, tx database.Repository, category *models.Category) error {
	if category.ParentID != nil {
		var parent models.Category
		err := tx.FindCategoryById(ctx, *category.ParentID, &parent)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: parent category %d does not exist", revision.ErrInvalidReference, *category.ParentID)
		}
		if err != nil {
			return err
		}
	}

	var existing models.Category
	err := tx.FindCategoryBySlug(ctx, category.Slug, &existing)
	if err == nil {
		return fmt.Errorf("%w: slug %s is already taken", revision.ErrConflict, category.Slug)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if category.Order == 0 {
		var maxPosition int
		if err = tx.FindMaxCategoryPosition(ctx, category.ParentID, &maxPosition); err != nil {
			return err
		}
		category.Order = maxPosition + 1
	}

	return tx.CreateCategory(ctx, category)
}

// categoryPatch carries the changes to a category. Nil fields keep their current value;
// a null parentId moves the category to the root and a null description or icon removes it.
type categoryPatch struct {
	Title            *string `mapstructure:"title"`
	Slug             *string `mapstructure:"slug"`
	Description      *string `mapstructure:"description"`
	Icon             *string `mapstructure:"icon"`
	Order            *int    `mapstructure:"order"`
	ParentID         *uint   `mapstructure:"parentId"`
	ClearDescription bool    `mapstructure:"-"`
	ClearIcon        bool    `mapstructure:"-"`
	ClearParent      bool    `mapstructure:"-"`
}

func (p *categoryPatch) apply(category *models.Category) {
	if p.Title != nil {
		category.Title = strings.TrimSpace(*p.Title)
	}
	if p.Slug != nil {
		category.Slug = strings.TrimSpace(*p.Slug)
	}
	switch {
	case p.ClearDescription:
		category.Description = nil
	case p.Description != nil:
		category.Description = p.Description
	}
	switch {
	case p.ClearIcon:
		category.Icon = nil
	case p.Icon != nil:
		category.Icon = p.Icon
	}
	if p.Order != nil {
		category.Order = *p.Order
	}
	switch {
	case p.ClearParent:
		category.ParentID = nil
	case p.ParentID != nil:
		category.ParentID = p.ParentID
	}
}

// UpdateCategory changes a category. Moving a category below itself or one of its descendants is refused.
func (cc *Controller) UpdateCategory(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeCategories(logging.RequestId(ctx))

	id, ok := idParam(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error reading request body: %v", err))
		return
	}
	request := api.GenericRequest{}
	if err = request.Load(body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error loading request data: %v", err))
		return
	}
	var patch categoryPatch
	if err = request.DecodeDataTo(&patch); err != nil {
		cc.LogDebug(logType, err)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("error reading category: %v", err))
		return
	}
	patch.ClearDescription = request.IsNull("description")
	patch.ClearIcon = request.IsNull("icon")
	patch.ClearParent = request.IsNull("parentId")

	var category models.Category
	err = cc.Transaction(ctx, func(tx database.Repository) error {
		return updateCategory(ctx, tx, id, &patch, &category)
	})
	if err != nil {
		err = revision.Classify(err)
		if errors.Is(err, revision.ErrUnavailable) {
			cc.LogErrorf(logType, "error updating category %d: %v", id, err)
		}
		api.AbortWithError(c, err, "error updating category")
		return
	}

	cc.invalidateArticlesOf(ctx, logType, id)

	cc.LogInfof(logType, "category %d (%s) updated", category.ID, category.Slug)
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "category updated", category))
}

func updateCategory(ctx context.Context, tx database.Repository, id uint, patch *categoryPatch, category *models.Category) error {
	if err := tx.FindCategoryById(ctx, id, category); err != nil {
		return err
	}
	previousSlug := category.Slug

	patch.apply(category)
	if err := category.Validate(); err != nil {
		return fmt.Errorf("%w: invalid category: %v", revision.ErrInvalidInput, err)
	}

	if category.Slug != previousSlug {
		var existing models.Category
		err := tx.FindCategoryBySlug(ctx, category.Slug, &existing)
		if err == nil {
			return fmt.Errorf("%w: slug %s is already taken", revision.ErrConflict, category.Slug)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	if category.ParentID != nil {
		if err := ensureNotBelowItself(ctx, tx, id, *category.ParentID); err != nil {
			return err
		}
	}

	return tx.UpdateCategory(ctx, category)
}

// ensureNotBelowItself walks up from parentId and fails if it reaches id.
func ensureNotBelowItself(ctx context.Context, tx database.Repository, id uint, parentId uint) error {
	visited := map[uint]bool{}
	for current := &parentId; current != nil; {
		if *current == id {
			return fmt.Errorf("%w: category %d cannot be moved below itself", revision.ErrInvalidInput, id)
		}
		if visited[*current] {
			return nil
		}
		visited[*current] = true

		var ancestor models.Category
		err := tx.FindCategoryById(ctx, *current, &ancestor)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: parent category %d does not exist", revision.ErrInvalidReference, *current)
		}
		if err != nil {
			return err
		}
		current = ancestor.ParentID
	}
	return nil
}

// invalidateArticlesOf drops the cached articles of a category, which embed its title.
func (cc *Controller) invalidateArticlesOf(ctx context.Context, logType []any, categoryId uint) {
	articles := make([]models.Article, 0)
	if err := cc.FindArticles(ctx, database.ArticleFilter{CategoryID: &categoryId}, &articles); err != nil {
		cc.LogWarnf(logType, "error reading articles of category %d: %v", categoryId, err)
		return
	}
	slugs := make([]string, 0, len(articles))
	for _, a := range articles {
		slugs = append(slugs, a.Slug)
	}
	if err := cc.Cache.InvalidateArticles(ctx, slugs...); err != nil {
		cc.LogWarnf(logType, "error invalidating cached articles of category %d: %v", categoryId, err)
	}
}

// DeleteCategory removes a category without articles and without child categories.
func (cc *Controller) DeleteCategory(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeCategories(logging.RequestId(ctx))

	id, ok := idParam(c)
	if !ok {
		return
	}

	err := cc.Transaction(ctx, func(tx database.Repository) error {
		var category models.Category
		if err := tx.FindCategoryById(ctx, id, &category); err != nil {
			return err
		}

		var articleCount, childCount int64
		if err := tx.CountCategoryDependents(ctx, id, &articleCount, &childCount); err != nil {
			return err
		}
		if articleCount > 0 || childCount > 0 {
			return fmt.Errorf("%w: category %s has %d articles and %d child categories", revision.ErrConflict, category.Slug, articleCount, childCount)
		}

		return tx.DeleteCategoryById(ctx, id)
	})
	if err != nil {
		err = revision.Classify(err)
		if errors.Is(err, revision.ErrUnavailable) {
			cc.LogErrorf(logType, "error deleting category %d: %v", id, err)
		}
		api.AbortWithError(c, err, "error deleting category")
		return
	}

	cc.LogInfof(logType, "category %d deleted", id)
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "category deleted", gin.H{"id": id}))
}

func idParam(c *gin.Context) (uint, bool) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || v == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse("path variable 'id' must be a positive number"))
		return 0, false
	}
	return uint(v), true
}
