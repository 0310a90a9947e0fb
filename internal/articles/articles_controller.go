package articles

import (
	"content-wiki/internal/api"
	"content-wiki/internal/cache"
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Api defines HTTP endpoints for writing and reading articles.
type Api interface {
	CreateArticle(c *gin.Context)
	UpdateArticle(c *gin.Context)
	DeleteArticle(c *gin.Context)
	GetAdminArticles(c *gin.Context)
	GetPublishedArticles(c *gin.Context)
	GetArticleBySlug(c *gin.Context)
	GetArticleSearchTermMatches(c *gin.Context)
}

// Controller writes articles through the revision engine and serves the published read model.
type Controller struct {
	*environment.Env
	Engine *revision.Engine
	SearchMatchMapper
}

// ensure Controller implements Api
var _ Api = &Controller{}

func NewController(env *environment.Env, engine *revision.Engine) *Controller {
	return &Controller{Env: env, Engine: engine, SearchMatchMapper: SearchMatchMapper{Env: env}}
}

type updateResponse struct {
	Article         models.Article   `json:"article"`
	Revision        *models.Revision `json:"revision"`
	RevisionCreated bool             `json:"revisionCreated"`
}

// decodeRequest reads the {"data": {...}} envelope of the request body into output.
func decodeRequest(c *gin.Context, output any) (*api.GenericRequest, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading request body: %v", revision.ErrInvalidInput, err)
	}

	request := &api.GenericRequest{}
	if err = request.Load(body); err != nil {
		return nil, fmt.Errorf("%w: error loading request data: %v", revision.ErrInvalidInput, err)
	}
	if err = request.DecodeDataTo(output); err != nil {
		return nil, fmt.Errorf("%w: %v", revision.ErrInvalidInput, err)
	}
	return request, nil
}

func (ac *Controller) CreateArticle(c *gin.Context) {
	ctx := c.Request.Context()

	var cmd revision.CreateCommand
	if _, err := decodeRequest(c, &cmd); err != nil {
		ac.LogDebug(logging.GetLogTypeArticles(logging.RequestId(ctx)), err)
		api.AbortWithError(c, err, "error reading article")
		return
	}

	result, err := ac.Engine.Create(ctx, middlewares.ActorId(c), cmd)
	if err != nil {
		api.AbortWithError(c, err, "error creating article")
		return
	}

	c.JSON(http.StatusCreated, api.NewGenericResponse(api.Success, "article created", result))
}

func (ac *Controller) UpdateArticle(c *gin.Context) {
	ctx := c.Request.Context()

	slug := c.Param("slug")
	if len(slug) <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse("path variable 'slug' is missing"))
		return
	}

	var cmd revision.UpdateCommand
	request, err := decodeRequest(c, &cmd)
	if err != nil {
		ac.LogDebug(logging.GetLogTypeArticles(logging.RequestId(ctx)), err)
		api.AbortWithError(c, err, "error reading article")
		return
	}
	cmd.ClearDescription = request.IsNull("description")

	result, err := ac.Engine.UpdateBySlug(ctx, middlewares.ActorId(c), slug, cmd)
	if err != nil {
		api.AbortWithError(c, err, "error updating article")
		return
	}

	message := "article updated"
	if !result.Changed() {
		message = "article updated, content unchanged"
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, message, updateResponse{
		Article:         result.Article,
		Revision:        result.Revision,
		RevisionCreated: result.Changed(),
	}))
}

// DeleteArticle removes an article together with its revisions. Deletes are not versioned.
func (ac *Controller) DeleteArticle(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeArticles(logging.RequestId(ctx))

	slug := c.Param("slug")
	var article models.Article
	if err := ac.FindArticleBySlug(ctx, slug, &article); err != nil {
		ac.abortWithStorageError(c, logType, err, "error deleting article")
		return
	}

	if err := ac.DeleteArticleById(ctx, article.ID); err != nil {
		ac.abortWithStorageError(c, logType, err, "error deleting article")
		return
	}

	if err := ac.Cache.InvalidateArticles(ctx, article.Slug); err != nil {
		ac.LogWarnf(logType, "error invalidating cached article %s: %v", article.Slug, err)
	}

	ac.LogInfof(logType, "article %d (%s) deleted by user %d", article.ID, article.Slug, middlewares.ActorId(c))
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "article deleted", gin.H{"id": article.ID}))
}

// GetAdminArticles lists all articles including drafts, each with its number of revisions.
func (ac *Controller) GetAdminArticles(c *gin.Context) {
	ctx := c.Request.Context()

	items := make([]models.ArticleListItem, 0)
	if err := ac.FindArticleListItems(ctx, &items); err != nil {
		ac.abortWithStorageError(c, logging.GetLogTypeArticles(logging.RequestId(ctx)), err, "error reading articles")
		return
	}

	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", items))
}

// GetPublishedArticles lists published articles, featured first and then newest first.
// Optional query parameters: categoryId, featured and limit.
func (ac *Controller) GetPublishedArticles(c *gin.Context) {
	ctx := c.Request.Context()

	published := true
	filter := database.ArticleFilter{Published: &published, Limit: defaultListLimit}

	if v, ok := c.GetQuery("categoryId"); ok {
		categoryId, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("invalid categoryId %q", v))
			return
		}
		id := uint(categoryId)
		filter.CategoryID = &id
	}
	if v, ok := c.GetQuery("featured"); ok {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("invalid featured flag %q", v))
			return
		}
		filter.Featured = &featured
	}
	if v, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("invalid limit %q", v))
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}

	articles := make([]models.Article, 0)
	if err := ac.FindArticles(ctx, filter, &articles); err != nil {
		ac.abortWithStorageError(c, logging.GetLogTypeArticles(logging.RequestId(ctx)), err, "error reading articles")
		return
	}

	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", articles))
}

// GetArticleBySlug returns a published article and counts the view.
// Drafts are reported as not found.
func (ac *Controller) GetArticleBySlug(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeArticles(logging.RequestId(ctx))

	slug := c.Param("slug")
	if len(slug) <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse("path variable 'slug' is missing"))
		return
	}

	var article models.Article
	hit, err := ac.Cache.GetArticle(ctx, slug, &article)
	if err != nil {
		ac.LogWarnf(logType, "error reading cached article %s: %v", slug, err)
	}

	if !hit {
		// the generation is read before the load so that a write committing in between discards the fill
		generation, genErr := ac.Cache.Generation(ctx, slug)
		if genErr != nil {
			ac.LogWarnf(logType, "error reading cache generation of article %s: %v", slug, genErr)
		}

		if err = ac.FindArticleBySlug(ctx, slug, &article); err != nil {
			ac.abortWithStorageError(c, logType, err, "error reading article")
			return
		}
		if article.Published && genErr == nil {
			// authors are not part of the public read model
			article.Author = nil
			err = ac.Cache.SetArticle(ctx, &article, generation)
			if errors.Is(err, cache.ErrStale) {
				ac.LogDebugf(logType, "article %s changed while it was read, not cached", slug)
			} else if err != nil {
				ac.LogWarnf(logType, "error caching article %s: %v", slug, err)
			}
		}
	}

	if !article.Published {
		c.AbortWithStatusJSON(http.StatusNotFound, api.NewErrorResponsef("article %s not found", slug))
		return
	}

	var views uint
	if err = ac.IncrementArticleViews(ctx, article.ID, &views); err != nil {
		ac.LogWarnf(logType, "error counting view of article %d: %v", article.ID, err)
	} else {
		article.Views = views
	}

	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", article))
}

// GetArticleSearchTermMatches searches the published articles for a term
// and returns one page of matches ranked by similarity.
func (ac *Controller) GetArticleSearchTermMatches(c *gin.Context) {
	ctx := c.Request.Context()
	logType := logging.GetLogTypeArticles(logging.RequestId(ctx))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		msg := fmt.Sprintf("error while reading request body: %s", err)
		ac.LogDebug(logType, msg)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse(msg))
		return
	}

	var payload SearchPayload
	err = json.Unmarshal(body, &payload)
	if err != nil {
		msg := fmt.Sprintf("error while unmarshaling request body: %s", err)
		ac.LogDebug(logType, msg)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse(msg))
		return
	}

	payload.Term = strings.TrimSpace(payload.Term)
	if len([]rune(payload.Term)) < minSearchTermLength {
		msg := fmt.Sprintf("did not perform search because the search term is shorter than %d characters", minSearchTermLength)
		ac.LogDebug(logType, msg)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse(msg))
		return
	}

	if payload.Pageable.PageSize <= 0 {
		payload.Pageable.PageSize = defaultPageSize
	}
	payload.Pageable.PageSize = min(payload.Pageable.PageSize, maxPageSize)
	payload.Pageable.PageNumber = max(payload.Pageable.PageNumber, 0)

	searchMatches := make([]models.Article, 0)
	err = ac.FindArticlesBySearchTermSimple(ctx, payload.Term, searchCandidateLimit, &searchMatches)
	if err != nil {
		ac.abortWithStorageError(c, logType, err, "error reading article search matches")
		return
	}

	var matchCount int
	err = ac.CountArticlesMatchesBySearchTermSimple(ctx, payload.Term, &matchCount)
	if err != nil {
		ac.abortWithStorageError(c, logType, err, "error counting article search matches")
		return
	}
	// only the loaded candidates can be ranked and paged
	matchCount = min(matchCount, len(searchMatches))

	page, err := ac.mapToSearchPage(payload, matchCount, rank(payload.Term, searchMatches))
	if err != nil {
		msg := fmt.Sprintf("error mapping to page response: %s", err)
		ac.LogError(logType, msg)
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.NewErrorResponse(msg))
		return
	}

	c.JSON(http.StatusOK, page)
}

func (ac *Controller) abortWithStorageError(c *gin.Context, logType []any, err error, message string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, api.NewErrorResponsef("%s: not found", message))
		return
	}
	ac.LogErrorf(logType, "%s: %v", message, err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, api.NewErrorResponsef("%s: %v", message, err))
}
