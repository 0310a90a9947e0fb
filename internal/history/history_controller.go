package history

import (
	"content-wiki/internal/api"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"fmt"
	"github.com/gin-gonic/gin"
	"io"
	"net/http"
	"strconv"
)

// Api defines HTTP endpoints for browsing and restoring the revisions of an article.
type Api interface {
	GetRevisionHistory(c *gin.Context)
	GetRevision(c *gin.Context)
	RestoreRevision(c *gin.Context)
	RestoreVersion(c *gin.Context)
}

type Controller struct {
	*environment.Env
	Engine *revision.Engine
}

// ensure Controller implements Api
var _ Api = &Controller{}

func NewController(env *environment.Env, engine *revision.Engine) *Controller {
	return &Controller{Env: env, Engine: engine}
}

// Entry is a revision together with the display name of its author.
type Entry struct {
	models.Revision
	AuthorName string `json:"authorName"`
}

func newEntry(r models.Revision) Entry {
	return Entry{Revision: r, AuthorName: r.Author.Name()}
}

type restoreRequest struct {
	RevisionId uint `mapstructure:"revisionId"`
}

// GetRevisionHistory returns all revisions of an article, newest first.
func (hc *Controller) GetRevisionHistory(c *gin.Context) {
	articleId, ok := uintParam(c, "articleId")
	if !ok {
		return
	}

	revisions, err := hc.Engine.History(c.Request.Context(), articleId)
	if err != nil {
		api.AbortWithError(c, err, "error reading revision history")
		return
	}

	entries := make([]Entry, 0, len(revisions))
	for _, r := range revisions {
		entries = append(entries, newEntry(r))
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", entries))
}

// GetRevision returns a single revision for previewing it before a restore.
func (hc *Controller) GetRevision(c *gin.Context) {
	articleId, ok := uintParam(c, "articleId")
	if !ok {
		return
	}
	version, ok := uintParam(c, "version")
	if !ok {
		return
	}

	r, err := hc.Engine.Revision(c.Request.Context(), articleId, version)
	if err != nil {
		api.AbortWithError(c, err, "error reading revision")
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", newEntry(*r)))
}

// RestoreRevision restores the revision whose id is given in the request body.
func (hc *Controller) RestoreRevision(c *gin.Context) {
	ctx := c.Request.Context()

	articleId, ok := uintParam(c, "articleId")
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
	var restore restoreRequest
	if err = request.DecodeDataTo(&restore); err != nil || restore.RevisionId == 0 {
		hc.LogDebugf(logging.GetLogTypeRevision(logging.RequestId(ctx)), "invalid restore request %v: %v", request.Data, err)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponse("revisionId is required"))
		return
	}

	result, err := hc.Engine.RestoreRevision(ctx, middlewares.ActorId(c), articleId, restore.RevisionId)
	if err != nil {
		api.AbortWithError(c, err, "error restoring revision")
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, fmt.Sprintf("restored version %d", result.Revision.Version), result))
}

// RestoreVersion restores the revision with the version of the path.
func (hc *Controller) RestoreVersion(c *gin.Context) {
	articleId, ok := uintParam(c, "articleId")
	if !ok {
		return
	}
	version, ok := uintParam(c, "version")
	if !ok {
		return
	}

	result, err := hc.Engine.Restore(c.Request.Context(), middlewares.ActorId(c), articleId, version)
	if err != nil {
		api.AbortWithError(c, err, "error restoring revision")
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, fmt.Sprintf("restored version %d", result.Revision.Version), result))
}

// uintParam parses a positive path parameter and aborts with 400 if it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.NewErrorResponsef("path variable '%s' must be a positive number", name))
		return 0, false
	}
	return uint(v), true
}
