package bitbucket

import (
	"content-wiki/internal/api"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"content-wiki/internal/utils"
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"path"
	"strings"
	"time"
)

const filePathPageSize = 150

// importProgress names the progress whose correlation id is attached to all import log lines
const importProgress = "import"

// Api defines the endpoint that synchronizes the wiki with the markdown files of a Bitbucket repository.
type Api interface {
	ImportMarkdowns(c *gin.Context)
}

// Controller imports the markdown files of a Bitbucket repository as articles.
// Every write goes through the revision engine on behalf of the configured import account.
type Controller struct {
	*environment.Env
	Reader
	MarkdownHousekeeper
	Engine *revision.Engine

	ProjectName        string
	RepositoryName     string
	ImportUsername     string
	ImportCategorySlug string
}

// ensure Controller implements Api
var _ Api = &Controller{}

// ImportReport lists the slugs touched by an import.
type ImportReport struct {
	Created     []string `json:"created"`
	Updated     []string `json:"updated"`
	Unchanged   []string `json:"unchanged"`
	Unpublished []string `json:"unpublished"`
	Failed      []string `json:"failed"`
}

func newImportReport() *ImportReport {
	return &ImportReport{
		Created:     []string{},
		Updated:     []string{},
		Unchanged:   []string{},
		Unpublished: []string{},
		Failed:      []string{},
	}
}

// ImportMarkdowns runs an import and responds with its report.
func (bc *Controller) ImportMarkdowns(c *gin.Context) {
	report, err := bc.Import(c.Request.Context())
	if err != nil {
		api.AbortWithError(c, err, "error importing markdowns")
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "markdowns imported", report))
}

// Import creates an article for every new markdown file, updates the articles of changed files
// and unpublishes the articles whose file was removed. Files that cannot be read or written
// are reported as failed without stopping the import.
func (bc *Controller) Import(ctx context.Context) (*ImportReport, error) {
	logging.StartProgress(importProgress)
	defer logging.EndProgress(importProgress)

	logType := logging.GetLogTypeImport()
	start := time.Now()

	if bc.Reader == nil {
		return nil, fmt.Errorf("%w: bitbucket is not configured", revision.ErrUnavailable)
	}

	actor, err := bc.resolveImportUser(ctx)
	if err != nil {
		return nil, err
	}

	var category models.Category
	if err = bc.FindCategoryBySlug(ctx, bc.ImportCategorySlug, &category); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: import category %q does not exist", revision.ErrInvalidReference, bc.ImportCategorySlug)
		}
		return nil, fmt.Errorf("%w: error reading import category: %v", revision.ErrUnavailable, err)
	}

	filePaths, err := bc.ReadMarkdownFilePaths(bc.ProjectName, bc.RepositoryName, filePathPageSize)
	if err != nil {
		bc.LogError(logType, err)
		return nil, fmt.Errorf("%w: %v", revision.ErrUnavailable, err)
	}

	report := newImportReport()
	importedSlugs := make(map[string]struct{}, len(filePaths))

	for _, filePath := range filePaths {
		name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
		slug := utils.Slugify(name)
		if len(slug) == 0 {
			bc.LogWarnf(logType, "skipping %s: no slug can be derived from its name", filePath)
			report.Failed = append(report.Failed, filePath)
			continue
		}
		if _, ok := importedSlugs[slug]; ok {
			bc.LogWarnf(logType, "skipping %s: slug %s is already used by another file", filePath, slug)
			report.Failed = append(report.Failed, filePath)
			continue
		}
		// a file that is listed counts as present even if reading it fails below
		importedSlugs[slug] = struct{}{}

		content, err := bc.ReadFileContent(bc.ProjectName, bc.RepositoryName, filePath, "")
		if err != nil {
			bc.LogError(logType, err)
			report.Failed = append(report.Failed, slug)
			continue
		}

		if err = bc.importArticle(ctx, actor.ID, category.ID, slug, TitleOf(name, content), content, report); err != nil {
			bc.LogErrorf(logType, "error importing %s as %s: %v", filePath, slug, err)
			report.Failed = append(report.Failed, slug)
		}
	}

	unpublished, err := bc.UnpublishVanishedArticles(ctx, actor.ID, category.ID, importedSlugs)
	report.Unpublished = append(report.Unpublished, unpublished...)
	if err != nil {
		bc.LogError(logType, err)
		report.Failed = append(report.Failed, err.Error())
	}

	bc.LogInfof(logType, "imported %d markdown file(s) in %dms: %d created, %d updated, %d unchanged, %d unpublished, %d failed",
		len(filePaths), time.Since(start).Milliseconds(),
		len(report.Created), len(report.Updated), len(report.Unchanged), len(report.Unpublished), len(report.Failed))

	return report, nil
}

func (bc *Controller) resolveImportUser(ctx context.Context) (*models.User, error) {
	if len(bc.ImportUsername) == 0 {
		return nil, fmt.Errorf("%w: no import account is configured", revision.ErrUnauthenticated)
	}

	var user models.User
	if err := bc.FindUserLoginCredentials(ctx, bc.ImportUsername, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: import account %q does not exist", revision.ErrUnauthenticated, bc.ImportUsername)
		}
		return nil, fmt.Errorf("%w: error reading import account: %v", revision.ErrUnavailable, err)
	}
	return &user, nil
}

func (bc *Controller) importArticle(ctx context.Context, actorId, categoryId uint, slug, title, body string, report *ImportReport) error {
	var existing models.Article
	err := bc.FindArticleBySlug(ctx, slug, &existing)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err = bc.Engine.Create(ctx, actorId, revision.CreateCommand{
			Title:      title,
			Slug:       slug,
			Body:       body,
			CategoryID: categoryId,
			Published:  true,
		})
		if err != nil {
			return err
		}
		report.Created = append(report.Created, slug)
		return nil
	}
	if err != nil {
		return err
	}

	published := true
	result, err := bc.Engine.Update(ctx, actorId, existing.ID, revision.UpdateCommand{
		Title:     &title,
		Body:      &body,
		Published: &published,
	})
	if err != nil {
		return err
	}

	if result.Changed() {
		report.Updated = append(report.Updated, slug)
	} else {
		report.Unchanged = append(report.Unchanged, slug)
	}
	return nil
}

// TitleOf returns the first level-one heading of a markdown document,
// or the file name with dashes and underscores turned into spaces.
func TitleOf(name, markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if title, ok := strings.CutPrefix(line, "# "); ok && len(strings.TrimSpace(title)) > 0 {
			return strings.TrimSpace(title)
		}
	}

	title := strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	}), " ")
	if len(title) == 0 {
		return name
	}
	return title
}
