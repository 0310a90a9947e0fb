package routes

import (
	"content-wiki/internal/articles"
	"content-wiki/internal/bitbucket"
	"content-wiki/internal/categories"
	"content-wiki/internal/constants"
	"content-wiki/internal/history"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/models"
	"github.com/gin-gonic/gin"
)

func RegisterProtectedRoutes(r *gin.Engine, controllerRegistry map[int]any) {

	authGroup := r.Group("")

	authGroup.Use(middlewares.AuthHandler())
	{
		// articles
		articlesApi := controllerRegistry[constants.Articles].(articles.Api)
		authGroup.POST("/articles", articlesApi.CreateArticle)
		authGroup.PATCH("/articles/:slug", articlesApi.UpdateArticle)
		authGroup.GET("/admin/articles", articlesApi.GetAdminArticles)

		// revisions
		historyApi := controllerRegistry[constants.History].(history.Api)
		authGroup.GET("/revisions/:articleId", historyApi.GetRevisionHistory)
		authGroup.GET("/revisions/:articleId/:version", historyApi.GetRevision)
		authGroup.POST("/revisions/:articleId/restore", historyApi.RestoreRevision)
		authGroup.POST("/revisions/:articleId/:version/restore", historyApi.RestoreVersion)
	}

	adminGroup := r.Group("")

	adminGroup.Use(middlewares.AuthHandler(string(models.RoleAdmin)))
	{
		articlesApi := controllerRegistry[constants.Articles].(articles.Api)
		adminGroup.DELETE("/articles/:slug", articlesApi.DeleteArticle)

		categoriesApi := controllerRegistry[constants.Categories].(categories.Api)
		adminGroup.POST("/categories", categoriesApi.CreateCategory)
		adminGroup.PATCH("/categories/:id", categoriesApi.UpdateCategory)
		adminGroup.DELETE("/categories/:id", categoriesApi.DeleteCategory)

		bitbucketApi := controllerRegistry[constants.Bitbucket].(bitbucket.Api)
		adminGroup.POST("/import/bitbucket", bitbucketApi.ImportMarkdowns)
	}
}
