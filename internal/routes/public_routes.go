package routes

import (
	"content-wiki/internal/articles"
	"content-wiki/internal/auth"
	"content-wiki/internal/categories"
	"content-wiki/internal/constants"
	"github.com/gin-gonic/gin"
)

func RegisterPublicRoutes(r *gin.Engine, controllerRegistry map[int]any) {
	// auth
	authApi := controllerRegistry[constants.Auth].(auth.Api)
	r.POST("/login", authApi.Login)
	r.POST("/refresh-token", authApi.RefreshToken)

	// published articles
	articlesApi := controllerRegistry[constants.Articles].(articles.Api)
	r.GET("/articles", articlesApi.GetPublishedArticles)
	r.GET("/articles/:slug", articlesApi.GetArticleBySlug)
	r.POST("/articles/search", articlesApi.GetArticleSearchTermMatches)

	// categories
	categoriesApi := controllerRegistry[constants.Categories].(categories.Api)
	r.GET("/categories", categoriesApi.GetCategoryTree)
}
