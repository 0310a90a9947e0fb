package environment

import (
	"content-wiki/internal/cache"
	"content-wiki/internal/database"
	"content-wiki/internal/logging"
)

// Env provides access to shared resources such as the database repository, the article cache and logging interface.
// It is typically embedded in higher-level components that require infrastructure dependencies.
type Env struct {
	database.Repository
	logging.Logger
	Cache cache.ArticleCache
}

// Environment constructs a new Env instance using the provided database repository and logger.
// If either parameter is nil, a no-op implementation is substituted. The article cache starts
// out as a no-op; see WithCache.
//
// param repository a database repository implementation or nil
// param logger a logging implementation or nil
// return a fully initialized *Env with fallback defaults
func Environment(repository database.Repository, logger logging.Logger) *Env {
	if repository == nil {
		repository = &database.NullRepository{}
	}

	if logger == nil {
		logger = &logging.NullLogger{}
	}

	return &Env{repository, logger, &cache.NullArticleCache{}}
}

// WithCache replaces the article cache of the Env; a nil cache keeps the no-op one.
func (e *Env) WithCache(c cache.ArticleCache) *Env {
	if c != nil {
		e.Cache = c
	}
	return e
}

// Null returns an Env with no-op implementations for repository, cache and logger.
// Useful for testing or as a stub in wiring graphs.
func Null() *Env {
	return Environment(nil, nil)
}
