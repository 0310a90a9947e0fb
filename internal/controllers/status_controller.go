package controllers

import (
	"content-wiki/internal/api"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"context"
	"github.com/gin-gonic/gin"
	"net/http"
	"time"
)

const statusTimeout = 2 * time.Second

func GetHeartBeat(c *gin.Context) {
	c.AbortWithStatus(http.StatusOK)
}

type StatusApi interface {
	GetStatus(c *gin.Context)
}

// StatusController reports whether the database and the article cache are reachable.
type StatusController struct {
	*environment.Env
}

// ensure StatusController implements StatusApi
var _ StatusApi = &StatusController{}

type dependencyStatus struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// pinger is implemented by repositories backed by a database server.
type pinger interface {
	Ping(ctx context.Context) error
}

func (sc *StatusController) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()

	status := dependencyStatus{Database: "up", Cache: "up"}

	if db, ok := sc.Repository.(pinger); ok {
		if err := db.Ping(ctx); err != nil {
			sc.LogWarnf(logging.GetLogType("status", logging.RequestId(ctx)), "database is not reachable: %v", err)
			status.Database = "down"
		}
	}

	if err := sc.Cache.Ping(ctx); err != nil {
		sc.LogWarnf(logging.GetLogType("status", logging.RequestId(ctx)), "cache is not reachable: %v", err)
		status.Cache = "down"
	}

	// the cache is optional for serving requests
	if status.Database == "down" {
		c.JSON(http.StatusServiceUnavailable, api.NewGenericResponse(api.Error, "degraded", status))
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "running", status))
}
