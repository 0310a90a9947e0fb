package main

import (
	"content-wiki/internal/articles"
	"content-wiki/internal/auth"
	"content-wiki/internal/bitbucket"
	"content-wiki/internal/cache"
	"content-wiki/internal/categories"
	"content-wiki/internal/config"
	"content-wiki/internal/constants"
	"content-wiki/internal/controllers"
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/history"
	"content-wiki/internal/logging"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/revision"
	"content-wiki/internal/routes"
	"context"
	"fmt"
	"github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"golang.org/x/text/language"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

const bitbucketImport = "bitbucket import"

var initializationState sync.Map

func main() {
	c := config.InitConfig()

	logger := logging.InitLogging(c)

	if len(c.Auth.SigningKey) > 0 {
		middlewares.SigningKey = c.Auth.SigningKey
	} else {
		logger.LogWarn(logging.GetLogTypeInitialization(), "no JWT signing key configured, using the built-in key")
	}
	middlewares.TokenTtl = c.Auth.TokenTtl.Duration

	controllerRegistry, err := injectDependencies(c, logger)
	if err != nil {
		logger.LogErrorf(nil, "injecting depencies failed: %s", err.Error())
		return
	}

	ginLogger := logging.InitGinLogger(c)

	gin.DefaultWriter = io.MultiWriter(&zapio.Writer{Log: ginLogger, Level: config.Config().Logging.Level})
	if config.Config().Logging.Level == zap.DebugLevel {
		logger.LogDebug(nil, "Enabling Gin debug (writes to access log)")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		ginzap.GinzapWithConfig(ginLogger, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        false,
			SkipPaths:  []string{"/status", "/heartbeat"},
		}),
		ginzap.RecoveryWithZap(ginLogger, true),
	)

	// Routes
	routes.InitRouter(r, controllerRegistry)

	SetupCloseHandler(logger)
	go func() {
		defer logger.RecoverPanic("initialization check")
		checkAllInitializations(logger)
	}()

	if len(config.Config().ListeningAddress) == 0 && len(config.Config().ListeningPort) == 0 {
		panic("No listening address/port provided")
	}

	logger.LogInfof(nil, "API running. Listening on %s:%s", config.Address(), config.Port())

	err = r.Run(config.Address() + ":" + config.Port())
	if err != nil {
		logger.LogErrorf(nil, "Listening on %s:%s failed: %s", config.Address(), config.Port(), err.Error())
		return
	}
}

func injectDependencies(config *config.Configuration, logger *logging.DefaultLogger) (map[int]any, error) {
	repository, err := database.InitRepository(config, logger)
	if err != nil {
		logger.LogError(nil, "error initializing database: ", err)
		return nil, err
	}

	env := environment.Environment(repository, logger)

	redisClient, err := cache.InitRedis(config, logger)
	if err != nil {
		// public reads fall back to the database
		logger.LogWarnf(logging.GetLogTypeInitialization(), "article cache disabled: %v", err)
	} else if redisClient != nil {
		env.WithCache(cache.NewRedisArticleCache(redisClient, config.Redis.ArticleTtl.Duration))
	}

	engine := revision.NewEngine(env)

	bitbucketController := &bitbucket.Controller{
		Env:                 env,
		MarkdownHousekeeper: &bitbucket.DefaultMarkdownHousekeeper{Env: env, Engine: engine},
		Engine:              engine,
		ProjectName:         config.BitBucket.ProjectName,
		RepositoryName:      config.BitBucket.Repository,
		ImportUsername:      config.BitBucket.ImportUsername,
		ImportCategorySlug:  config.BitBucket.ImportCategorySlug,
	}
	if config.BitBucket.Url != nil {
		reader, err := bitbucket.InitBitbucket(config, env)
		if err != nil {
			logger.LogErrorf(logging.GetLogTypeInitialization(), "Error initializing Bitbucket Api: %v", err)
		} else {
			bitbucketController.Reader = reader
			initializationState.Store(bitbucketImport, "running")
			go func() {
				defer logger.RecoverPanic(bitbucketImport)
				importFromBitbucket(env, bitbucketController)
			}()
		}
	} else {
		logger.LogInfo(logging.GetLogTypeInitialization(), "no Bitbucket url configured, import disabled")
	}

	// the Collator is used for lexicographic order with locale-aware sorting,
	// instead of Go's default pure Unicode code point ordering
	categoriesController := categories.NewController(env, language.English)

	controllerRegistry := make(map[int]any)
	controllerRegistry[constants.Articles] = articles.NewController(env, engine)
	controllerRegistry[constants.History] = history.NewController(env, engine)
	controllerRegistry[constants.Categories] = categoriesController
	controllerRegistry[constants.Auth] = auth.NewController(env)
	controllerRegistry[constants.Bitbucket] = bitbucketController
	controllerRegistry[constants.Status] = &controllers.StatusController{Env: env}

	return controllerRegistry, nil
}

// importFromBitbucket imports the markdown files once on startup.
func importFromBitbucket(env *environment.Env, bitbucketController *bitbucket.Controller) {
	if _, err := bitbucketController.Import(context.Background()); err != nil {
		env.LogErrorf(logging.GetLogTypeImport(), "startup import failed: %v", err)
		initializationState.Store(bitbucketImport, "failed")
		return
	}
	initializationState.Delete(bitbucketImport)
}

func checkAllInitializations(logger logging.Logger) {
	internalCounter := 15
	failedInits, unfinishedInits := make([]string, 0), make([]string, 0)
	time.Sleep(time.Second * 2)
	for internalCounter != 0 {
		allWorkedOn := true
		failedInits = []string{}
		unfinishedInits = []string{}
		initializationState.Range(func(key, value interface{}) bool {
			if value == "failed" {
				failedInits = append(failedInits, key.(string))
			} else {
				unfinishedInits = append(unfinishedInits, key.(string))
				logger.LogWarnf(nil, "Initialization: waiting for %v", key)
				allWorkedOn = false
			}
			return true
		})
		if allWorkedOn {
			break
		}
		time.Sleep(time.Second * 2)
		if internalCounter%5 == 0 {
			logger.LogDebug(nil, "Waiting for all initialization(s) to complete...")
		}
		internalCounter--
	}
	if len(failedInits) > 0 || len(unfinishedInits) > 0 || internalCounter == 0 {
		if len(unfinishedInits) > 0 {
			logger.LogErrorf(nil, "%v Initialization function(s) did not complete in time: %v",
				len(unfinishedInits), strings.Join(unfinishedInits, ", "))
		}
		if len(failedInits) > 0 {
			logger.LogErrorf(nil, "%v Initialization function(s) failed: %v",
				len(failedInits), strings.Join(failedInits, ", "))
		}
	} else {
		logger.LogInfo(nil, "Initialization completed successfully")
	}
}

func SetupCloseHandler(logger logging.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-c
		fmt.Println()
		logger.LogWarnf(nil, "Cleaning up...")
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}()
}
