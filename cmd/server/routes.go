package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/backend"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/dispatchapi"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/httpapi"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/task"
)

const (
	workspaceSweepTaskName   = "workspace_sweep"
	errorMessageLoadSchema   = "load field catalogs"
	errorMessageBackendURL   = "configure backend client"
	errorMessageWorkspaces   = "configure console workspaces"
	errorMessageMissingStore = "backend mode requires a database"
)

var errMissingDatabase = errors.New(errorMessageMissingStore)

type applicationComponents struct {
	router     *gin.Engine
	schedulers []*task.Scheduler
}

func buildApplication(serverConfig ServerConfig, database *gorm.DB, logger *zap.Logger) (applicationComponents, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	components := applicationComponents{router: router}
	if serverConfig.ServeMode.ServesBackend() {
		if database == nil {
			return applicationComponents{}, errMissingDatabase
		}
		registerBackendRoutes(router, backend.NewHandlers(database, logger))
	}

	if serverConfig.ServeMode.ServesConsole() {
		registry, registryErr := loadSchemaRegistry(serverConfig.SchemaDirectory)
		if registryErr != nil {
			return applicationComponents{}, fmt.Errorf("%s: %w", errorMessageLoadSchema, registryErr)
		}
		client, clientErr := dispatchapi.NewClient(dispatchapi.Config{
			BaseURL:     serverConfig.BackendURL,
			Timeout:     serverConfig.RequestTimeout,
			ReadRetries: serverConfig.BackendReadRetries,
		}, logger)
		if clientErr != nil {
			return applicationComponents{}, fmt.Errorf("%s: %w", errorMessageBackendURL, clientErr)
		}
		realClock := clockwork.NewRealClock()
		workspaces, workspacesErr := httpapi.NewWorkspaceRegistry(httpapi.WorkspaceConfig{
			Backend:              client,
			Registry:             registry,
			Clock:                realClock,
			Deadline:             serverConfig.RequestTimeout,
			NotificationDuration: serverConfig.NotificationDuration,
			SessionSecret:        serverConfig.SessionSecret,
			SecureCookies:        serverConfig.SecureCookies,
			Logger:               logger,
		})
		if workspacesErr != nil {
			return applicationComponents{}, fmt.Errorf("%s: %w", errorMessageWorkspaces, workspacesErr)
		}
		registerConsoleRoutes(router, httpapi.NewConsoleHandlers(workspaces, registry, realClock, logger), serverConfig.AllowedOrigins)

		sweepJob := task.NewWorkspaceSweepJob(workspaces, realClock, serverConfig.WorkspaceIdleTimeout, logger)
		sweepInterval := serverConfig.WorkspaceIdleTimeout / 2
		components.schedulers = append(components.schedulers, task.NewScheduler(workspaceSweepTaskName, sweepInterval, realClock, sweepJob.Run, logger))
	}

	return components, nil
}

func registerBackendRoutes(router *gin.Engine, backendHandlers *backend.Handlers) {
	backendHandlers.RegisterRoutes(router)
}

func registerConsoleRoutes(router *gin.Engine, consoleHandlers *httpapi.ConsoleHandlers, allowedOrigins []string) {
	router.GET("/", func(context *gin.Context) {
		context.Redirect(http.StatusFound, httpapi.ConsolePagePath)
	})
	consoleHandlers.RegisterRoutes(router, httpapi.ConsoleAPICORS(allowedOrigins))
}

func loadSchemaRegistry(schemaDirectory string) (*schema.Registry, error) {
	if schemaDirectory == "" {
		return schema.Load()
	}
	return schema.LoadDir(schemaDirectory)
}
