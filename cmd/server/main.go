package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/storage"
)

const (
	commandUseName                 = "server"
	commandShortDescription        = "Run the dispatch configuration console"
	commandLongDescription         = "Launch the dispatch alert configuration console, the dispatch backend API, or both"
	missingConfigurationMessage    = "missing required configuration"
	loggerCreationErrorMessage     = "logger"
	logEventListening              = "listening"
	logEventShutdown               = "shutdown"
	logFieldAddress                = "addr"
	logFieldServeMode              = "serve_mode"
	loggerContextOpenDatabase      = "open_db"
	loggerContextAutoMigrate       = "migrate"
	loggerContextServer            = "server"
	readHeaderTimeoutSeconds       = 5
	shutdownTimeout                = 10 * time.Second
	unexpectedArgumentsMessage     = "unexpected command arguments"
	commandInitializationFailure   = "failed to configure command"
	flagNotDefinedMessage          = "flag %s not defined"
	environmentConfigurationError  = "failed to apply environment configuration"
	loopbackHost                   = "127.0.0.1"
	httpSchemePrefix               = "http://"
	allowedOriginsSeparator        = ","
	defaultApplicationAddress      = ":8080"
	defaultDatabaseDriver          = storage.DriverNameSQLite
	defaultRequestTimeout          = 180 * time.Second
	defaultNotificationDuration    = 3 * time.Second
	defaultWorkspaceIdleTimeout    = 30 * time.Minute
	defaultBackendReadRetries      = 2
	defaultLogLevel                = "info"
	defaultServeMode               = string(ServeModeMonolith)
	flagNameApplicationAddress     = "app-addr"
	flagNameServeMode              = "serve-mode"
	flagNameBackendURL             = "backend-url"
	flagNameDatabaseDriver         = "db-driver"
	flagNameDatabaseDataSourceName = "db-dsn"
	flagNameDatabaseMaxOpen        = "db-max-open-connections"
	flagNameRequestTimeout         = "request-timeout"
	flagNameNotificationDuration   = "notification-duration"
	flagNameSessionSecret          = "session-secret"
	flagNameSecureCookies          = "secure-cookies"
	flagNameWorkspaceIdleTimeout   = "workspace-idle-timeout"
	flagNameBackendReadRetries     = "backend-read-retries"
	flagNameSchemaDirectory        = "schema-dir"
	flagNameAllowedOrigins         = "allowed-origins"
	flagNameLogLevel               = "log-level"
	environmentKeyApplicationAddr  = "APP_ADDR"
	environmentKeyServeMode        = "SERVE_MODE"
	environmentKeyBackendURL       = "BACKEND_URL"
	environmentKeyDatabaseDriver   = "DB_DRIVER"
	environmentKeyDatabaseDSN      = "DB_DSN"
	environmentKeyDatabaseMaxOpen  = "DB_MAX_OPEN_CONNECTIONS"
	environmentKeyRequestTimeout   = "REQUEST_TIMEOUT"
	environmentKeyNotification     = "NOTIFICATION_DURATION"
	environmentKeySessionSecret    = "SESSION_SECRET"
	environmentKeySecureCookies    = "SECURE_COOKIES"
	environmentKeyWorkspaceIdle    = "WORKSPACE_IDLE_TIMEOUT"
	environmentKeyReadRetries      = "BACKEND_READ_RETRIES"
	environmentKeySchemaDirectory  = "SCHEMA_DIR"
	environmentKeyAllowedOrigins   = "ALLOWED_ORIGINS"
	environmentKeyLogLevel         = "LOG_LEVEL"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	ServeMode              ServeMode
	BackendURL             string
	DatabaseDriver         string
	DatabaseDataSourceName string
	DatabaseMaxOpen        int
	RequestTimeout         time.Duration
	NotificationDuration   time.Duration
	SessionSecret          string
	SecureCookies          bool
	WorkspaceIdleTimeout   time.Duration
	BackendReadRetries     int
	SchemaDirectory        string
	AllowedOrigins         []string
	LogLevel               string
}

// DatabaseOpener opens a database connection using the provided configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

type configurationBinding struct {
	environmentKey string
	flagName       string
}

var configurationBindings = []configurationBinding{
	{environmentKey: environmentKeyApplicationAddr, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyServeMode, flagName: flagNameServeMode},
	{environmentKey: environmentKeyBackendURL, flagName: flagNameBackendURL},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver},
	{environmentKey: environmentKeyDatabaseDSN, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyDatabaseMaxOpen, flagName: flagNameDatabaseMaxOpen},
	{environmentKey: environmentKeyRequestTimeout, flagName: flagNameRequestTimeout},
	{environmentKey: environmentKeyNotification, flagName: flagNameNotificationDuration},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeySecureCookies, flagName: flagNameSecureCookies},
	{environmentKey: environmentKeyWorkspaceIdle, flagName: flagNameWorkspaceIdleTimeout},
	{environmentKey: environmentKeyReadRetries, flagName: flagNameBackendReadRetries},
	{environmentKey: environmentKeySchemaDirectory, flagName: flagNameSchemaDirectory},
	{environmentKey: environmentKeyAllowedOrigins, flagName: flagNameAllowedOrigins},
	{environmentKey: environmentKeyLogLevel, flagName: flagNameLogLevel},
}

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddr, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyServeMode, defaultServeMode)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriver)
	application.configurationLoader.SetDefault(environmentKeyRequestTimeout, defaultRequestTimeout)
	application.configurationLoader.SetDefault(environmentKeyNotification, defaultNotificationDuration)
	application.configurationLoader.SetDefault(environmentKeyWorkspaceIdle, defaultWorkspaceIdleTimeout)
	application.configurationLoader.SetDefault(environmentKeyReadRetries, defaultBackendReadRetries)
	application.configurationLoader.SetDefault(environmentKeyLogLevel, defaultLogLevel)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, "address for the HTTP server to listen on")
	commandFlags.String(flagNameServeMode, defaultServeMode, "what to serve: console, backend or monolith")
	commandFlags.String(flagNameBackendURL, "", "base URL of the dispatch backend (console mode; defaults to this server in monolith mode)")
	commandFlags.String(flagNameDatabaseDriver, defaultDatabaseDriver, "database driver of the backend: sqlite or postgres")
	commandFlags.String(flagNameDatabaseDataSourceName, "", "database connection string of the backend")
	commandFlags.Int(flagNameDatabaseMaxOpen, 0, "maximum open backend database connections (0 keeps the driver default)")
	commandFlags.Duration(flagNameRequestTimeout, defaultRequestTimeout, "deadline of every create, update or delete request")
	commandFlags.Duration(flagNameNotificationDuration, defaultNotificationDuration, "how long a notification stays visible")
	commandFlags.String(flagNameSessionSecret, "", "secret signing the console session cookie")
	commandFlags.Bool(flagNameSecureCookies, false, "mark the console session cookie as secure")
	commandFlags.Duration(flagNameWorkspaceIdleTimeout, defaultWorkspaceIdleTimeout, "idle time after which a browser workspace is discarded")
	commandFlags.Int(flagNameBackendReadRetries, defaultBackendReadRetries, "retries of failed backend reads")
	commandFlags.String(flagNameSchemaDirectory, "", "directory of field catalog YAML files (defaults to the built-in catalogs)")
	commandFlags.String(flagNameAllowedOrigins, "", "comma separated origins allowed to call the console JSON API")
	commandFlags.String(flagNameLogLevel, defaultLogLevel, "log level: debug, info, warn or error")

	for _, binding := range configurationBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range configurationBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	loader := application.configurationLoader
	serveMode, serveModeErr := ParseServeMode(loader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, serveModeErr
	}

	serverConfig := ServerConfig{
		ApplicationAddress:     strings.TrimSpace(loader.GetString(environmentKeyApplicationAddr)),
		ServeMode:              serveMode,
		BackendURL:             strings.TrimSpace(loader.GetString(environmentKeyBackendURL)),
		DatabaseDriver:         strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDSN)),
		DatabaseMaxOpen:        loader.GetInt(environmentKeyDatabaseMaxOpen),
		RequestTimeout:         loader.GetDuration(environmentKeyRequestTimeout),
		NotificationDuration:   loader.GetDuration(environmentKeyNotification),
		SessionSecret:          loader.GetString(environmentKeySessionSecret),
		SecureCookies:          loader.GetBool(environmentKeySecureCookies),
		WorkspaceIdleTimeout:   loader.GetDuration(environmentKeyWorkspaceIdle),
		BackendReadRetries:     loader.GetInt(environmentKeyReadRetries),
		SchemaDirectory:        strings.TrimSpace(loader.GetString(environmentKeySchemaDirectory)),
		AllowedOrigins:         splitAllowedOrigins(loader.GetString(environmentKeyAllowedOrigins)),
		LogLevel:               strings.TrimSpace(loader.GetString(environmentKeyLogLevel)),
	}
	if serverConfig.ServeMode == ServeModeMonolith && serverConfig.BackendURL == "" {
		serverConfig.BackendURL = loopbackURL(serverConfig.ApplicationAddress)
	}
	return serverConfig, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}
	command.SilenceUsage = true

	logger, loggerErr := newLogger(serverConfig.LogLevel)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var database *gorm.DB
	if serverConfig.ServeMode.ServesBackend() {
		var databaseErr error
		database, databaseErr = application.databaseOpener(storage.Config{
			DriverName:         serverConfig.DatabaseDriver,
			DataSourceName:     serverConfig.DatabaseDataSourceName,
			MaxOpenConnections: serverConfig.DatabaseMaxOpen,
			Logger:             logger,
		})
		if databaseErr != nil {
			logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
			return databaseErr
		}
		if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
			logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
			return migrateErr
		}
	}

	gin.SetMode(gin.ReleaseMode)
	components, buildErr := buildApplication(serverConfig, database, logger)
	if buildErr != nil {
		return buildErr
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	for _, scheduler := range components.schedulers {
		scheduler.Start(signalContext)
		defer scheduler.Stop()
	}

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           components.router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}
	go func() {
		<-signalContext.Done()
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		logger.Info(logEventShutdown)
		_ = httpServer.Shutdown(shutdownContext)
	}()

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress), zap.String(logFieldServeMode, string(serverConfig.ServeMode)))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}

	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.ApplicationAddress == "" {
		missingParameters = append(missingParameters, flagNameApplicationAddress)
	}

	if configuration.ServeMode.ServesBackend() && configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.ServeMode.ServesConsole() && configuration.BackendURL == "" {
		missingParameters = append(missingParameters, flagNameBackendURL)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, levelErr := zap.ParseAtomicLevel(level)
	if levelErr != nil {
		return nil, levelErr
	}
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = atomicLevel
	return loggerConfig.Build()
}

// loopbackURL is the address the console uses to reach the backend served by the same process.
func loopbackURL(applicationAddress string) string {
	host, port, splitErr := net.SplitHostPort(applicationAddress)
	if splitErr != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = loopbackHost
	}
	return httpSchemePrefix + net.JoinHostPort(host, port)
}

func splitAllowedOrigins(rawOrigins string) []string {
	var origins []string
	for _, origin := range strings.Split(rawOrigins, allowedOriginsSeparator) {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
