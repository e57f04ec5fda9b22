package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"
	// DriverNamePostgres identifies the PostgreSQL driver implementation.
	DriverNamePostgres = "postgres"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
	defaultSlowQuery        = 500 * time.Millisecond

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageOpenPostgresDatabase      = "storage: open postgres database"
	errorMessageConfigurePool             = "storage: configure connection pool"
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
)

type databaseDriver struct {
	dialector        func(dataSourceName string) gorm.Dialector
	openErrorMessage string
}

var databaseDrivers = map[string]databaseDriver{
	DriverNameSQLite:   {dialector: sqliteDialector, openErrorMessage: errorMessageOpenSQLiteDatabase},
	DriverNamePostgres: {dialector: postgres.Open, openErrorMessage: errorMessageOpenPostgresDatabase},
}

// Config captures database connection configuration for the dispatch store.
// Zero pool values keep the database/sql defaults. A nil Logger discards SQL logs.
type Config struct {
	DriverName            string
	DataSourceName        string
	MaxOpenConnections    int
	ConnectionMaxLifetime time.Duration
	Logger                *zap.Logger
}

// OpenDatabase opens a database connection using the configured driver and data source name.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	driverName := strings.TrimSpace(configuration.DriverName)
	if driverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}
	driver, supported := databaseDrivers[driverName]
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, driverName)
	}
	dataSourceName := strings.TrimSpace(configuration.DataSourceName)
	if dataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(driver.dialector(dataSourceName), &gorm.Config{
		Logger: newDatabaseLogger(configuration.Logger),
	})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", driver.openErrorMessage, openErr)
	}
	if poolErr := configurePool(database, configuration); poolErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageConfigurePool, poolErr)
	}
	return database, nil
}

// NewID generates a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

func sqliteDialector(dataSourceName string) gorm.Dialector {
	return sqlite.Open(withSQLiteForeignKeys(dataSourceName))
}

// withSQLiteForeignKeys turns on foreign key enforcement for every pooled connection.
func withSQLiteForeignKeys(dataSourceName string) string {
	if strings.Contains(dataSourceName, sqliteForeignKeysPragma) {
		return dataSourceName
	}
	separator := "?"
	if strings.Contains(dataSourceName, "?") {
		separator = "&"
	}
	return dataSourceName + separator + sqliteForeignKeysPragma
}

func configurePool(database *gorm.DB, configuration Config) error {
	if configuration.MaxOpenConnections <= 0 && configuration.ConnectionMaxLifetime <= 0 {
		return nil
	}
	sqlDatabase, sqlErr := database.DB()
	if sqlErr != nil {
		return sqlErr
	}
	if configuration.MaxOpenConnections > 0 {
		sqlDatabase.SetMaxOpenConns(configuration.MaxOpenConnections)
		sqlDatabase.SetMaxIdleConns(configuration.MaxOpenConnections)
	}
	if configuration.ConnectionMaxLifetime > 0 {
		sqlDatabase.SetConnMaxLifetime(configuration.ConnectionMaxLifetime)
	}
	return nil
}

func newDatabaseLogger(zapLogger *zap.Logger) logger.Interface {
	if zapLogger == nil {
		return logger.Discard
	}
	return logger.New(
		zap.NewStdLog(zapLogger.Named("gorm")),
		logger.Config{
			SlowThreshold:             defaultSlowQuery,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  logger.Warn,
		},
	)
}
