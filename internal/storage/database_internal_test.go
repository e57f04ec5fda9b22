package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func closedMemoryDatabaseConfig(testingT *testing.T) Config {
	return Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(testingT.Name(), "/", "_")),
	}
}

func TestWithSQLiteForeignKeysAppendsPragma(testingT *testing.T) {
	testCases := []struct {
		name           string
		dataSourceName string
		expected       string
	}{
		{name: "plain path", dataSourceName: "dispatch.db", expected: "dispatch.db?" + sqliteForeignKeysPragma},
		{name: "existing query", dataSourceName: "file:x?mode=memory", expected: "file:x?mode=memory&" + sqliteForeignKeysPragma},
		{name: "already present", dataSourceName: "dispatch.db?" + sqliteForeignKeysPragma, expected: "dispatch.db?" + sqliteForeignKeysPragma},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			require.Equal(testingT, testCase.expected, withSQLiteForeignKeys(testCase.dataSourceName))
		})
	}
}

func TestOpenDatabaseEnforcesSQLiteForeignKeys(testingT *testing.T) {
	database, openErr := OpenDatabase(closedMemoryDatabaseConfig(testingT))
	require.NoError(testingT, openErr)

	var enabled int
	require.NoError(testingT, database.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	require.Equal(testingT, 1, enabled)
}

func TestOpenDatabaseAppliesPoolLimits(testingT *testing.T) {
	configuration := closedMemoryDatabaseConfig(testingT)
	configuration.MaxOpenConnections = 3
	configuration.ConnectionMaxLifetime = time.Minute

	database, openErr := OpenDatabase(configuration)
	require.NoError(testingT, openErr)

	sqlDatabase, sqlErr := database.DB()
	require.NoError(testingT, sqlErr)
	require.Equal(testingT, 3, sqlDatabase.Stats().MaxOpenConnections)
}

func TestNewDatabaseLoggerDiscardsWithoutZapLogger(testingT *testing.T) {
	require.Equal(testingT, logger.Discard, newDatabaseLogger(nil))
	require.NotEqual(testingT, logger.Discard, newDatabaseLogger(zap.NewNop()))
}

func TestOpenSQLiteDatabaseReportsOpenError(testingT *testing.T) {
	missingDirectory := filepath.Join(testingT.TempDir(), "missing")
	dataSourceName := fmt.Sprintf("file:%s?mode=rwc", filepath.Join(missingDirectory, "test.db"))

	_, openErr := OpenDatabase(Config{DriverName: DriverNameSQLite, DataSourceName: dataSourceName})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenSQLiteDatabase)
}

func TestOpenPostgresDatabaseReportsConnectionError(testingT *testing.T) {
	_, openErr := OpenDatabase(Config{
		DriverName:     DriverNamePostgres,
		DataSourceName: "host=127.0.0.1 port=1 user=dispatch dbname=dispatch sslmode=disable connect_timeout=1",
	})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenPostgresDatabase)
}

func TestAutoMigrateReportsErrorOnClosedDatabase(testingT *testing.T) {
	database, openErr := OpenDatabase(closedMemoryDatabaseConfig(testingT))
	require.NoError(testingT, openErr)

	sqlDatabase, sqlErr := database.DB()
	require.NoError(testingT, sqlErr)
	require.NoError(testingT, sqlDatabase.Close())

	require.Error(testingT, AutoMigrate(database))
	require.Error(testingT, backfillAgencyToneDefaults(database))
}
