package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/storage"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/testutil"
)

const (
	testSystemNameValue              = "County Fire"
	testAgencyCodeValue              = "FD1"
	testAgencyNameValue              = "Fire One"
	testAlertEmailValue              = "alerts@example.com"
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
)

func TestOpenDatabaseWithSQLiteConfiguration(testingT *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(testingT)

	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(testingT, openErr)
	database = testutil.ConfigureDatabaseLogger(testingT, database)
	require.NoError(testingT, storage.AutoMigrate(database))

	system := model.System{
		SystemName:   testSystemNameValue,
		SystemAPIKey: storage.NewID(),
		AlertEmails:  []model.SystemAlertEmail{{Email: testAlertEmailValue}},
		Agencies: []model.Agency{{
			AgencyCode: testAgencyCodeValue,
			AgencyName: testAgencyNameValue,
			Emails:     []model.AgencyEmail{{EmailAddress: testAlertEmailValue}},
		}},
	}
	require.NoError(testingT, database.Create(&system).Error)
	require.NotZero(testingT, system.SystemID)

	var fetched model.System
	require.NoError(testingT, database.Preload("AlertEmails").Preload("Agencies.Emails").First(&fetched, system.SystemID).Error)
	require.Equal(testingT, testSystemNameValue, fetched.SystemName)
	require.Len(testingT, fetched.AlertEmails, 1)
	require.Len(testingT, fetched.Agencies, 1)
	require.Equal(testingT, testAlertEmailValue, fetched.Agencies[0].Emails[0].EmailAddress)
}

func TestAutoMigrateBackfillsAgencyToneDefaults(testingT *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(testingT)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(testingT, openErr)
	require.NoError(testingT, storage.AutoMigrate(database))

	system := model.System{SystemName: testSystemNameValue}
	require.NoError(testingT, database.Create(&system).Error)
	agency := model.Agency{SystemID: system.SystemID, AgencyCode: testAgencyCodeValue, AgencyName: testAgencyNameValue, IgnoreTime: 60}
	require.NoError(testingT, database.Create(&agency).Error)

	require.NoError(testingT, storage.AutoMigrate(database))

	var fetched model.Agency
	require.NoError(testingT, database.First(&fetched, agency.AgencyID).Error)
	require.Equal(testingT, storage.DefaultToneTolerance, fetched.ToneTolerance)
	require.Equal(testingT, float64(60), fetched.IgnoreTime)
}

func TestUniqueSystemNameIsEnforced(testingT *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(testingT)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(testingT, openErr)
	database = testutil.ConfigureDatabaseLogger(testingT, database)
	require.NoError(testingT, storage.AutoMigrate(database))

	require.NoError(testingT, database.Create(&model.System{SystemName: testSystemNameValue}).Error)
	require.Error(testingT, database.Create(&model.System{SystemName: testSystemNameValue}).Error)
}

func TestOpenDatabaseValidatesConfiguration(testingT *testing.T) {
	testCases := []struct {
		name          string
		configuration storage.Config
		expectedError error
	}{
		{
			name:          testMissingDriverDescription,
			configuration: storage.Config{DataSourceName: "file::memory:"},
			expectedError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name:          testUnsupportedDriverDescription,
			configuration: storage.Config{DriverName: testUnsupportedDriverName, DataSourceName: "file::memory:"},
			expectedError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name:          testMissingDataSourceDescription,
			configuration: storage.Config{DriverName: storage.DriverNameSQLite},
			expectedError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.ErrorIs(testingT, openErr, testCase.expectedError)
		})
	}
}
