package main_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	servercmd "github.com/MarkoPoloResearchLab/dispatchconsole/cmd/server"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/storage"
)

const (
	testEnvironmentKeyServeMode      = "SERVE_MODE"
	testEnvironmentKeyDatabaseDSN    = "DB_DSN"
	testEnvironmentKeyBackendURL     = "BACKEND_URL"
	testMissingConfigurationMessage  = "missing required configuration"
	testInvalidServeModeMessage      = "invalid serve mode"
	testUsagePrefix                  = "Usage:"
	testFlagIndicator                = "--"
	testPlaceholderBackendURL        = "http://backend.internal:8080"
	testPlaceholderDatabaseDSN       = "file:dispatch.db"
	testFlagNameDatabaseDataSource   = "db-dsn"
	testFlagNameBackendURL           = "backend-url"
	testFlagNameWorkspaceIdleTimeout = "workspace-idle-timeout"
)

func TestServerCommandMissingConfigurationShowsHelp(t *testing.T) {
	testCases := []struct {
		name                string
		serveMode           string
		databaseDSN         string
		backendURL          string
		expectedMessage     string
		expectedMissingFlag string
	}{
		{
			name:                "backend without database dsn",
			serveMode:           "backend",
			expectedMessage:     testMissingConfigurationMessage,
			expectedMissingFlag: testFlagNameDatabaseDataSource,
		},
		{
			name:                "monolith without database dsn",
			serveMode:           "monolith",
			backendURL:          testPlaceholderBackendURL,
			expectedMessage:     testMissingConfigurationMessage,
			expectedMissingFlag: testFlagNameDatabaseDataSource,
		},
		{
			name:                "console without backend url",
			serveMode:           "console",
			databaseDSN:         testPlaceholderDatabaseDSN,
			expectedMessage:     testMissingConfigurationMessage,
			expectedMissingFlag: testFlagNameBackendURL,
		},
		{
			name:                "unknown serve mode",
			serveMode:           "gateway",
			databaseDSN:         testPlaceholderDatabaseDSN,
			backendURL:          testPlaceholderBackendURL,
			expectedMessage:     testInvalidServeModeMessage,
			expectedMissingFlag: testFlagNameWorkspaceIdleTimeout,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Setenv(testEnvironmentKeyServeMode, testCase.serveMode)
			t.Setenv(testEnvironmentKeyDatabaseDSN, testCase.databaseDSN)
			t.Setenv(testEnvironmentKeyBackendURL, testCase.backendURL)

			databaseOpenerStub := func(configuration storage.Config) (*gorm.DB, error) {
				t.Fatalf("database opener invoked with %s", configuration.DataSourceName)
				return nil, nil
			}

			application := servercmd.NewServerApplication().WithDatabaseOpener(databaseOpenerStub)
			command, commandErr := application.Command()
			require.NoError(t, commandErr)

			commandOutput := &bytes.Buffer{}
			command.SetOut(commandOutput)
			command.SetErr(commandOutput)
			command.SetArgs([]string{})

			executionErr := command.Execute()
			require.Error(t, executionErr)

			combinedOutput := commandOutput.String()
			require.Contains(t, combinedOutput, testCase.expectedMessage)
			require.Contains(t, combinedOutput, testUsagePrefix)
			require.Contains(t, combinedOutput, testFlagIndicator+testCase.expectedMissingFlag)
		})
	}
}

func TestServerCommandRejectsPositionalArguments(t *testing.T) {
	application := servercmd.NewServerApplication()
	command, commandErr := application.Command()
	require.NoError(t, commandErr)

	commandOutput := &bytes.Buffer{}
	command.SetOut(commandOutput)
	command.SetErr(commandOutput)
	command.SetArgs([]string{"extra"})

	require.Error(t, command.Execute())
	require.Contains(t, commandOutput.String(), "unexpected command arguments: extra")
}
