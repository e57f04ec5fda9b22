package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseServeMode(testingT *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expected      ServeMode
		expectedError bool
	}{
		{name: "empty defaults to monolith", input: "", expected: ServeModeMonolith},
		{name: "console", input: "console", expected: ServeModeConsole},
		{name: "backend with padding and case", input: "  Backend ", expected: ServeModeBackend},
		{name: "monolith", input: "monolith", expected: ServeModeMonolith},
		{name: "unknown", input: "gateway", expectedError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			mode, parseErr := ParseServeMode(testCase.input)
			if testCase.expectedError {
				require.ErrorIs(testingT, parseErr, ErrInvalidServeMode)
				return
			}
			require.NoError(testingT, parseErr)
			require.Equal(testingT, testCase.expected, mode)
		})
	}
}

func TestServeModeComponents(testingT *testing.T) {
	require.True(testingT, ServeModeMonolith.ServesConsole())
	require.True(testingT, ServeModeMonolith.ServesBackend())
	require.True(testingT, ServeModeConsole.ServesConsole())
	require.False(testingT, ServeModeConsole.ServesBackend())
	require.False(testingT, ServeModeBackend.ServesConsole())
	require.True(testingT, ServeModeBackend.ServesBackend())
}
