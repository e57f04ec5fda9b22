package form_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
)

func TestDisplayValueCoercesBackendTypes(testingT *testing.T) {
	testCases := []struct {
		name     string
		raw      any
		expected string
	}{
		{name: "absent", raw: nil, expected: ""},
		{name: "string", raw: "smtp.example.com", expected: "smtp.example.com"},
		{name: "whole number", raw: float64(587), expected: "587"},
		{name: "fraction", raw: 2.5, expected: "2.5"},
		{name: "integer", raw: 2, expected: "2"},
		{name: "true", raw: true, expected: "1"},
		{name: "false", raw: false, expected: "0"},
		{name: "list", raw: []any{"a@x.com", "b@x.com"}, expected: "a@x.com, b@x.com"},
		{name: "string list", raw: []string{"a@x.com"}, expected: "a@x.com"},
		{name: "object", raw: map[string]any{"Authorization": "Bearer t"}, expected: `{"Authorization":"Bearer t"}`},
		{name: "empty object", raw: map[string]any{}, expected: ""},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			require.Equal(testingT, testCase.expected, form.DisplayValue(testCase.raw))
		})
	}
}

func TestValuesEqualComparesNumbersNumerically(testingT *testing.T) {
	require.True(testingT, form.ValuesEqual("2", "2"))
	require.True(testingT, form.ValuesEqual("2", "2.0"))
	require.True(testingT, form.ValuesEqual("1", " 1 "))
	require.False(testingT, form.ValuesEqual("1", "2"))
	require.True(testingT, form.ValuesEqual("STARTTLS", "STARTTLS"))
	require.False(testingT, form.ValuesEqual("ssl", "SSL"))
	require.False(testingT, form.ValuesEqual("", "0"))
}

func TestSplitListTrimsAndDeduplicates(testingT *testing.T) {
	require.Equal(testingT, []string{"a@x.com", "b@x.com"}, form.SplitList(" a@x.com ,b@x.com, a@x.com,, "))
	require.Equal(testingT, []string{"a@x.com", "b@x.com"}, form.SplitList("a@x.com\nb@x.com"))
	require.Empty(testingT, form.SplitList("  "))
}
