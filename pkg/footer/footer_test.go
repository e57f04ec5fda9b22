package footer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testFooterProduct    = "Dispatch Alert Configuration"
	testFooterElementID  = "footer-element"
	testFooterLinkLabel  = "Systems API"
	testFooterLinkURL    = "/admin/api/systems"
	testFooterCustomItem = "footer-item"
)

func TestRenderIncludesProductAndCount(testingT *testing.T) {
	html, err := Render(Config{Product: testFooterProduct, SystemCount: 3})
	require.NoError(testingT, err)

	rendered := string(html)
	require.Contains(testingT, rendered, `id="`+defaultElementID+`"`)
	require.Contains(testingT, rendered, testFooterProduct)
	require.Contains(testingT, rendered, "3 systems")
	require.NotContains(testingT, rendered, "<time")
}

func TestRenderSingularSystemCount(testingT *testing.T) {
	html, err := Render(Config{Product: testFooterProduct, SystemCount: 1})
	require.NoError(testingT, err)
	require.Contains(testingT, string(html), ">1 system<")
}

func TestRenderClampsNegativeCount(testingT *testing.T) {
	html, err := Render(Config{Product: testFooterProduct, SystemCount: -2})
	require.NoError(testingT, err)
	require.Contains(testingT, string(html), "0 systems")
}

func TestRenderRefreshedTimestamp(testingT *testing.T) {
	refreshedAt := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	html, err := Render(Config{Product: testFooterProduct, RefreshedAt: refreshedAt})
	require.NoError(testingT, err)

	rendered := string(html)
	require.Contains(testingT, rendered, `datetime="2026-03-01T09:30:00Z"`)
	require.Contains(testingT, rendered, "Refreshed 2026-03-01 09:30:00 UTC")
}

func TestRenderCustomHooksAndLinks(testingT *testing.T) {
	html, err := Render(Config{
		Product:   testFooterProduct,
		ElementID: testFooterElementID,
		ItemClass: testFooterCustomItem,
		Links:     []Link{{Label: testFooterLinkLabel, URL: testFooterLinkURL}},
	})
	require.NoError(testingT, err)

	rendered := string(html)
	require.Contains(testingT, rendered, `id="`+testFooterElementID+`"`)
	require.Contains(testingT, rendered, `href="`+testFooterLinkURL+`"`)
	require.Contains(testingT, rendered, testFooterLinkLabel)
	require.Equal(testingT, 3, strings.Count(rendered, testFooterCustomItem))
}

func TestRenderEscapesProduct(testingT *testing.T) {
	html, err := Render(Config{Product: "<b>Console</b>"})
	require.NoError(testingT, err)
	require.Contains(testingT, string(html), "&lt;b&gt;Console&lt;/b&gt;")
}

func TestRenderRequiresProduct(testingT *testing.T) {
	_, err := Render(Config{})
	require.ErrorIs(testingT, err, ErrMissingProduct)
}
