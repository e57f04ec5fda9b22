package httpapi_test

import (
	"strings"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
)

const (
	integrationSystemFormSelector  = "#form_system_1"
	integrationSystemNameSelector  = "#system_name_system_1"
	integrationAPIKeySelector      = "#system_api_key_system_1"
	integrationRegenerateSelector  = `[data-regenerate-secret="system_api_key_system_1"]`
	integrationBannerAlertSelector = "#notification-banner .alert"
	integrationRenamedSystem       = "County Fire Rescue"
)

func TestConsoleIntegrationEditsSystemInBrowser(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)

	harness := newConsoleHarness(testingT)
	harness.newBrowser().createSystem(testingT, "CF", "County Fire")
	server := newHTTPTestServer(testingT, harness.router)

	var originalKey string
	var regeneratedKey string
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+"/admin/systems?system_id=1"),
		chromedp.WaitReady(integrationSystemFormSelector, chromedp.ByQuery),
		chromedp.Value(integrationAPIKeySelector, &originalKey, chromedp.ByQuery),
		chromedp.Click(integrationRegenerateSelector, chromedp.ByQuery),
		chromedp.Value(integrationAPIKeySelector, &regeneratedKey, chromedp.ByQuery),
		chromedp.SetValue(integrationSystemNameSelector, integrationRenamedSystem, chromedp.ByQuery),
		chromedp.Submit(integrationSystemFormSelector, chromedp.ByQuery),
		chromedp.WaitReady(integrationBannerAlertSelector, chromedp.ByQuery),
	)
	require.NoError(testingT, runErr)
	require.NotEmpty(testingT, originalKey)
	require.NotEqual(testingT, originalKey, regeneratedKey)

	var bannerText string
	var renderedName string
	readErr := chromedp.Run(browserContext,
		chromedp.Text(integrationBannerAlertSelector, &bannerText, chromedp.ByQuery),
		chromedp.Value(integrationSystemNameSelector, &renderedName, chromedp.ByQuery),
	)
	require.NoError(testingT, readErr)
	require.Contains(testingT, strings.TrimSpace(bannerText), "Settings updated successfully for system 1.")
	require.Equal(testingT, integrationRenamedSystem, renderedName)

	system := storedSystem(testingT, harness.database, "1")
	require.Equal(testingT, integrationRenamedSystem, system.SystemName)
	require.Equal(testingT, regeneratedKey, system.SystemAPIKey)
}
