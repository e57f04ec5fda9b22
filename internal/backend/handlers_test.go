package backend_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/backend"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/testutil"
)

const (
	testSystemName  = "County Fire"
	testAgencyCode  = "E7"
	testAgencyName  = "Engine 7"
	testAlertEmails = "a@x.com, b@x.com"
	getSystemsPath  = "/api/get_systems"
	getAgencyPath   = "/api/get_agency"
	saveSystemPath  = "/admin/save_system"
	saveAgencyPath  = "/admin/save_agency"
)

type backendResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type backendTestHarness struct {
	router   *gin.Engine
	database *gorm.DB
}

func newBackendTestHarness(testingT *testing.T) backendTestHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	database := testutil.OpenMigratedDatabase(testingT)
	router := gin.New()
	backend.NewHandlers(database, zap.NewNop()).RegisterRoutes(router)
	return backendTestHarness{router: router, database: database}
}

func (harness backendTestHarness) postMultipart(testingT *testing.T, path string, fields map[string]string) (int, backendResponse) {
	testingT.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(testingT, writer.WriteField(name, value))
	}
	require.NoError(testingT, writer.Close())

	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return harness.serve(testingT, request)
}

func (harness backendTestHarness) get(testingT *testing.T, path string) (int, backendResponse) {
	testingT.Helper()
	return harness.serve(testingT, httptest.NewRequest(http.MethodGet, path, nil))
}

func (harness backendTestHarness) serve(testingT *testing.T, request *http.Request) (int, backendResponse) {
	testingT.Helper()

	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	var response backendResponse
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &response), recorder.Body.String())
	return recorder.Code, response
}

func (harness backendTestHarness) createSystem(testingT *testing.T, fields map[string]string) string {
	testingT.Helper()

	status, response := harness.postMultipart(testingT, saveSystemPath+"?new_system=true", fields)
	require.Equal(testingT, http.StatusOK, status, response.Message)
	require.True(testingT, response.Success)
	return string(response.Result)
}

func (harness backendTestHarness) fetchSystems(testingT *testing.T, query string) []map[string]any {
	testingT.Helper()

	status, response := harness.get(testingT, getSystemsPath+query)
	require.Equal(testingT, http.StatusOK, status)
	require.True(testingT, response.Success)
	var systems []map[string]any
	require.NoError(testingT, json.Unmarshal(response.Result, &systems))
	return systems
}

func TestCreateSystemReturnsIDAndAppliesDefaults(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)

	systemID := harness.createSystem(testingT, map[string]string{
		"system_name":       testSystemName,
		"system_short_name": "fire",
		"system_api_key":    "ignored-on-create",
	})
	require.Equal(testingT, "1", systemID)

	systems := harness.fetchSystems(testingT, "?system_id="+systemID)
	require.Len(testingT, systems, 1)
	created := systems[0]
	require.Equal(testingT, testSystemName, created["system_name"])
	require.Equal(testingT, backend.DefaultAlertSubject, created["email_alert_subject"])
	require.Equal(testingT, backend.DefaultEmailAlertBody, created["email_alert_body"])
	require.EqualValues(testingT, backend.DefaultMQTTPort, created["mqtt_port"])
	require.EqualValues(testingT, backend.DefaultSMTPSecurity, created["smtp_security"])
	require.NotEqual(testingT, "ignored-on-create", created["system_api_key"])
	require.Len(testingT, created["system_api_key"], 36)
	require.Equal(testingT, map[string]any{}, created["webhook_headers"])
}

func TestSystemAlertEmailsRoundTripAsJoinedList(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{"system_name": testSystemName})

	status, response := harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":           systemID,
		"system_name":         testSystemName,
		"system_alert_emails": "a@x.com,b@x.com\n a@x.com",
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)
	require.Contains(testingT, response.Message, "system "+systemID)

	systems := harness.fetchSystems(testingT, "?system_id="+systemID)
	require.Equal(testingT, testAlertEmails, systems[0]["system_alert_emails"])

	status, _ = harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":           systemID,
		"system_alert_emails": "b@x.com, c@x.com",
	})
	require.Equal(testingT, http.StatusOK, status)
	systems = harness.fetchSystems(testingT, "?system_id="+systemID)
	require.Equal(testingT, "b@x.com, c@x.com", systems[0]["system_alert_emails"])

	status, _ = harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":           systemID,
		"system_alert_emails": "",
	})
	require.Equal(testingT, http.StatusOK, status)
	var remaining int64
	require.NoError(testingT, harness.database.Model(&model.SystemAlertEmail{}).Count(&remaining).Error)
	require.Zero(testingT, remaining)
}

func TestUpdateSystemKeepsAbsentFieldsAndDefaultsBlankOnes(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{
		"system_name":   testSystemName,
		"system_county": "Kent",
	})

	status, response := harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":           systemID,
		"email_alert_subject": "   ",
		"smtp_port":           "587",
		"email_enabled":       "1",
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)

	updated := harness.fetchSystems(testingT, "?system_id="+systemID)[0]
	require.Equal(testingT, "Kent", updated["system_county"])
	require.Equal(testingT, testSystemName, updated["system_name"])
	require.Equal(testingT, backend.DefaultAlertSubject, updated["email_alert_subject"])
	require.EqualValues(testingT, 587, updated["smtp_port"])
	require.EqualValues(testingT, 1, updated["email_enabled"])
}

func TestSaveSystemRejectsInvalidValues(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{"system_name": testSystemName})

	testCases := []struct {
		name   string
		fields map[string]string
	}{
		{name: "non numeric port", fields: map[string]string{"smtp_port": "twenty"}},
		{name: "fractional port", fields: map[string]string{"mqtt_port": "1883.5"}},
		{name: "bad flag", fields: map[string]string{"email_enabled": "maybe"}},
		{name: "headers array", fields: map[string]string{"webhook_headers": `["x"]`}},
		{name: "blank name", fields: map[string]string{"system_name": " "}},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(subTest *testing.T) {
			fields := map[string]string{"system_id": systemID}
			for name, value := range testCase.fields {
				fields[name] = value
			}
			status, response := harness.postMultipart(subTest, saveSystemPath, fields)
			require.Equal(subTest, http.StatusBadRequest, status)
			require.False(subTest, response.Success)
			require.NotEmpty(subTest, response.Message)
		})
	}
}

func TestWebhookHeadersAreStoredAsObject(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{
		"system_name":     testSystemName,
		"webhook_headers": `{"Authorization":"Bearer abc"}`,
	})

	systems := harness.fetchSystems(testingT, "?system_id="+systemID)
	require.Equal(testingT, map[string]any{"Authorization": "Bearer abc"}, systems[0]["webhook_headers"])
}

func TestDuplicateSystemNameIsRejected(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	harness.createSystem(testingT, map[string]string{"system_name": testSystemName})
	secondID := harness.createSystem(testingT, map[string]string{"system_name": "County EMS"})

	status, response := harness.postMultipart(testingT, saveSystemPath+"?new_system=true", map[string]string{"system_name": testSystemName})
	require.Equal(testingT, http.StatusConflict, status)
	require.False(testingT, response.Success)

	status, _ = harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":   secondID,
		"system_name": testSystemName,
	})
	require.Equal(testingT, http.StatusConflict, status)
}

func TestUpdateUnknownSystemReturnsNotFound(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)

	status, response := harness.postMultipart(testingT, saveSystemPath, map[string]string{
		"system_id":   "42",
		"system_name": testSystemName,
	})
	require.Equal(testingT, http.StatusNotFound, status)
	require.False(testingT, response.Success)

	status, _ = harness.postMultipart(testingT, saveSystemPath, map[string]string{"system_name": testSystemName})
	require.Equal(testingT, http.StatusBadRequest, status)
}

func TestAgencyLifecycle(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{"system_name": testSystemName})

	status, response := harness.postMultipart(testingT, saveAgencyPath+"?new_agency=true", map[string]string{
		"system_id":     systemID,
		"agency_code":   testAgencyCode,
		"agency_name":   testAgencyName,
		"a_tone":        "600.9",
		"agency_emails": "chief@x.com, crew@x.com",
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)
	agencyID := string(response.Result)
	require.NotEmpty(testingT, agencyID)

	status, response = harness.get(testingT, getAgencyPath+"?system_id="+systemID)
	require.Equal(testingT, http.StatusOK, status)
	var agencies []map[string]any
	require.NoError(testingT, json.Unmarshal(response.Result, &agencies))
	require.Len(testingT, agencies, 1)
	require.Equal(testingT, testAgencyName, agencies[0]["agency_name"])
	require.EqualValues(testingT, 600.9, agencies[0]["a_tone"])
	require.Nil(testingT, agencies[0]["b_tone"])
	require.EqualValues(testingT, 2, agencies[0]["tone_tolerance"])
	require.EqualValues(testingT, 180, agencies[0]["ignore_time"])
	require.Equal(testingT, []any{"chief@x.com", "crew@x.com"}, agencies[0]["agency_emails"])

	status, response = harness.postMultipart(testingT, saveAgencyPath+"?new_agency=true", map[string]string{
		"system_id":   systemID,
		"agency_code": testAgencyCode,
		"agency_name": "Engine Seven",
	})
	require.Equal(testingT, http.StatusConflict, status)
	require.False(testingT, response.Success)

	status, response = harness.postMultipart(testingT, saveAgencyPath, map[string]string{
		"system_id":      systemID,
		"agency_id":      agencyID,
		"tone_tolerance": "",
		"ignore_time":    "90",
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)

	systems := harness.fetchSystems(testingT, "?system_id="+systemID+"&with_agencies=true")
	embedded, ok := systems[0]["agencies"].([]any)
	require.True(testingT, ok)
	require.Len(testingT, embedded, 1)
	require.EqualValues(testingT, 90, embedded[0].(map[string]any)["ignore_time"])

	status, response = harness.postMultipart(testingT, saveAgencyPath+"?delete_agency=true", map[string]string{
		"system_id": systemID,
		"agency_id": agencyID,
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)

	status, _ = harness.postMultipart(testingT, saveAgencyPath+"?delete_agency=true", map[string]string{
		"system_id": systemID,
		"agency_id": agencyID,
	})
	require.Equal(testingT, http.StatusNotFound, status)

	var remainingEmails int64
	require.NoError(testingT, harness.database.Model(&model.AgencyEmail{}).Count(&remainingEmails).Error)
	require.Zero(testingT, remainingEmails)
}

func TestDeleteAgencyByCode(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{"system_name": testSystemName})
	status, _ := harness.postMultipart(testingT, saveAgencyPath+"?new_agency=true", map[string]string{
		"system_id":   systemID,
		"agency_code": testAgencyCode,
		"agency_name": testAgencyName,
	})
	require.Equal(testingT, http.StatusOK, status)

	status, response := harness.postMultipart(testingT, saveAgencyPath+"?delete_agency=true", map[string]string{
		"system_id": systemID,
	})
	require.Equal(testingT, http.StatusBadRequest, status)
	require.False(testingT, response.Success)

	status, response = harness.postMultipart(testingT, saveAgencyPath+"?delete_agency=true", map[string]string{
		"system_id":   systemID,
		"agency_code": testAgencyCode,
	})
	require.Equal(testingT, http.StatusOK, status, response.Message)

	var remaining int64
	require.NoError(testingT, harness.database.Model(&model.Agency{}).Count(&remaining).Error)
	require.Zero(testingT, remaining)
}

func TestCreateAgencyForUnknownSystemReturnsNotFound(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)

	status, response := harness.postMultipart(testingT, saveAgencyPath+"?new_agency=true", map[string]string{
		"system_id":   "5",
		"agency_code": testAgencyCode,
		"agency_name": testAgencyName,
	})
	require.Equal(testingT, http.StatusNotFound, status)
	require.False(testingT, response.Success)
}

func TestDeleteSystemCascadesToAgenciesAndRecipients(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	systemID := harness.createSystem(testingT, map[string]string{
		"system_name":         testSystemName,
		"system_alert_emails": testAlertEmails,
	})
	status, _ := harness.postMultipart(testingT, saveAgencyPath+"?new_agency=true", map[string]string{
		"system_id":     systemID,
		"agency_code":   testAgencyCode,
		"agency_name":   testAgencyName,
		"agency_emails": "chief@x.com",
	})
	require.Equal(testingT, http.StatusOK, status)

	status, response := harness.postMultipart(testingT, saveSystemPath+"?delete_system=true", map[string]string{"system_id": systemID})
	require.Equal(testingT, http.StatusOK, status, response.Message)

	for _, table := range []any{&model.System{}, &model.SystemAlertEmail{}, &model.Agency{}, &model.AgencyEmail{}} {
		var count int64
		require.NoError(testingT, harness.database.Model(table).Count(&count).Error)
		require.Zero(testingT, count)
	}

	status, _ = harness.postMultipart(testingT, saveSystemPath+"?delete_system=true", map[string]string{"system_id": systemID})
	require.Equal(testingT, http.StatusNotFound, status)
}

func TestSaveSystemAcceptsURLEncodedForms(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)

	form := url.Values{"system_name": {testSystemName}}
	request := httptest.NewRequest(http.MethodPost, saveSystemPath+"?new_system=1", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, response := harness.serve(testingT, request)
	require.Equal(testingT, http.StatusOK, status, response.Message)
	require.Equal(testingT, "1", string(response.Result))
}

func TestGetSystemsListsAllOrderedByID(testingT *testing.T) {
	harness := newBackendTestHarness(testingT)
	harness.createSystem(testingT, map[string]string{"system_name": testSystemName})
	harness.createSystem(testingT, map[string]string{"system_name": "County EMS"})

	systems := harness.fetchSystems(testingT, "")
	require.Len(testingT, systems, 2)
	require.Equal(testingT, testSystemName, systems[0]["system_name"])
	require.Nil(testingT, systems[0]["agencies"])

	status, response := harness.get(testingT, getSystemsPath+"?system_id=abc")
	require.Equal(testingT, http.StatusBadRequest, status)
	require.False(testingT, response.Success)

	status, _ = harness.get(testingT, getAgencyPath)
	require.Equal(testingT, http.StatusBadRequest, status)
}
