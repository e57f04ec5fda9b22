// Package backend serves the dispatch configuration API over a gorm database.
package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jsonKeySuccess = "success"
	jsonKeyMessage = "message"
	jsonKeyResult  = "result"

	queryWithAgencies = "with_agencies"
	queryNewSystem    = "new_system"
	queryDeleteSystem = "delete_system"
	queryNewAgency    = "new_agency"
	queryDeleteAgency = "delete_agency"

	maxMultipartMemory = 8 << 20

	messageSystemCreated = "System created."
	messageSystemUpdated = "Settings updated successfully for system %d."
	messageSystemDeleted = "System deleted."
	messageAgencyCreated = "Agency created."
	messageAgencyUpdated = "Agency updated."
	messageAgencyDeleted = "Agency deleted."
	messageInternalError = "The request could not be completed."
)

// Handlers implements the four dispatch endpoints.
type Handlers struct {
	store  *Store
	logger *zap.Logger
}

func NewHandlers(database *gorm.DB, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: NewStore(database), logger: logger}
}

// RegisterRoutes mounts the endpoints on router.
func (handlers *Handlers) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/get_systems", handlers.GetSystems)
	router.GET("/api/get_agency", handlers.GetAgencies)
	router.POST("/admin/save_system", handlers.SaveSystem)
	router.POST("/admin/save_agency", handlers.SaveAgency)
}

func (handlers *Handlers) GetSystems(context *gin.Context) {
	var systemID uint
	if rawSystemID := strings.TrimSpace(context.Query(fieldSystemID)); rawSystemID != "" {
		parsed, parseErr := strconv.ParseUint(rawSystemID, 10, 64)
		if parseErr != nil {
			handlers.respondFailure(context, http.StatusBadRequest, fmt.Errorf("%w: system_id", ErrInvalidField))
			return
		}
		systemID = uint(parsed)
	}
	systems, listErr := handlers.store.ListSystems(context.Request.Context(), systemID, queryFlag(context, queryWithAgencies))
	if listErr != nil {
		handlers.logger.Error("list_systems", zap.Error(listErr))
		handlers.respondFailure(context, http.StatusInternalServerError, listErr)
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: "", jsonKeyResult: systems})
}

func (handlers *Handlers) GetAgencies(context *gin.Context) {
	systemID, parseErr := formValues{fieldSystemID: context.Query(fieldSystemID)}.identifier(fieldSystemID)
	if parseErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, parseErr)
		return
	}
	agencies, listErr := handlers.store.ListAgencies(context.Request.Context(), systemID)
	if listErr != nil {
		handlers.logger.Error("list_agencies", zap.Uint("system_id", systemID), zap.Error(listErr))
		handlers.respondFailure(context, http.StatusInternalServerError, listErr)
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: "", jsonKeyResult: agencies})
}

func (handlers *Handlers) SaveSystem(context *gin.Context) {
	values, formErr := postedValues(context)
	if formErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, formErr)
		return
	}
	requestContext := context.Request.Context()

	if queryFlag(context, queryNewSystem) {
		systemID, createErr := handlers.store.CreateSystem(requestContext, values)
		if createErr != nil {
			handlers.respondFailure(context, statusForError(createErr), createErr)
			return
		}
		handlers.logger.Info("create_system", zap.Uint("system_id", systemID))
		context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: messageSystemCreated, jsonKeyResult: systemID})
		return
	}

	systemID, idErr := values.identifier(fieldSystemID)
	if idErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, ErrMissingSystemID)
		return
	}
	if queryFlag(context, queryDeleteSystem) {
		if deleteErr := handlers.store.DeleteSystem(requestContext, systemID); deleteErr != nil {
			handlers.respondFailure(context, statusForError(deleteErr), deleteErr)
			return
		}
		handlers.logger.Info("delete_system", zap.Uint("system_id", systemID))
		context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: messageSystemDeleted})
		return
	}
	if updateErr := handlers.store.UpdateSystem(requestContext, systemID, values); updateErr != nil {
		handlers.respondFailure(context, statusForError(updateErr), updateErr)
		return
	}
	handlers.logger.Info("update_system", zap.Uint("system_id", systemID))
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: fmt.Sprintf(messageSystemUpdated, systemID)})
}

func (handlers *Handlers) SaveAgency(context *gin.Context) {
	values, formErr := postedValues(context)
	if formErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, formErr)
		return
	}
	requestContext := context.Request.Context()
	systemID, systemErr := values.identifier(fieldSystemID)
	if systemErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, ErrMissingSystemID)
		return
	}

	if queryFlag(context, queryNewAgency) {
		agencyID, createErr := handlers.store.CreateAgency(requestContext, systemID, values)
		if createErr != nil {
			handlers.respondFailure(context, statusForError(createErr), createErr)
			return
		}
		handlers.logger.Info("create_agency", zap.Uint("system_id", systemID), zap.Uint("agency_id", agencyID))
		context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: messageAgencyCreated, jsonKeyResult: agencyID})
		return
	}

	if queryFlag(context, queryDeleteAgency) {
		var agencyID uint
		if values.trimmed(fieldAgencyID) != "" {
			parsedID, idErr := values.identifier(fieldAgencyID)
			if idErr != nil {
				handlers.respondFailure(context, http.StatusBadRequest, idErr)
				return
			}
			agencyID = parsedID
		} else if values.trimmed(fieldAgencyCode) == "" {
			handlers.respondFailure(context, http.StatusBadRequest, fmt.Errorf("%w: agency_id or agency_code is required", ErrInvalidField))
			return
		}
		if deleteErr := handlers.store.DeleteAgency(requestContext, systemID, agencyID, values.trimmed(fieldAgencyCode)); deleteErr != nil {
			handlers.respondFailure(context, statusForError(deleteErr), deleteErr)
			return
		}
		handlers.logger.Info("delete_agency", zap.Uint("system_id", systemID), zap.Uint("agency_id", agencyID))
		context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: messageAgencyDeleted})
		return
	}

	agencyID, idErr := values.identifier(fieldAgencyID)
	if idErr != nil {
		handlers.respondFailure(context, http.StatusBadRequest, idErr)
		return
	}
	if updateErr := handlers.store.UpdateAgency(requestContext, systemID, agencyID, values); updateErr != nil {
		handlers.respondFailure(context, statusForError(updateErr), updateErr)
		return
	}
	handlers.logger.Info("update_agency", zap.Uint("system_id", systemID), zap.Uint("agency_id", agencyID))
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, jsonKeyMessage: messageAgencyUpdated})
}

func (handlers *Handlers) respondFailure(context *gin.Context, status int, failure error) {
	message := strings.TrimPrefix(failure.Error(), "backend: ")
	if status >= http.StatusInternalServerError {
		handlers.logger.Error("dispatch_request_failed", zap.String("path", context.FullPath()), zap.Error(failure))
		message = messageInternalError
	}
	context.JSON(status, gin.H{jsonKeySuccess: false, jsonKeyMessage: message})
}

func statusForError(failure error) int {
	switch {
	case errors.Is(failure, ErrSystemNotFound), errors.Is(failure, ErrAgencyNotFound):
		return http.StatusNotFound
	case errors.Is(failure, ErrDuplicateSystem), errors.Is(failure, ErrDuplicateAgency):
		return http.StatusConflict
	case errors.Is(failure, ErrInvalidField), errors.Is(failure, ErrMissingSystemID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func postedValues(context *gin.Context) (formValues, error) {
	parseErr := context.Request.ParseMultipartForm(maxMultipartMemory)
	if parseErr != nil && !errors.Is(parseErr, http.ErrNotMultipart) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, parseErr)
	}
	if errors.Is(parseErr, http.ErrNotMultipart) {
		if formErr := context.Request.ParseForm(); formErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidField, formErr)
		}
	}
	values := make(formValues, len(context.Request.PostForm))
	for key, entries := range context.Request.PostForm {
		if len(entries) > 0 {
			values[key] = entries[len(entries)-1]
		}
	}
	return values, nil
}

func queryFlag(context *gin.Context, name string) bool {
	parsed, parseErr := strconv.ParseBool(strings.TrimSpace(context.Query(name)))
	return parseErr == nil && parsed
}
