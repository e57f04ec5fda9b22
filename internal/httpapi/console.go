package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/entitysync"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/notifications"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
	"github.com/MarkoPoloResearchLab/dispatchconsole/pkg/footer"
)

const (
	consoleTemplateName          = "console"
	consoleHTMLContentType       = "text/html; charset=utf-8"
	consoleScriptContentType     = "application/javascript; charset=utf-8"
	consolePageTitle             = "Dispatch Alert Configuration"
	consoleFooterAPILabel        = "Systems API"
	consoleSelectPlaceholder     = "Select a system"
	consoleSelectSystemMessage   = "Select a system to edit its alert settings."
	consoleSystemMissingMessage  = "The selected system no longer exists."
	consoleBannerElementID       = "notification-banner"
	consoleSelectFormElementID   = "system-select-form"
	consoleSelectElementID       = "system_select"
	consoleAccordionElementID    = "systemAccordion"
	consoleEmptyStateElementID   = "console-empty-state"
	consoleDeleteFormElementID   = "deleteForm"
	consoleDeleteTargetElementID = "deleteTargetName"
	consoleClientConfigElementID = "console-config"
	consoleAPIRoutePrefix        = "/admin/api"
	consoleAPIRouteSystems       = "/systems"
	consoleAPIRouteNotification  = "/notification"
	maxConsoleFormMemory         = 8 << 20

	jsonKeyError               = "error"
	jsonKeySystems             = "systems"
	jsonKeySelectedSystem      = "selected_system_id"
	jsonKeyNotification        = "notification"
	errorWorkspaceUnavailable  = "workspace_unavailable"
	errorRenderFailed          = "render_failed"
	messageEntityMissing       = "%s %s no longer exists."
	messageLoadFailed          = "Could not load %s %s: %v"
	messageRegenerateFailed    = "Could not regenerate the key: %v"
	messageUnreadableSubmision = "The submitted form could not be read."
)

// ConsoleHandlers serves the system and agency configuration console.
type ConsoleHandlers struct {
	workspaces *WorkspaceRegistry
	registry   *schema.Registry
	builder    *form.Builder
	template   *template.Template
	clock      clockwork.Clock
	logger     *zap.Logger
}

type systemOption struct {
	Value    string
	Label    string
	Selected bool
}

type consolePageData struct {
	PageTitle             string
	PagePath              string
	ScriptPath            string
	BannerID              string
	SelectFormID          string
	SelectID              string
	SelectPlaceholder     string
	SystemOptions         []systemOption
	AccordionID           string
	SystemForm            template.HTML
	SystemMissing         bool
	SystemMissingMessage  string
	SelectSystemMessage   string
	EmptyStateID          string
	AddSystemModalID      string
	AddSystemForm         template.HTML
	AddAgencyForm         template.HTML
	DeleteModalID         string
	DeleteFormID          string
	DeleteTargetID        string
	Notification          *notifications.Notification
	NotificationExpiresIn int64
	ClientConfigID        string
	ClientConfigJSON      template.JS
	Footer                template.HTML
}

type consoleClientConfig struct {
	NotificationDurationMS int64             `json:"notification_duration_ms"`
	BannerID               string            `json:"banner_id"`
	DeleteModalID          string            `json:"delete_modal_id"`
	DeleteTargetID         string            `json:"delete_target_id"`
	AddSystemModalID       string            `json:"add_system_modal_id"`
	AddAgencyModalID       string            `json:"add_agency_modal_id"`
	OpenModalID            string            `json:"open_modal_id,omitempty"`
	APIPaths               map[string]string `json:"api_paths"`
}

type renderOptions struct {
	refetch     bool
	openModalID string
}

type systemSummaryResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func NewConsoleHandlers(workspaces *WorkspaceRegistry, registry *schema.Registry, clk clockwork.Clock, logger *zap.Logger) *ConsoleHandlers {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleHandlers{
		workspaces: workspaces,
		registry:   registry,
		builder:    form.NewBuilder(registry, consolePaths{}),
		template:   template.Must(template.New(consoleTemplateName).Parse(consoleTemplateHTML)),
		clock:      clk,
		logger:     logger,
	}
}

// RegisterRoutes mounts the console. apiMiddleware wraps the JSON endpoints only.
func (handlers *ConsoleHandlers) RegisterRoutes(router gin.IRouter, apiMiddleware ...gin.HandlerFunc) {
	router.GET(ConsolePagePath, handlers.RenderConsole)
	router.POST(ConsolePagePath, handlers.CreateSystem)
	router.POST(ConsolePagePath+"/:system_id", handlers.UpdateSystem)
	router.POST(ConsolePagePath+"/:system_id"+consoleDeleteSuffix, handlers.DeleteSystem)
	router.POST(ConsolePagePath+"/:system_id"+consoleRegenerateSuffix, handlers.RegenerateSystemKey)
	router.POST(ConsolePagePath+"/:system_id"+consoleAgenciesSegment, handlers.CreateAgency)
	router.POST(ConsolePagePath+"/:system_id"+consoleAgenciesSegment+"/:agency_id", handlers.UpdateAgency)
	router.POST(ConsolePagePath+"/:system_id"+consoleAgenciesSegment+"/:agency_id"+consoleDeleteSuffix, handlers.DeleteAgency)
	router.GET(ConsoleScriptPath, handlers.ConsoleJS)

	apiGroup := router.Group(consoleAPIRoutePrefix)
	apiGroup.Use(apiMiddleware...)
	apiGroup.GET(consoleAPIRouteSystems, handlers.ListSystemsJSON)
	apiGroup.GET(consoleAPIRouteNotification, handlers.NotificationJSON)
	apiGroup.OPTIONS(consoleAPIRouteSystems, noContent)
	apiGroup.OPTIONS(consoleAPIRouteNotification, noContent)
}

func (handlers *ConsoleHandlers) RenderConsole(context *gin.Context) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	if systemID, present := context.GetQuery(querySystemID); present {
		workspace.Select(strings.TrimSpace(systemID))
	}
	handlers.render(context, workspace, http.StatusOK, renderOptions{refetch: true})
}

func (handlers *ConsoleHandlers) CreateSystem(context *gin.Context) {
	handlers.create(context, model.KindSystem, "", form.AddSystemModalID)
}

func (handlers *ConsoleHandlers) CreateAgency(context *gin.Context) {
	handlers.create(context, model.KindAgency, strings.TrimSpace(context.Param(paramSystemID)), form.AddAgencyModalID)
}

func (handlers *ConsoleHandlers) UpdateSystem(context *gin.Context) {
	systemID := strings.TrimSpace(context.Param(paramSystemID))
	handlers.update(context, model.EntityRef{Kind: model.KindSystem, ID: systemID})
}

func (handlers *ConsoleHandlers) UpdateAgency(context *gin.Context) {
	handlers.update(context, model.EntityRef{
		Kind:     model.KindAgency,
		ID:       strings.TrimSpace(context.Param(paramAgencyID)),
		ParentID: strings.TrimSpace(context.Param(paramSystemID)),
	})
}

func (handlers *ConsoleHandlers) DeleteSystem(context *gin.Context) {
	systemID := strings.TrimSpace(context.Param(paramSystemID))
	handlers.delete(context, model.EntityRef{Kind: model.KindSystem, ID: systemID})
}

func (handlers *ConsoleHandlers) DeleteAgency(context *gin.Context) {
	handlers.delete(context, model.EntityRef{
		Kind:     model.KindAgency,
		ID:       strings.TrimSpace(context.Param(paramAgencyID)),
		ParentID: strings.TrimSpace(context.Param(paramSystemID)),
	})
}

// RegenerateSystemKey is the no-script path of the regenerate button: it replaces the key on the
// open form and renders it again. Nothing is saved; the next page load restores the stored key.
func (handlers *ConsoleHandlers) RegenerateSystemKey(context *gin.Context) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	systemID := strings.TrimSpace(context.Param(paramSystemID))
	workspace.Select(systemID)
	instance, ready := handlers.readyInstance(context.Request.Context(), workspace, model.EntityRef{Kind: model.KindSystem, ID: systemID})
	if !ready {
		context.Redirect(http.StatusSeeOther, pageLocation(systemID))
		return
	}
	if posted, postedErr := postedFields(context); postedErr == nil {
		handlers.applyPosted(instance, posted)
	}
	if _, regenerateErr := instance.RegenerateSecret(); regenerateErr != nil {
		workspace.Notifications().Show(fmt.Sprintf(messageRegenerateFailed, regenerateErr), notifications.SeverityDanger)
	}
	handlers.render(context, workspace, http.StatusOK, renderOptions{})
}

func (handlers *ConsoleHandlers) ConsoleJS(context *gin.Context) {
	context.Data(http.StatusOK, consoleScriptContentType, consoleScript)
}

func (handlers *ConsoleHandlers) ListSystemsJSON(context *gin.Context) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	systems := workspace.Controller().ListEntities(context.Request.Context(), model.KindSystem, "")
	workspace.rememberSystems(systems, handlers.clock.Now())
	response := make([]systemSummaryResponse, 0, len(systems))
	for _, summary := range systems {
		response = append(response, systemSummaryResponse{ID: summary.ID, DisplayName: summary.DisplayName})
	}
	context.JSON(http.StatusOK, gin.H{jsonKeySystems: response, jsonKeySelectedSystem: workspace.SelectedSystem()})
}

func (handlers *ConsoleHandlers) NotificationJSON(context *gin.Context) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	notification, visible := workspace.Notifications().Current()
	if !visible {
		context.JSON(http.StatusOK, gin.H{jsonKeyNotification: nil})
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeyNotification: notification})
}

func (handlers *ConsoleHandlers) create(context *gin.Context, kind model.EntityKind, parentID string, modalID string) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	if kind == model.KindAgency {
		workspace.Select(parentID)
	}
	catalog, catalogErr := handlers.registry.Catalog(kind)
	if catalogErr != nil {
		handlers.renderFailure(context, catalogErr)
		return
	}
	posted, postedErr := postedFields(context)
	if postedErr != nil {
		workspace.Notifications().Show(messageUnreadableSubmision, notifications.SeverityDanger)
		context.Redirect(http.StatusSeeOther, pageLocation(workspace.SelectedSystem()))
		return
	}

	draft := form.NewDraft(catalog, kind, parentID)
	handlers.applyPosted(draft, posted)
	report := workspace.Controller().Submit(context.Request.Context(), draft)
	if report.Succeeded() {
		workspace.ClearDraft(kind)
		if kind == model.KindSystem && draft.Ref().ID != "" {
			workspace.Select(draft.Ref().ID)
		}
		context.Redirect(http.StatusSeeOther, pageLocation(workspace.SelectedSystem()))
		return
	}
	workspace.SetDraft(draft)
	handlers.renderReport(context, workspace, report, modalID)
}

func (handlers *ConsoleHandlers) update(context *gin.Context, ref model.EntityRef) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	systemID := ref.ID
	if ref.Kind == model.KindAgency {
		systemID = ref.ParentID
	}
	workspace.Select(systemID)

	requestContext := context.Request.Context()
	instance, ready := handlers.readyInstance(requestContext, workspace, ref)
	if !ready {
		context.Redirect(http.StatusSeeOther, pageLocation(systemID))
		return
	}
	posted, postedErr := postedFields(context)
	if postedErr != nil {
		workspace.Notifications().Show(messageUnreadableSubmision, notifications.SeverityDanger)
		context.Redirect(http.StatusSeeOther, pageLocation(systemID))
		return
	}
	handlers.applyPosted(instance, posted)
	report := workspace.Controller().Submit(requestContext, instance)
	if report.Succeeded() {
		context.Redirect(http.StatusSeeOther, pageLocation(systemID))
		return
	}
	handlers.renderReport(context, workspace, report, "")
}

func (handlers *ConsoleHandlers) delete(context *gin.Context, ref model.EntityRef) {
	workspace, ok := handlers.resolveWorkspace(context)
	if !ok {
		return
	}
	systemID := ref.ID
	if ref.Kind == model.KindAgency {
		systemID = ref.ParentID
	}
	workspace.Select(systemID)

	instance, ready := handlers.readyInstance(context.Request.Context(), workspace, ref)
	if !ready {
		context.Redirect(http.StatusSeeOther, pageLocation(systemID))
		return
	}
	report := workspace.Controller().Delete(context.Request.Context(), instance)
	if report.Succeeded() {
		workspace.Forget(ref)
		if ref.Kind == model.KindSystem {
			workspace.Select("")
		}
		context.Redirect(http.StatusSeeOther, pageLocation(workspace.SelectedSystem()))
		return
	}
	handlers.renderReport(context, workspace, report, "")
}

// renderReport shows the page after a mutation that did not succeed, with the values the backend reported.
// The list refreshed by the controller is reused and nothing else is fetched.
func (handlers *ConsoleHandlers) renderReport(context *gin.Context, workspace *Workspace, report entitysync.MutationReport, modalID string) {
	if report.Entities != nil && report.Ref.Kind == model.KindSystem {
		workspace.rememberSystems(report.Entities, handlers.clock.Now())
	}
	handlers.render(context, workspace, statusForReport(report), renderOptions{openModalID: modalID})
}

func statusForReport(report entitysync.MutationReport) int {
	var validationErr *form.ValidationError
	switch {
	case errors.As(report.Err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(report.Err, entitysync.ErrFormBusy):
		return http.StatusConflict
	case errors.Is(report.Err, entitysync.ErrTimeout):
		return http.StatusGatewayTimeout
	case report.Err != nil:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func (handlers *ConsoleHandlers) render(context *gin.Context, workspace *Workspace, status int, options renderOptions) {
	requestContext := context.Request.Context()
	systems := workspace.Systems()
	if options.refetch || systems == nil {
		systems = workspace.Controller().ListEntities(requestContext, model.KindSystem, "")
		workspace.rememberSystems(systems, handlers.clock.Now())
	}
	selected := workspace.SelectedSystem()

	data := consolePageData{
		PageTitle:            consolePageTitle,
		PagePath:             ConsolePagePath,
		ScriptPath:           ConsoleScriptPath,
		BannerID:             consoleBannerElementID,
		SelectFormID:         consoleSelectFormElementID,
		SelectID:             consoleSelectElementID,
		SelectPlaceholder:    consoleSelectPlaceholder,
		AccordionID:          consoleAccordionElementID,
		SystemMissingMessage: consoleSystemMissingMessage,
		SelectSystemMessage:  consoleSelectSystemMessage,
		EmptyStateID:         consoleEmptyStateElementID,
		AddSystemModalID:     form.AddSystemModalID,
		DeleteModalID:        form.DeleteModalID,
		DeleteFormID:         consoleDeleteFormElementID,
		DeleteTargetID:       consoleDeleteTargetElementID,
		ClientConfigID:       consoleClientConfigElementID,
	}
	for _, summary := range systems {
		data.SystemOptions = append(data.SystemOptions, systemOption{
			Value:    summary.ID,
			Label:    summary.DisplayName,
			Selected: summary.ID == selected,
		})
	}

	if selected != "" {
		systemForm, found, buildErr := handlers.buildSystemForm(requestContext, workspace, selected, options.refetch)
		if buildErr != nil {
			handlers.renderFailure(context, buildErr)
			return
		}
		if found {
			systemHTML, htmlErr := systemForm.HTML()
			if htmlErr != nil {
				handlers.renderFailure(context, htmlErr)
				return
			}
			data.SystemForm = systemHTML
		} else {
			data.SystemMissing = true
		}
	}

	addSystemHTML, addSystemErr := handlers.addFormHTML(workspace, model.KindSystem, "")
	if addSystemErr != nil {
		handlers.renderFailure(context, addSystemErr)
		return
	}
	data.AddSystemForm = addSystemHTML
	if selected != "" && !data.SystemMissing {
		addAgencyHTML, addAgencyErr := handlers.addFormHTML(workspace, model.KindAgency, selected)
		if addAgencyErr != nil {
			handlers.renderFailure(context, addAgencyErr)
			return
		}
		data.AddAgencyForm = addAgencyHTML
	}

	channel := workspace.Notifications()
	if notification, visible := channel.Current(); visible {
		data.Notification = &notification
		remaining := notification.ExpiresAt.Sub(handlers.clock.Now()).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		data.NotificationExpiresIn = remaining
	}

	clientConfig := consoleClientConfig{
		NotificationDurationMS: channel.Duration().Milliseconds(),
		BannerID:               consoleBannerElementID,
		DeleteModalID:          form.DeleteModalID,
		DeleteTargetID:         consoleDeleteTargetElementID,
		AddSystemModalID:       form.AddSystemModalID,
		AddAgencyModalID:       form.AddAgencyModalID,
		OpenModalID:            options.openModalID,
		APIPaths: map[string]string{
			"systems":      ConsoleAPISystemsPath,
			"notification": ConsoleAPINoticePath,
		},
	}
	footerHTML, footerErr := footer.Render(footer.Config{
		Product:     consolePageTitle,
		SystemCount: len(systems),
		RefreshedAt: workspace.SystemsRefreshedAt(),
		Links:       []footer.Link{{Label: consoleFooterAPILabel, URL: ConsoleAPISystemsPath}},
	})
	if footerErr != nil {
		handlers.renderFailure(context, footerErr)
		return
	}
	data.Footer = footerHTML

	configPayload, marshalErr := json.Marshal(clientConfig)
	if marshalErr != nil {
		handlers.logger.Warn("render_console_config", zap.Error(marshalErr))
		configPayload = []byte("{}")
	}
	data.ClientConfigJSON = template.JS(configPayload)

	var buffer bytes.Buffer
	if executeErr := handlers.template.Execute(&buffer, data); executeErr != nil {
		handlers.renderFailure(context, executeErr)
		return
	}
	context.Data(status, consoleHTMLContentType, buffer.Bytes())
}

// buildSystemForm assembles the accordion of systemID and its agencies. found is false when the
// backend has no such system.
func (handlers *ConsoleHandlers) buildSystemForm(ctx context.Context, workspace *Workspace, systemID string, refetch bool) (form.EntityForm, bool, error) {
	systemCatalog, systemCatalogErr := handlers.registry.Catalog(model.KindSystem)
	if systemCatalogErr != nil {
		return form.EntityForm{}, false, systemCatalogErr
	}
	agencyCatalog, agencyCatalogErr := handlers.registry.Catalog(model.KindAgency)
	if agencyCatalogErr != nil {
		return form.EntityForm{}, false, agencyCatalogErr
	}

	ref := model.EntityRef{Kind: model.KindSystem, ID: systemID}
	systemInstance := workspace.Instance(systemCatalog, ref)
	var agencies []*form.Instance
	if refetch || systemInstance.State() == form.StateEmpty {
		detail, fetchErr := workspace.Controller().FetchEntity(ctx, ref, true)
		handlers.refreshInstance(systemInstance, detail, fetchErr)
		if fetchErr == nil {
			visible := []model.EntityRef{ref}
			for _, child := range detail.Children {
				childInstance := workspace.Instance(agencyCatalog, child.Ref)
				handlers.refreshInstance(childInstance, child, nil)
				agencies = append(agencies, childInstance)
				visible = append(visible, child.Ref)
			}
			workspace.Retain(visible)
		} else {
			agencies = workspace.Children(model.KindAgency, systemID)
		}
	} else {
		agencies = workspace.Children(model.KindAgency, systemID)
	}

	if systemInstance.State() == form.StateEmpty {
		return form.EntityForm{}, false, nil
	}
	entityForm, buildErr := handlers.builder.Build(systemInstance, agencies)
	if buildErr != nil {
		return form.EntityForm{}, false, buildErr
	}
	return entityForm, true, nil
}

// refreshInstance replaces the values of instance with a fetched entity. Unsaved edits are discarded;
// an instance with a request in flight is left alone.
func (handlers *ConsoleHandlers) refreshInstance(instance *form.Instance, entity model.Entity, fetchErr error) {
	if beginErr := instance.BeginLoad(); beginErr != nil {
		handlers.logger.Debug("skip_form_refresh", zap.String("entity", instance.Ref().Key()), zap.Error(beginErr))
		return
	}
	var transitionErr error
	if fetchErr != nil {
		transitionErr = instance.LoadFailed(fetchErr, errors.Is(fetchErr, entitysync.ErrNotFound))
	} else {
		transitionErr = instance.Loaded(entity)
	}
	if transitionErr != nil {
		handlers.logger.Warn("refresh_form", zap.String("entity", instance.Ref().Key()), zap.Error(transitionErr))
	}
}

// readyInstance returns the form of ref, loading it first when the workspace has not shown it yet.
// A missing or unreadable entity is reported on the banner.
func (handlers *ConsoleHandlers) readyInstance(ctx context.Context, workspace *Workspace, ref model.EntityRef) (*form.Instance, bool) {
	catalog, catalogErr := handlers.registry.Catalog(ref.Kind)
	if catalogErr != nil || ref.IsNew() {
		workspace.Notifications().Show(fmt.Sprintf(messageEntityMissing, kindLabel(ref.Kind), ref.ID), notifications.SeverityDanger)
		return nil, false
	}
	instance := workspace.Instance(catalog, ref)
	switch instance.State() {
	case form.StateEmpty, form.StateError:
		detail, fetchErr := workspace.Controller().FetchEntity(ctx, ref, false)
		handlers.refreshInstance(instance, detail, fetchErr)
	}

	switch instance.State() {
	case form.StateEmpty:
		workspace.Forget(ref)
		workspace.Notifications().Show(fmt.Sprintf(messageEntityMissing, kindLabel(ref.Kind), ref.ID), notifications.SeverityDanger)
		return nil, false
	case form.StateError:
		workspace.Notifications().Show(fmt.Sprintf(messageLoadFailed, ref.Kind, ref.ID, instance.LastError()), notifications.SeverityDanger)
		return nil, false
	}
	return instance, true
}

func (handlers *ConsoleHandlers) applyPosted(instance *form.Instance, posted map[string]string) {
	if applyErr := instance.Apply(posted); applyErr != nil && !errors.Is(applyErr, form.ErrInvalidTransition) {
		handlers.logger.Warn("apply_form_values", zap.String("entity", instance.Ref().Key()), zap.Error(applyErr))
	}
}

func (handlers *ConsoleHandlers) addFormHTML(workspace *Workspace, kind model.EntityKind, parentID string) (template.HTML, error) {
	var addForm form.AddForm
	var buildErr error
	if draft := workspace.Draft(kind); draft != nil && draft.Ref().ParentID == parentID {
		addForm, buildErr = handlers.builder.BuildDraft(draft)
	} else {
		addForm, buildErr = handlers.builder.BuildAdd(kind, parentID)
	}
	if buildErr != nil {
		return "", buildErr
	}
	return addForm.HTML()
}

func (handlers *ConsoleHandlers) resolveWorkspace(context *gin.Context) (*Workspace, bool) {
	workspace, resolveErr := handlers.workspaces.Resolve(context)
	if resolveErr != nil {
		handlers.logger.Error("resolve_workspace", zap.Error(resolveErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorWorkspaceUnavailable})
		return nil, false
	}
	return workspace, true
}

func (handlers *ConsoleHandlers) renderFailure(context *gin.Context, failure error) {
	handlers.logger.Error("render_console", zap.Error(failure))
	context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorRenderFailed})
}

// postedFields flattens a urlencoded or multipart body into one value per field.
func postedFields(context *gin.Context) (map[string]string, error) {
	parseErr := context.Request.ParseMultipartForm(maxConsoleFormMemory)
	if errors.Is(parseErr, http.ErrNotMultipart) {
		parseErr = context.Request.ParseForm()
	}
	if parseErr != nil {
		return nil, parseErr
	}
	posted := make(map[string]string, len(context.Request.PostForm))
	for name, values := range context.Request.PostForm {
		if len(values) > 0 {
			posted[name] = values[len(values)-1]
		}
	}
	return posted, nil
}

func kindLabel(kind model.EntityKind) string {
	switch kind {
	case model.KindAgency:
		return "Agency"
	default:
		return "System"
	}
}

func noContent(context *gin.Context) {
	context.Status(http.StatusNoContent)
}
