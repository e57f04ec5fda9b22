// Package entitysync keeps console forms synchronized with the dispatch backend.
package entitysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/dispatchapi"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/notifications"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

// DefaultDeadline bounds every mutation request.
const DefaultDeadline = 180 * time.Second

const (
	childrenField = "agencies"

	messageSaved          = "%s saved."
	messageCreated        = "%s created."
	messageDeleted        = "%s deleted."
	messageRejected       = "%s could not be saved."
	messageTimeoutFormat  = "The %s request timed out. Check the list before retrying."
	messageTransportError = "Error talking to the dispatch backend: %v"
	messageFormBusy       = "A request for this %s is already in progress."
	messageMissingFields  = "Please fill in the required fields: %s"
)

var (
	// ErrNotFound is returned when the backend has no such entity.
	ErrNotFound = errors.New("entitysync: entity not found")
	// ErrTimeout is reported when a mutation exceeds its deadline. Its late response is discarded.
	ErrTimeout = errors.New("entitysync: request timed out")
	// ErrFormBusy rejects a mutation while another one on the same form is outstanding.
	ErrFormBusy = errors.New("entitysync: form has a request in flight")
	// ErrMissingDependency is returned when the controller is built without a required collaborator.
	ErrMissingDependency = errors.New("entitysync: missing dependency")
)

// Backend is the subset of the dispatch API the controller needs.
type Backend interface {
	GetSystems(ctx context.Context, systemID string, withAgencies bool) ([]dispatchapi.Record, error)
	GetAgencies(ctx context.Context, systemID string) ([]dispatchapi.Record, error)
	SaveSystem(ctx context.Context, action dispatchapi.Action, fields map[string]string) (dispatchapi.MutationResponse, error)
	SaveAgency(ctx context.Context, action dispatchapi.Action, fields map[string]string) (dispatchapi.MutationResponse, error)
}

// Notifier shows the outcome of a mutation.
type Notifier interface {
	Show(message string, severity notifications.Severity) notifications.Notification
}

// Config wires a Controller.
type Config struct {
	Backend  Backend
	Registry *schema.Registry
	Notifier Notifier
	Clock    clockwork.Clock
	Deadline time.Duration
	Logger   *zap.Logger
}

// MutationReport is the result of one create, update or delete, including the refreshed state.
type MutationReport struct {
	Ref      model.EntityRef
	Outcome  model.MutationOutcome
	Err      error
	Entities []model.EntitySummary
	Detail   *model.Entity
	Notice   notifications.Notification
}

// Succeeded reports whether the backend accepted the mutation.
func (report MutationReport) Succeeded() bool {
	return report.Err == nil && report.Outcome.Success
}

// Controller performs list, read and mutation round trips with deadline, refresh and feedback.
type Controller struct {
	backend  Backend
	registry *schema.Registry
	notifier Notifier
	clock    clockwork.Clock
	deadline time.Duration
	logger   *zap.Logger

	inFlightMutex sync.Mutex
	inFlight      map[string]struct{}
}

type mutationResult struct {
	response dispatchapi.MutationResponse
	err      error
}

// NewController validates cfg and returns a controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: backend", ErrMissingDependency)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: schema registry", ErrMissingDependency)
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("%w: notifier", ErrMissingDependency)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		backend:  cfg.Backend,
		registry: cfg.Registry,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		deadline: cfg.Deadline,
		logger:   cfg.Logger,
		inFlight: make(map[string]struct{}),
	}, nil
}

// ListEntities returns the summaries of kind under parentID. Failures are logged and yield an empty list.
func (controller *Controller) ListEntities(ctx context.Context, kind model.EntityKind, parentID string) []model.EntitySummary {
	catalog, catalogErr := controller.registry.Catalog(kind)
	if catalogErr != nil {
		controller.logger.Warn("list_entities", zap.String("kind", string(kind)), zap.Error(catalogErr))
		return []model.EntitySummary{}
	}
	records, listErr := controller.listRecords(ctx, kind, parentID, "", false)
	if listErr != nil {
		if !errors.Is(listErr, dispatchapi.ErrNotFound) {
			controller.logger.Warn("list_entities", zap.String("kind", string(kind)), zap.String("parent_id", parentID), zap.Error(listErr))
		}
		return []model.EntitySummary{}
	}
	summaries := make([]model.EntitySummary, 0, len(records))
	for _, record := range records {
		identifier := form.DisplayValue(record[catalog.IDField])
		if identifier == "" {
			continue
		}
		summaries = append(summaries, model.EntitySummary{
			ID:          identifier,
			DisplayName: form.DisplayValue(record[catalog.DisplayField]),
		})
	}
	return summaries
}

// FetchEntity reads one entity. Systems optionally include their agencies.
func (controller *Controller) FetchEntity(ctx context.Context, ref model.EntityRef, includeChildren bool) (model.Entity, error) {
	if ref.IsNew() {
		return model.Entity{}, ErrNotFound
	}
	catalog, catalogErr := controller.registry.Catalog(ref.Kind)
	if catalogErr != nil {
		return model.Entity{}, catalogErr
	}
	records, fetchErr := controller.listRecords(ctx, ref.Kind, ref.ParentID, ref.ID, includeChildren)
	if errors.Is(fetchErr, dispatchapi.ErrNotFound) {
		return model.Entity{}, ErrNotFound
	}
	if fetchErr != nil {
		return model.Entity{}, fetchErr
	}
	for _, record := range records {
		if form.DisplayValue(record[catalog.IDField]) != ref.ID {
			continue
		}
		entity := controller.toEntity(catalog, record, ref.ParentID)
		if includeChildren && ref.Kind == model.KindSystem {
			children, childrenErr := controller.systemChildren(ctx, record, ref.ID)
			if childrenErr != nil {
				return model.Entity{}, childrenErr
			}
			entity.Children = children
		}
		return entity, nil
	}
	return model.Entity{}, ErrNotFound
}

// CreateEntity creates a new entity of kind under parentID.
func (controller *Controller) CreateEntity(ctx context.Context, kind model.EntityKind, parentID string, fields map[string]string) MutationReport {
	ref := model.EntityRef{Kind: kind, ParentID: parentID}
	return controller.mutate(ctx, ref, dispatchapi.ActionCreate, controller.withIdentity(ref, fields))
}

// UpdateEntity transmits the full field set of an existing entity.
func (controller *Controller) UpdateEntity(ctx context.Context, ref model.EntityRef, fields map[string]string) MutationReport {
	return controller.mutate(ctx, ref, dispatchapi.ActionUpdate, controller.withIdentity(ref, fields))
}

// DeleteEntity removes an entity by its identity.
func (controller *Controller) DeleteEntity(ctx context.Context, ref model.EntityRef) MutationReport {
	return controller.mutate(ctx, ref, dispatchapi.ActionDelete, controller.withIdentity(ref, nil))
}

// Submit validates instance and saves it, then refreshes it from the backend.
// A form that fails validation is not sent.
func (controller *Controller) Submit(ctx context.Context, instance *form.Instance) MutationReport {
	ref := instance.Ref()
	submission, submitErr := instance.BeginSubmit()
	if submitErr != nil {
		return controller.rejectLocally(ref, submitErr)
	}

	var report MutationReport
	if ref.IsNew() {
		report = controller.CreateEntity(ctx, ref.Kind, ref.ParentID, submission.Fields)
	} else {
		report = controller.UpdateEntity(ctx, ref, submission.Fields)
	}

	// The form always shows what the backend holds after the round trip, whatever the outcome.
	if completeErr := instance.Complete(report.Detail, report.Outcome.CreatedID); completeErr != nil {
		controller.logger.Warn("complete_submission", zap.String("entity", ref.Key()), zap.Error(completeErr))
	}
	return report
}

// Delete removes the entity behind instance. A successful delete empties the instance.
func (controller *Controller) Delete(ctx context.Context, instance *form.Instance) MutationReport {
	ref := instance.Ref()
	if beginErr := instance.BeginDelete(); beginErr != nil {
		return controller.rejectLocally(ref, beginErr)
	}
	report := controller.DeleteEntity(ctx, ref)
	if report.Succeeded() {
		if deletedErr := instance.Deleted(); deletedErr != nil {
			controller.logger.Warn("complete_delete", zap.String("entity", ref.Key()), zap.Error(deletedErr))
		}
		return report
	}
	if completeErr := instance.Complete(report.Detail, ""); completeErr != nil {
		controller.logger.Warn("complete_delete", zap.String("entity", ref.Key()), zap.Error(completeErr))
	}
	return report
}

func (controller *Controller) rejectLocally(ref model.EntityRef, rejection error) MutationReport {
	report := MutationReport{Ref: ref, Err: rejection}
	var validationErr *form.ValidationError
	switch {
	case errors.As(rejection, &validationErr):
		report.Notice = controller.notifier.Show(fmt.Sprintf(messageMissingFields, strings.Join(validationErr.Missing, ", ")), notifications.SeverityWarning)
	case errors.Is(rejection, form.ErrSubmissionInFlight):
		report.Err = fmt.Errorf("%w: %s", ErrFormBusy, ref.Key())
		report.Notice = controller.notifier.Show(fmt.Sprintf(messageFormBusy, ref.Kind), notifications.SeverityWarning)
	default:
		report.Notice = controller.notifier.Show(rejection.Error(), notifications.SeverityDanger)
	}
	return report
}

func (controller *Controller) mutate(ctx context.Context, ref model.EntityRef, action dispatchapi.Action, fields map[string]string) MutationReport {
	report := MutationReport{Ref: ref}
	key := ref.Key()
	if !controller.acquire(key) {
		report.Err = fmt.Errorf("%w: %s", ErrFormBusy, key)
		report.Notice = controller.notifier.Show(fmt.Sprintf(messageFormBusy, ref.Kind), notifications.SeverityWarning)
		return report
	}
	defer controller.release(key)

	startedAt := controller.clock.Now()
	result := controller.execute(ctx, ref, action, fields)
	controller.logger.Info("mutate_entity",
		zap.String("entity", key),
		zap.String("action", string(action)),
		zap.Duration("elapsed", controller.clock.Now().Sub(startedAt)),
		zap.Error(result.err),
	)
	report.Err = result.err
	if result.err == nil {
		report.Outcome = model.MutationOutcome{
			Success:   result.response.Success,
			Message:   result.response.Message,
			CreatedID: result.response.CreatedID(),
		}
	}

	controller.refresh(ctx, &report, fields)
	report.Notice = controller.notifier.Show(controller.describe(ref, action, report))
	return report
}

// execute races the backend call against the deadline. The call's context is cancelled on timeout
// and its eventual result is dropped into a buffered channel nobody reads.
func (controller *Controller) execute(ctx context.Context, ref model.EntityRef, action dispatchapi.Action, fields map[string]string) mutationResult {
	requestContext, cancel := context.WithCancel(ctx)
	defer cancel()

	deadlineReached := make(chan struct{})
	timer := controller.clock.AfterFunc(controller.deadline, func() {
		close(deadlineReached)
	})
	defer timer.Stop()

	results := make(chan mutationResult, 1)
	go func() {
		var response dispatchapi.MutationResponse
		var callErr error
		if ref.Kind == model.KindAgency {
			response, callErr = controller.backend.SaveAgency(requestContext, action, fields)
		} else {
			response, callErr = controller.backend.SaveSystem(requestContext, action, fields)
		}
		results <- mutationResult{response: response, err: callErr}
	}()

	select {
	case result := <-results:
		return result
	case <-deadlineReached:
		cancel()
		controller.logger.Warn("mutation_timeout", zap.String("entity", ref.Key()), zap.Duration("deadline", controller.deadline))
		return mutationResult{err: fmt.Errorf("%w after %s", ErrTimeout, controller.deadline)}
	case <-ctx.Done():
		return mutationResult{err: &dispatchapi.TransportError{Operation: string(action), Err: ctx.Err()}}
	}
}

func (controller *Controller) refresh(ctx context.Context, report *MutationReport, fields map[string]string) {
	ref := report.Ref
	report.Entities = controller.ListEntities(ctx, ref.Kind, ref.ParentID)

	detailRef := ref
	if detailRef.IsNew() {
		detailRef.ID = report.Outcome.CreatedID
		if detailRef.ID == "" && report.Outcome.Success {
			detailRef.ID = controller.locateCreated(ref.Kind, report.Entities, fields)
		}
		if detailRef.ID == "" {
			return
		}
		report.Outcome.CreatedID = detailRef.ID
	}
	detail, fetchErr := controller.FetchEntity(ctx, detailRef, ref.Kind == model.KindSystem)
	if fetchErr != nil {
		if !errors.Is(fetchErr, ErrNotFound) {
			controller.logger.Warn("refresh_entity", zap.String("entity", detailRef.Key()), zap.Error(fetchErr))
		}
		return
	}
	report.Detail = &detail
}

// locateCreated finds a freshly created entity by its display name when the backend did not return its id.
func (controller *Controller) locateCreated(kind model.EntityKind, summaries []model.EntitySummary, fields map[string]string) string {
	catalog, catalogErr := controller.registry.Catalog(kind)
	if catalogErr != nil {
		return ""
	}
	displayName := fields[catalog.DisplayField]
	located := ""
	for _, summary := range summaries {
		if summary.DisplayName == displayName {
			located = summary.ID
		}
	}
	return located
}

func (controller *Controller) describe(ref model.EntityRef, action dispatchapi.Action, report MutationReport) (string, notifications.Severity) {
	label := entityLabel(ref.Kind)
	switch {
	case errors.Is(report.Err, ErrTimeout):
		return fmt.Sprintf(messageTimeoutFormat, ref.Kind), notifications.SeverityDanger
	case report.Err != nil:
		return fmt.Sprintf(messageTransportError, report.Err), notifications.SeverityDanger
	case !report.Outcome.Success:
		if report.Outcome.Message != "" {
			return report.Outcome.Message, notifications.SeverityDanger
		}
		return fmt.Sprintf(messageRejected, label), notifications.SeverityDanger
	case report.Outcome.Message != "":
		return report.Outcome.Message, notifications.SeveritySuccess
	case action == dispatchapi.ActionCreate:
		return fmt.Sprintf(messageCreated, label), notifications.SeveritySuccess
	case action == dispatchapi.ActionDelete:
		return fmt.Sprintf(messageDeleted, label), notifications.SeveritySuccess
	default:
		return fmt.Sprintf(messageSaved, label), notifications.SeveritySuccess
	}
}

func (controller *Controller) listRecords(ctx context.Context, kind model.EntityKind, parentID string, entityID string, includeChildren bool) ([]dispatchapi.Record, error) {
	switch kind {
	case model.KindSystem:
		return controller.backend.GetSystems(ctx, entityID, includeChildren)
	case model.KindAgency:
		if parentID == "" {
			return nil, dispatchapi.ErrNotFound
		}
		return controller.backend.GetAgencies(ctx, parentID)
	default:
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownKind, kind)
	}
}

func (controller *Controller) systemChildren(ctx context.Context, record dispatchapi.Record, systemID string) ([]model.Entity, error) {
	agencyCatalog, catalogErr := controller.registry.Catalog(model.KindAgency)
	if catalogErr != nil {
		return nil, catalogErr
	}
	var childRecords []dispatchapi.Record
	if embedded, present := record[childrenField].([]any); present {
		for _, element := range embedded {
			if childRecord, isRecord := element.(map[string]any); isRecord {
				childRecords = append(childRecords, childRecord)
			}
		}
	} else {
		fetched, fetchErr := controller.backend.GetAgencies(ctx, systemID)
		if fetchErr != nil && !errors.Is(fetchErr, dispatchapi.ErrNotFound) {
			return nil, fetchErr
		}
		childRecords = fetched
	}
	children := make([]model.Entity, 0, len(childRecords))
	for _, childRecord := range childRecords {
		children = append(children, controller.toEntity(agencyCatalog, childRecord, systemID))
	}
	return children, nil
}

func (controller *Controller) toEntity(catalog schema.Catalog, record dispatchapi.Record, parentID string) model.Entity {
	fields := make(map[string]any, len(record))
	for key, value := range record {
		if key == childrenField {
			continue
		}
		fields[key] = value
	}
	ref := model.EntityRef{Kind: catalog.Kind, ID: form.DisplayValue(record[catalog.IDField])}
	if catalog.ParentField != "" {
		ref.ParentID = form.DisplayValue(record[catalog.ParentField])
		if ref.ParentID == "" {
			ref.ParentID = parentID
		}
	}
	return model.Entity{Ref: ref, Fields: fields}
}

func (controller *Controller) withIdentity(ref model.EntityRef, fields map[string]string) map[string]string {
	prepared := make(map[string]string, len(fields)+2)
	for key, value := range fields {
		prepared[key] = value
	}
	catalog, catalogErr := controller.registry.Catalog(ref.Kind)
	if catalogErr != nil {
		return prepared
	}
	if ref.IsNew() {
		delete(prepared, catalog.IDField)
	} else {
		prepared[catalog.IDField] = ref.ID
	}
	if catalog.ParentField != "" {
		prepared[catalog.ParentField] = ref.ParentID
	}
	return prepared
}

func (controller *Controller) acquire(key string) bool {
	controller.inFlightMutex.Lock()
	defer controller.inFlightMutex.Unlock()
	if _, busy := controller.inFlight[key]; busy {
		return false
	}
	controller.inFlight[key] = struct{}{}
	return true
}

func (controller *Controller) release(key string) {
	controller.inFlightMutex.Lock()
	defer controller.inFlightMutex.Unlock()
	delete(controller.inFlight, key)
}

func entityLabel(kind model.EntityKind) string {
	switch kind {
	case model.KindAgency:
		return "Agency"
	default:
		return "System"
	}
}
