package form

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
	"github.com/google/uuid"
)

// State is the lifecycle position of a form instance.
type State string

const (
	StateEmpty      State = "empty"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
	StateError      State = "error"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("form: invalid state transition")
	// ErrSubmissionInFlight rejects a second submission while one is outstanding.
	ErrSubmissionInFlight = errors.New("form: submission already in flight")
	// ErrUnknownField is returned when setting a field the catalog does not declare.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrReadOnlyField is returned when setting a field that is not user editable.
	ErrReadOnlyField = errors.New("form: field is read only")
	// ErrNoSecretField is returned when regenerating on a catalog without a secret field.
	ErrNoSecretField = errors.New("form: catalog has no secret field")
)

// ValidationError lists the required fields left blank.
type ValidationError struct {
	Ref     model.EntityRef
	Missing []string
}

func (validationError *ValidationError) Error() string {
	return fmt.Sprintf("form: %s is missing required fields: %s", validationError.Ref.Key(), strings.Join(validationError.Missing, ", "))
}

// Submission is the full set of field values transmitted on save.
type Submission struct {
	Ref    model.EntityRef
	Fields map[string]string
}

// Instance is the live state of one rendered form: identity, values, dirty flag and lifecycle state.
type Instance struct {
	mutex         sync.Mutex
	catalog       schema.Catalog
	ref           model.EntityRef
	state         State
	values        map[string]string
	dirty         bool
	secretPending bool
	lastErr       error
}

// NewInstance returns an empty instance for ref.
func NewInstance(catalog schema.Catalog, ref model.EntityRef) *Instance {
	return &Instance{
		catalog: catalog,
		ref:     ref,
		state:   StateEmpty,
		values:  make(map[string]string),
	}
}

// NewDraft returns a ready instance for an entity not yet created, pre-filled with the parent id.
func NewDraft(catalog schema.Catalog, kind model.EntityKind, parentID string) *Instance {
	instance := NewInstance(catalog, model.EntityRef{Kind: kind, ParentID: parentID})
	instance.state = StateReady
	if catalog.ParentField != "" {
		instance.values[catalog.ParentField] = parentID
	}
	return instance
}

func (instance *Instance) Catalog() schema.Catalog {
	return instance.catalog
}

func (instance *Instance) Ref() model.EntityRef {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.ref
}

func (instance *Instance) State() State {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.state
}

func (instance *Instance) Dirty() bool {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.dirty
}

// SecretPending reports whether the displayed secret is a regenerated value not yet saved.
func (instance *Instance) SecretPending() bool {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.secretPending
}

// LastError returns the error that moved the instance into StateError.
func (instance *Instance) LastError() error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.lastErr
}

func (instance *Instance) Value(fieldID string) string {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.values[fieldID]
}

// Values returns a copy of the current field values.
func (instance *Instance) Values() map[string]string {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return copyValues(instance.values)
}

// BeginLoad moves the instance into StateLoading ahead of a detail fetch.
func (instance *Instance) BeginLoad() error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	switch instance.state {
	case StateEmpty, StateReady, StateError:
		instance.state = StateLoading
		instance.lastErr = nil
		return nil
	case StateSubmitting:
		return ErrSubmissionInFlight
	default:
		return fmt.Errorf("%w: load from %s", ErrInvalidTransition, instance.state)
	}
}

// Loaded fills the instance from a fetched entity and marks it ready.
func (instance *Instance) Loaded(entity model.Entity) error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateLoading {
		return fmt.Errorf("%w: loaded in %s", ErrInvalidTransition, instance.state)
	}
	instance.applyEntityLocked(entity)
	instance.state = StateReady
	return nil
}

// LoadFailed records a failed fetch. A missing entity empties the form; any other failure is an error state.
func (instance *Instance) LoadFailed(loadErr error, notFound bool) error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateLoading {
		return fmt.Errorf("%w: load failed in %s", ErrInvalidTransition, instance.state)
	}
	instance.values = make(map[string]string)
	instance.dirty = false
	instance.secretPending = false
	if notFound {
		instance.state = StateEmpty
		instance.lastErr = nil
		return nil
	}
	instance.state = StateError
	instance.lastErr = loadErr
	return nil
}

// Set changes one user-editable field.
func (instance *Instance) Set(fieldID string, value string) error {
	field, known := instance.catalog.Field(fieldID)
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if !instance.editable(field) {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, fieldID)
	}
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateReady {
		return fmt.Errorf("%w: edit in %s", ErrInvalidTransition, instance.state)
	}
	instance.setLocked(field, value)
	return nil
}

// Apply copies posted form values onto the instance. Unknown and non-editable fields are ignored.
func (instance *Instance) Apply(posted map[string]string) error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateReady {
		return fmt.Errorf("%w: edit in %s", ErrInvalidTransition, instance.state)
	}
	for _, fieldID := range sortedKeys(posted) {
		field, known := instance.catalog.Field(fieldID)
		if !known || !instance.editable(field) {
			continue
		}
		instance.setLocked(field, posted[fieldID])
	}
	return nil
}

// RegenerateSecret replaces the secret field with a fresh UUID v4 on this instance only.
// Nothing is persisted until the form is submitted.
func (instance *Instance) RegenerateSecret() (string, error) {
	secretField, hasSecret := instance.catalog.SecretField()
	if !hasSecret {
		return "", ErrNoSecretField
	}
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateReady {
		return "", fmt.Errorf("%w: regenerate in %s", ErrInvalidTransition, instance.state)
	}
	secret := uuid.NewString()
	instance.values[secretField.ID] = secret
	instance.secretPending = true
	instance.dirty = true
	return secret, nil
}

// Validate reports the required fields that are blank.
func (instance *Instance) Validate() error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return instance.validateLocked()
}

// BeginSubmit validates and moves the instance into StateSubmitting, returning the values to transmit.
func (instance *Instance) BeginSubmit() (Submission, error) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state == StateSubmitting {
		return Submission{}, ErrSubmissionInFlight
	}
	if instance.state != StateReady {
		return Submission{}, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, instance.state)
	}
	if validationErr := instance.validateLocked(); validationErr != nil {
		return Submission{}, validationErr
	}
	instance.state = StateSubmitting
	return instance.submissionLocked(), nil
}

// BeginDelete moves the instance into StateSubmitting for a delete request.
func (instance *Instance) BeginDelete() error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	if instance.state != StateReady || instance.ref.IsNew() {
		return fmt.Errorf("%w: delete in %s", ErrInvalidTransition, instance.state)
	}
	instance.state = StateSubmitting
	return nil
}

// Complete ends a submission or failed delete. A refreshed entity replaces the values; nil keeps them.
// createdID adopts the server assigned id of a newly created entity.
func (instance *Instance) Complete(refreshed *model.Entity, createdID string) error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateSubmitting {
		return fmt.Errorf("%w: complete in %s", ErrInvalidTransition, instance.state)
	}
	if instance.ref.IsNew() && createdID != "" {
		instance.ref.ID = createdID
	}
	if refreshed != nil {
		instance.ref = refreshed.Ref
		instance.applyEntityLocked(*refreshed)
	}
	instance.state = StateReady
	return nil
}

// Deleted clears the instance after a successful delete.
func (instance *Instance) Deleted() error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	if instance.state != StateSubmitting {
		return fmt.Errorf("%w: deleted in %s", ErrInvalidTransition, instance.state)
	}
	instance.values = make(map[string]string)
	instance.dirty = false
	instance.secretPending = false
	instance.state = StateEmpty
	return nil
}

func (instance *Instance) editable(field schema.Field) bool {
	if field.ID == instance.catalog.IDField || field.ID == instance.catalog.ParentField {
		return false
	}
	return !field.ReadOnly || field.Secret
}

func (instance *Instance) setLocked(field schema.Field, value string) {
	if instance.values[field.ID] == value {
		return
	}
	instance.values[field.ID] = value
	instance.dirty = true
	if field.Secret {
		instance.secretPending = true
	}
}

func (instance *Instance) applyEntityLocked(entity model.Entity) {
	values := make(map[string]string)
	for _, field := range instance.catalog.Fields() {
		values[field.ID] = DisplayValue(entity.Value(field.ID))
	}
	if entity.Ref.ID != "" {
		instance.ref = entity.Ref
	}
	instance.values = values
	instance.dirty = false
	instance.secretPending = false
	instance.lastErr = nil
}

func (instance *Instance) validateLocked() error {
	var missing []string
	for _, field := range instance.catalog.Fields() {
		if !field.Required || field.Kind == schema.KindHidden {
			continue
		}
		if instance.ref.IsNew() && !field.Add {
			continue
		}
		if strings.TrimSpace(instance.values[field.ID]) == "" {
			missing = append(missing, field.Label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Ref: instance.ref, Missing: missing}
	}
	return nil
}

func (instance *Instance) submissionLocked() Submission {
	fields := make(map[string]string)
	candidates := instance.catalog.Fields()
	if instance.ref.IsNew() {
		candidates = instance.catalog.AddFields()
	}
	for _, field := range candidates {
		fields[field.ID] = instance.values[field.ID]
	}
	if instance.catalog.IDField != "" && !instance.ref.IsNew() {
		fields[instance.catalog.IDField] = instance.ref.ID
	}
	if instance.catalog.ParentField != "" {
		fields[instance.catalog.ParentField] = instance.ref.ParentID
	}
	return Submission{Ref: instance.ref, Fields: fields}
}

func copyValues(values map[string]string) map[string]string {
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}
