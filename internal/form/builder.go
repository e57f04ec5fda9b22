package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

const (
	DeleteModalID    = "deleteModal"
	AddSystemModalID = "addSystemModal"
	AddAgencyModalID = "addAgencyModal"

	dataSystemIDAttribute     = "data-system-id"
	dataSystemNameAttribute   = "data-system-name"
	dataAgencyIDAttribute     = "data-agency-id"
	dataAgencyNameAttribute   = "data-agency-name"
	dataDeleteActionAttribute = "data-delete-action"
	dataCreateActionAttribute = "data-create-action"
	dataEntityKindAttribute   = "data-entity-kind"

	submitLabelSave   = "Save"
	submitLabelCreate = "Create"
	errorNoticeFormat = "Could not load %s: %v"
)

// ActionPaths resolves the endpoints a rendered form posts to.
type ActionPaths interface {
	SubmitPath(ref model.EntityRef) string
	DeletePath(ref model.EntityRef) string
	RegeneratePath(ref model.EntityRef) string
	CreatePath(kind model.EntityKind, parentID string) string
}

// DataAttribute is one data-* attribute on an action button.
type DataAttribute struct {
	Name  string
	Value string
}

// Attr renders the attribute as name="value".
func (attribute DataAttribute) Attr() template.HTMLAttr {
	return template.HTMLAttr(attribute.Name + `="` + html.EscapeString(attribute.Value) + `"`)
}

// ActionButton opens a dialog owned by the page host.
type ActionButton struct {
	Label       string
	ButtonClass string
	IconClass   string
	ModalTarget string
	Attributes  []DataAttribute
}

// EntityForm is the complete accordion entry of one entity, children included.
type EntityForm struct {
	Ref              model.EntityRef
	OwnerID          string
	FormID           string
	Title            string
	HeadingID        string
	CollapseID       string
	Expanded         bool
	Action           string
	RegenerateAction string
	State            State
	Disabled         bool
	Notice           string
	Identity         []RenderedField
	Tabs             TabSet
	Actions          []ActionButton
	Children         []EntityForm
	ChildHeading     string
	SubmitLabel      string
}

// AddForm is the content of an add dialog.
type AddForm struct {
	Kind        model.EntityKind
	ParentID    string
	ModalID     string
	FormID      string
	Title       string
	Action      string
	Fields      []RenderedField
	SubmitLabel string
}

// Builder assembles entity forms from catalogs and instances.
type Builder struct {
	registry *schema.Registry
	paths    ActionPaths
}

func NewBuilder(registry *schema.Registry, paths ActionPaths) *Builder {
	return &Builder{registry: registry, paths: paths}
}

// Build renders the form of instance with one nested form per child instance.
func (builder *Builder) Build(instance *Instance, children []*Instance) (EntityForm, error) {
	ref := instance.Ref()
	catalog := instance.Catalog()
	values := instance.Values()
	state := instance.State()
	ownerID := OwnerID(ref)

	entityForm := EntityForm{
		Ref:         ref,
		OwnerID:     ownerID,
		FormID:      "form_" + ownerID,
		Title:       displayTitle(catalog, ref, values),
		HeadingID:   "heading_" + ownerID,
		CollapseID:  "collapse_" + ownerID,
		Expanded:    ref.Kind == model.KindSystem,
		Action:      builder.paths.SubmitPath(ref),
		State:       state,
		Disabled:    state == StateSubmitting || state == StateLoading,
		Tabs:        ComposePanels(catalog, values, ownerID),
		SubmitLabel: submitLabelSave,
	}
	if _, hasSecret := catalog.SecretField(); hasSecret {
		entityForm.RegenerateAction = builder.paths.RegeneratePath(ref)
	}
	if state == StateError {
		entityForm.Notice = fmt.Sprintf(errorNoticeFormat, ref.Kind, instance.LastError())
	}
	for _, field := range catalog.Identity {
		entityForm.Identity = append(entityForm.Identity, renderFieldValue(field, values[field.ID], ownerID))
	}
	entityForm.Actions = builder.actions(ref, entityForm.Title)

	for _, child := range children {
		childForm, childErr := builder.Build(child, nil)
		if childErr != nil {
			return EntityForm{}, childErr
		}
		entityForm.Children = append(entityForm.Children, childForm)
	}
	if ref.Kind == model.KindSystem {
		entityForm.ChildHeading = "Agencies"
	}
	return entityForm, nil
}

// BuildAdd renders the add dialog of kind under parentID.
func (builder *Builder) BuildAdd(kind model.EntityKind, parentID string) (AddForm, error) {
	catalog, catalogErr := builder.registry.Catalog(kind)
	if catalogErr != nil {
		return AddForm{}, catalogErr
	}
	ref := model.EntityRef{Kind: kind, ParentID: parentID}
	ownerID := OwnerID(ref)
	addForm := AddForm{
		Kind:        kind,
		ParentID:    parentID,
		ModalID:     AddSystemModalID,
		FormID:      "form_" + ownerID,
		Title:       "Add System",
		Action:      builder.paths.CreatePath(kind, parentID),
		SubmitLabel: submitLabelCreate,
	}
	if kind == model.KindAgency {
		addForm.ModalID = AddAgencyModalID
		addForm.Title = "Add Agency"
	}
	for _, field := range catalog.AddFields() {
		addForm.Fields = append(addForm.Fields, renderFieldValue(field, "", ownerID))
	}
	if catalog.ParentField != "" {
		parentField, _ := catalog.Field(catalog.ParentField)
		parentField.Kind = schema.KindHidden
		addForm.Fields = append(addForm.Fields, renderFieldValue(parentField, parentID, ownerID))
	}
	return addForm, nil
}

// BuildDraft renders an add dialog carrying the values of a draft that failed validation.
func (builder *Builder) BuildDraft(draft *Instance) (AddForm, error) {
	ref := draft.Ref()
	addForm, buildErr := builder.BuildAdd(ref.Kind, ref.ParentID)
	if buildErr != nil {
		return AddForm{}, buildErr
	}
	values := draft.Values()
	for fieldIndex := range addForm.Fields {
		if value, present := values[addForm.Fields[fieldIndex].Name]; present && value != "" {
			field, _ := draft.Catalog().Field(addForm.Fields[fieldIndex].Name)
			if addForm.Fields[fieldIndex].Kind == schema.KindHidden {
				field.Kind = schema.KindHidden
			}
			addForm.Fields[fieldIndex] = renderFieldValue(field, value, OwnerID(ref))
		}
	}
	return addForm, nil
}

func (builder *Builder) actions(ref model.EntityRef, title string) []ActionButton {
	if ref.IsNew() {
		return nil
	}
	deleteButton := ActionButton{
		Label:       "Delete",
		ButtonClass: "btn btn-sm btn-outline-danger",
		IconClass:   "bi bi-trash",
		ModalTarget: DeleteModalID,
		Attributes: []DataAttribute{
			{Name: dataEntityKindAttribute, Value: string(ref.Kind)},
			{Name: dataDeleteActionAttribute, Value: builder.paths.DeletePath(ref)},
		},
	}
	switch ref.Kind {
	case model.KindSystem:
		deleteButton.Attributes = append(deleteButton.Attributes,
			DataAttribute{Name: dataSystemIDAttribute, Value: ref.ID},
			DataAttribute{Name: dataSystemNameAttribute, Value: title},
		)
		addAgencyButton := ActionButton{
			Label:       "Add Agency",
			ButtonClass: "btn btn-sm btn-outline-primary",
			IconClass:   "bi bi-plus-circle",
			ModalTarget: AddAgencyModalID,
			Attributes: []DataAttribute{
				{Name: dataSystemIDAttribute, Value: ref.ID},
				{Name: dataSystemNameAttribute, Value: title},
				{Name: dataCreateActionAttribute, Value: builder.paths.CreatePath(model.KindAgency, ref.ID)},
			},
		}
		return []ActionButton{addAgencyButton, deleteButton}
	case model.KindAgency:
		deleteButton.Attributes = append(deleteButton.Attributes,
			DataAttribute{Name: dataSystemIDAttribute, Value: ref.ParentID},
			DataAttribute{Name: dataAgencyIDAttribute, Value: ref.ID},
			DataAttribute{Name: dataAgencyNameAttribute, Value: title},
		)
	}
	return []ActionButton{deleteButton}
}

// Attribute returns the value of a data attribute on the button.
func (button ActionButton) Attribute(name string) (string, bool) {
	for _, attribute := range button.Attributes {
		if attribute.Name == name {
			return attribute.Value, true
		}
	}
	return "", false
}

// HTML renders the accordion entry.
func (entityForm EntityForm) HTML() (template.HTML, error) {
	var buffer bytes.Buffer
	if err := formTemplates.ExecuteTemplate(&buffer, entityTemplateName, entityForm); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}

// HTML renders the add dialog.
func (addForm AddForm) HTML() (template.HTML, error) {
	var buffer bytes.Buffer
	if err := formTemplates.ExecuteTemplate(&buffer, addTemplateName, addForm); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}

func displayTitle(catalog schema.Catalog, ref model.EntityRef, values map[string]string) string {
	if title := values[catalog.DisplayField]; title != "" {
		return title
	}
	if ref.IsNew() {
		return fmt.Sprintf("New %s", ref.Kind)
	}
	return fmt.Sprintf("%s %s", ref.Kind, ref.ID)
}
