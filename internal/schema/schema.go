// Package schema holds the declarative field catalogs that drive the configuration forms.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
)

// FieldKind selects the input control a field renders as.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindPassword FieldKind = "password"
	KindTextarea FieldKind = "textarea"
	KindSelect   FieldKind = "select"
	KindHidden   FieldKind = "hidden"

	// IdentityPanelName groups the identity fields rendered above the tab set.
	IdentityPanelName = "identity"
)

var (
	// ErrInvalidCatalog wraps every catalog validation failure.
	ErrInvalidCatalog = errors.New("schema: invalid catalog")
	// ErrUnknownKind indicates a catalog was requested for an entity kind with no definition.
	ErrUnknownKind = errors.New("schema: unknown entity kind")
)

// Option is one choice of a select field.
type Option struct {
	Value string `yaml:"value"`
	Text  string `yaml:"text"`
}

// Field describes one input.
type Field struct {
	ID       string    `yaml:"id"`
	Label    string    `yaml:"label"`
	Tooltip  string    `yaml:"tooltip"`
	Kind     FieldKind `yaml:"kind"`
	Options  []Option  `yaml:"options"`
	Required bool      `yaml:"required"`
	ReadOnly bool      `yaml:"readonly"`
	// Secret fields get a regenerate action that proposes a new random value.
	Secret bool `yaml:"secret"`
	// Add marks fields shown in the add dialog.
	Add bool `yaml:"add"`
	// Panel is filled in by the loader.
	Panel string `yaml:"-"`
}

// Panel is a named, tab-selectable group of fields.
type Panel struct {
	Name   string  `yaml:"name"`
	Label  string  `yaml:"label"`
	Fields []Field `yaml:"fields"`
}

// Catalog is the complete field schema of one entity kind.
type Catalog struct {
	Kind         model.EntityKind `yaml:"kind"`
	IDField      string           `yaml:"id_field"`
	ParentField  string           `yaml:"parent_field"`
	DisplayField string           `yaml:"display_field"`
	Identity     []Field          `yaml:"identity"`
	Panels       []Panel          `yaml:"panels"`
}

// Fields returns every field of the catalog, identity first, in declaration order.
func (catalog Catalog) Fields() []Field {
	fields := make([]Field, 0, len(catalog.Identity)+len(catalog.Panels)*8)
	fields = append(fields, catalog.Identity...)
	for _, panel := range catalog.Panels {
		fields = append(fields, panel.Fields...)
	}
	return fields
}

// Field looks up a field by id.
func (catalog Catalog) Field(fieldID string) (Field, bool) {
	for _, field := range catalog.Fields() {
		if field.ID == fieldID {
			return field, true
		}
	}
	return Field{}, false
}

// SecretField returns the regenerate-able secret field, if the catalog has one.
func (catalog Catalog) SecretField() (Field, bool) {
	for _, field := range catalog.Fields() {
		if field.Secret {
			return field, true
		}
	}
	return Field{}, false
}

// AddFields returns the fields shown when creating a new entity.
func (catalog Catalog) AddFields() []Field {
	var fields []Field
	for _, field := range catalog.Fields() {
		if field.Add {
			fields = append(fields, field)
		}
	}
	return fields
}

// Validate checks the structural rules every catalog must satisfy.
func (catalog Catalog) Validate() error {
	var problems []string
	if _, err := model.ParseEntityKind(string(catalog.Kind)); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(catalog.IDField) == "" {
		problems = append(problems, "id_field is required")
	}
	if strings.TrimSpace(catalog.DisplayField) == "" {
		problems = append(problems, "display_field is required")
	}

	seenFields := make(map[string]struct{})
	seenPanels := make(map[string]struct{})
	secretCount := 0
	checkField := func(location string, field Field) {
		if strings.TrimSpace(field.ID) == "" {
			problems = append(problems, fmt.Sprintf("%s: field without id", location))
			return
		}
		if _, duplicate := seenFields[field.ID]; duplicate {
			problems = append(problems, fmt.Sprintf("%s: duplicate field id %q", location, field.ID))
		}
		seenFields[field.ID] = struct{}{}
		switch field.Kind {
		case KindText, KindPassword, KindTextarea, KindHidden:
			if len(field.Options) > 0 {
				problems = append(problems, fmt.Sprintf("%s: field %q of kind %s must not declare options", location, field.ID, field.Kind))
			}
		case KindSelect:
			if len(field.Options) == 0 {
				problems = append(problems, fmt.Sprintf("%s: select field %q has no options", location, field.ID))
			}
			seenValues := make(map[string]struct{}, len(field.Options))
			for _, option := range field.Options {
				if _, duplicate := seenValues[option.Value]; duplicate {
					problems = append(problems, fmt.Sprintf("%s: select field %q repeats option %q", location, field.ID, option.Value))
				}
				seenValues[option.Value] = struct{}{}
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: field %q has unknown kind %q", location, field.ID, field.Kind))
		}
		if field.Secret {
			secretCount++
		}
	}

	for _, field := range catalog.Identity {
		checkField(IdentityPanelName, field)
	}
	if len(catalog.Panels) == 0 {
		problems = append(problems, "at least one panel is required")
	}
	for _, panel := range catalog.Panels {
		if strings.TrimSpace(panel.Name) == "" {
			problems = append(problems, "panel without name")
			continue
		}
		if panel.Name == IdentityPanelName {
			problems = append(problems, fmt.Sprintf("panel name %q is reserved", IdentityPanelName))
		}
		if _, duplicate := seenPanels[panel.Name]; duplicate {
			problems = append(problems, fmt.Sprintf("duplicate panel %q", panel.Name))
		}
		seenPanels[panel.Name] = struct{}{}
		for _, field := range panel.Fields {
			checkField(panel.Name, field)
		}
	}

	if _, found := seenFields[catalog.IDField]; catalog.IDField != "" && !found {
		problems = append(problems, fmt.Sprintf("id_field %q is not declared", catalog.IDField))
	}
	if _, found := seenFields[catalog.DisplayField]; catalog.DisplayField != "" && !found {
		problems = append(problems, fmt.Sprintf("display_field %q is not declared", catalog.DisplayField))
	}
	if catalog.ParentField != "" {
		if _, found := seenFields[catalog.ParentField]; !found {
			problems = append(problems, fmt.Sprintf("parent_field %q is not declared", catalog.ParentField))
		}
	}
	if secretCount > 1 {
		problems = append(problems, "at most one secret field is allowed")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w (%s): %s", ErrInvalidCatalog, catalog.Kind, strings.Join(problems, "; "))
}
