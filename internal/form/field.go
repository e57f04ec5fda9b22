package form

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

const (
	columnClassFull      = "col-12"
	columnClassHalf      = "col-md-6"
	textareaRows         = 5
	enabledFieldIDSuffix = "_enabled"
)

// RenderedOption is one <option> of a select control.
type RenderedOption struct {
	Value    string
	Text     string
	Selected bool
}

// RenderedField is the concrete control produced for one schema field.
type RenderedField struct {
	ElementID        string
	Name             string
	Label            string
	Tooltip          string
	Kind             schema.FieldKind
	InputType        string
	Value            string
	Options          []RenderedOption
	Required         bool
	ReadOnly         bool
	ToggleVisibility bool
	Regenerate       bool
	ColumnClass      string
	Rows             int
}

var fieldTemplate = template.Must(template.New("field").Parse(`{{if eq .InputType "hidden"}}<input type="hidden" id="{{.ElementID}}" name="{{.Name}}" value="{{.Value}}">{{else}}<div class="{{.ColumnClass}} mb-3">
  <label for="{{.ElementID}}" class="form-label">{{.Label}}</label>
{{- if eq .InputType "textarea"}}
  <textarea id="{{.ElementID}}" name="{{.Name}}" class="form-control" rows="{{.Rows}}" title="{{.Tooltip}}" data-bs-toggle="tooltip" data-bs-placement="top"{{if .ReadOnly}} readonly{{end}}{{if .Required}} required{{end}}>{{.Value}}</textarea>
{{- else}}
  <div class="input-group">
{{- if eq .InputType "select"}}
    <select id="{{.ElementID}}" name="{{.Name}}" class="form-select" title="{{.Tooltip}}" data-bs-toggle="tooltip" data-bs-placement="top"{{if .ReadOnly}} disabled{{end}}{{if .Required}} required{{end}}>
{{- range .Options}}
      <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Text}}</option>
{{- end}}
    </select>
{{- else}}
    <input type="{{.InputType}}" id="{{.ElementID}}" name="{{.Name}}" class="form-control" value="{{.Value}}" title="{{.Tooltip}}" data-bs-toggle="tooltip" data-bs-placement="top"{{if .ReadOnly}} readonly{{end}}{{if .Required}} required{{end}}>
{{- end}}
{{- if .ToggleVisibility}}
    <button type="button" class="btn btn-outline-secondary" data-toggle-visibility="{{.ElementID}}" aria-label="Show or hide {{.Label}}"><i class="bi bi-eye"></i></button>
{{- end}}
{{- if .Regenerate}}
    <button type="button" class="btn btn-outline-secondary" data-regenerate-secret="{{.ElementID}}" aria-label="Regenerate {{.Label}}"><i class="bi bi-arrow-repeat"></i></button>
{{- end}}
  </div>
{{- end}}
</div>{{end}}`))

// RenderField projects a schema field and its current value into a control.
// ownerID is appended to the element id so several entities can share one page.
func RenderField(field schema.Field, value any, ownerID string) RenderedField {
	return renderFieldValue(field, DisplayValue(value), ownerID)
}

func renderFieldValue(field schema.Field, value string, ownerID string) RenderedField {
	rendered := RenderedField{
		ElementID:   ElementID(field.ID, ownerID),
		Name:        field.ID,
		Label:       field.Label,
		Tooltip:     field.Tooltip,
		Kind:        field.Kind,
		InputType:   string(field.Kind),
		Value:       value,
		Required:    field.Required,
		ReadOnly:    field.ReadOnly,
		ColumnClass: columnClassHalf,
	}
	if field.Secret || strings.HasSuffix(field.ID, enabledFieldIDSuffix) {
		rendered.ColumnClass = columnClassFull
	}

	switch field.Kind {
	case schema.KindPassword:
		rendered.ToggleVisibility = true
	case schema.KindTextarea:
		rendered.Rows = textareaRows
	case schema.KindSelect:
		rendered.Options = selectOptions(field.Options, value)
	case schema.KindHidden:
		rendered.Required = false
	}
	if field.Secret {
		rendered.Regenerate = true
	}
	return rendered
}

func selectOptions(options []schema.Option, value string) []RenderedOption {
	rendered := make([]RenderedOption, 0, len(options))
	selectionMade := false
	for _, option := range options {
		selected := !selectionMade && ValuesEqual(option.Value, value)
		if selected {
			selectionMade = true
		}
		rendered = append(rendered, RenderedOption{Value: option.Value, Text: option.Text, Selected: selected})
	}
	return rendered
}

// SelectedOption returns the value of the selected option, if any.
func (field RenderedField) SelectedOption() (string, bool) {
	for _, option := range field.Options {
		if option.Selected {
			return option.Value, true
		}
	}
	return "", false
}

// HTML renders the control markup.
func (field RenderedField) HTML() (template.HTML, error) {
	var buffer bytes.Buffer
	if err := fieldTemplate.Execute(&buffer, field); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}

// ElementID builds the page-unique id of a field owned by an entity.
func ElementID(fieldID string, ownerID string) string {
	if ownerID == "" {
		return fieldID
	}
	return fieldID + "_" + ownerID
}
