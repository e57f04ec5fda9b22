package form

import "html/template"

const (
	entityTemplateName = "entity"
	addTemplateName    = "add"
)

var formTemplates = template.Must(template.New(entityTemplateName).Parse(`<div class="accordion-item" data-entity-kind="{{.Ref.Kind}}" data-entity-state="{{.State}}">
  <h2 class="accordion-header d-flex align-items-center" id="{{.HeadingID}}">
    <button class="accordion-button{{if not .Expanded}} collapsed{{end}}" type="button" data-bs-toggle="collapse" data-bs-target="#{{.CollapseID}}" aria-expanded="{{.Expanded}}" aria-controls="{{.CollapseID}}">{{.Title}}</button>
    <div class="btn-group ms-2 me-2">
{{- range .Actions}}
      <button type="button" class="{{.ButtonClass}}" data-bs-toggle="modal" data-bs-target="#{{.ModalTarget}}"{{range .Attributes}} {{.Attr}}{{end}}><i class="{{.IconClass}}"></i> {{.Label}}</button>
{{- end}}
    </div>
  </h2>
  <div id="{{.CollapseID}}" class="accordion-collapse collapse{{if .Expanded}} show{{end}}" aria-labelledby="{{.HeadingID}}">
    <div class="accordion-body">
{{- if .Notice}}
      <div class="alert alert-danger" role="alert">{{.Notice}}</div>
{{- end}}
      <form id="{{.FormID}}" method="post" action="{{.Action}}" data-console-form>
        <fieldset{{if .Disabled}} disabled{{end}}>
          <div class="row">
{{- range .Identity}}
            {{.HTML}}
{{- end}}
          </div>
{{- if .RegenerateAction}}
          <button type="submit" class="d-none" formaction="{{.RegenerateAction}}" formnovalidate data-regenerate-fallback>Regenerate</button>
{{- end}}
          <ul class="nav nav-tabs" role="tablist">
{{- range .Tabs.Tabs}}
            <li class="nav-item" role="presentation">
              <button class="nav-link{{if .Active}} active{{end}}" id="{{.TabID}}" data-bs-toggle="tab" data-bs-target="#{{.PaneID}}" type="button" role="tab" aria-controls="{{.PaneID}}" aria-selected="{{.Active}}">{{.Label}}</button>
            </li>
{{- end}}
          </ul>
          <div class="tab-content border border-top-0 p-3 mb-3">
{{- range .Tabs.Tabs}}
            <div class="tab-pane fade{{if .Active}} show active{{end}}" id="{{.PaneID}}" role="tabpanel" aria-labelledby="{{.TabID}}">
              <div class="row">
{{- range .Fields}}
                {{.HTML}}
{{- end}}
              </div>
            </div>
{{- end}}
          </div>
          <button type="submit" class="btn btn-primary">{{.SubmitLabel}}</button>
        </fieldset>
      </form>
{{- if .Children}}
      <h5 class="mt-4">{{.ChildHeading}}</h5>
      <div class="accordion" id="children_{{.OwnerID}}">
{{- range .Children}}
        {{template "entity" .}}
{{- end}}
      </div>
{{- end}}
    </div>
  </div>
</div>
{{define "add"}}<div class="modal fade" id="{{.ModalID}}" tabindex="-1" aria-hidden="true">
  <div class="modal-dialog">
    <form class="modal-content" id="{{.FormID}}" method="post" action="{{.Action}}" data-console-form>
      <div class="modal-header">
        <h5 class="modal-title">{{.Title}}</h5>
        <button type="button" class="btn-close" data-bs-dismiss="modal" aria-label="Close"></button>
      </div>
      <fieldset class="modal-body">
        <div class="row">
{{- range .Fields}}
          {{.HTML}}
{{- end}}
        </div>
      </fieldset>
      <div class="modal-footer">
        <button type="button" class="btn btn-secondary" data-bs-dismiss="modal">Cancel</button>
        <button type="submit" class="btn btn-primary">{{.SubmitLabel}}</button>
      </div>
    </form>
  </div>
</div>{{end}}`))
