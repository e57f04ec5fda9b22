package footer

import (
	"bytes"
	"errors"
	"html/template"
	"strconv"
	"time"
)

const (
	refreshedLayout     = "2006-01-02 15:04:05 MST"
	singularSystemLabel = "system"
	pluralSystemsLabel  = "systems"
	defaultElementID    = "console-footer"
	defaultBaseClass    = "border-top bg-body py-2 mt-4 small text-body-secondary"
	defaultInnerClass   = "container d-flex flex-wrap justify-content-between gap-2"
	defaultItemClass    = "me-3"
	defaultLinkClass    = "link-secondary"
	missingProductLabel = "footer: product label is required"
)

// ErrMissingProduct reports a Config without a product label.
var ErrMissingProduct = errors.New(missingProductLabel)

// Link describes an auxiliary link shown on the right side of the footer.
type Link struct {
	Label string
	URL   string
}

// Config captures the status values and style hooks rendered by the footer.
type Config struct {
	ElementID   string
	BaseClass   string
	InnerClass  string
	ItemClass   string
	LinkClass   string
	Product     string
	SystemCount int
	RefreshedAt time.Time
	Links       []Link
}

type footerView struct {
	Config
	SystemsText   string
	RefreshedText string
	RefreshedISO  string
}

var footerTemplate = template.Must(template.New("footer").Parse(`<footer id="{{.ElementID}}" class="{{.BaseClass}}">
  <div class="{{.InnerClass}}">
    <div>
      <span class="{{.ItemClass}} fw-semibold">{{.Product}}</span>
      <span class="{{.ItemClass}}" data-role="system-count">{{.SystemsText}}</span>
{{- if .RefreshedText}}
      <time class="{{.ItemClass}}" datetime="{{.RefreshedISO}}">Refreshed {{.RefreshedText}}</time>
{{- end}}
    </div>
{{- if .Links}}
    <div>
{{- range .Links}}
      <a class="{{$.LinkClass}} {{$.ItemClass}}" href="{{.URL}}">{{.Label}}</a>
{{- end}}
    </div>
{{- end}}
  </div>
</footer>`))

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	if config.Product == "" {
		return "", ErrMissingProduct
	}
	view := footerView{Config: withDefaults(config), SystemsText: systemsText(config.SystemCount)}
	if !config.RefreshedAt.IsZero() {
		view.RefreshedText = config.RefreshedAt.Format(refreshedLayout)
		view.RefreshedISO = config.RefreshedAt.Format(time.RFC3339)
	}
	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, view); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}

func withDefaults(config Config) Config {
	if config.ElementID == "" {
		config.ElementID = defaultElementID
	}
	if config.BaseClass == "" {
		config.BaseClass = defaultBaseClass
	}
	if config.InnerClass == "" {
		config.InnerClass = defaultInnerClass
	}
	if config.ItemClass == "" {
		config.ItemClass = defaultItemClass
	}
	if config.LinkClass == "" {
		config.LinkClass = defaultLinkClass
	}
	return config
}

func systemsText(count int) string {
	if count < 0 {
		count = 0
	}
	if count == 1 {
		return "1 " + singularSystemLabel
	}
	return strconv.Itoa(count) + " " + pluralSystemsLabel
}
