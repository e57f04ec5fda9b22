package httpapi

import _ "embed"

//go:embed templates/console.tmpl
var consoleTemplateHTML string

//go:embed templates/console.js
var consoleScript []byte
