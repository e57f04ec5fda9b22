package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

const (
	commandUseName          = "schemaaudit [directory]"
	commandShortDescription = "Audit field catalog files"
	commandLongDescription  = "Parse every field catalog in a directory and report errors and warnings before the console loads them"
	defaultCatalogDirectory = "internal/schema/catalogs"
	catalogFileExtension    = ".yaml"
	fieldIDKey              = "id"
	auditOKMessage          = "schema-audit OK"
	auditFailedMessage      = "schema-audit failed"
)

var errAuditFailed = errors.New("schema_audit_failed")

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func newAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:          commandUseName,
		Short:        commandShortDescription,
		Long:         commandLongDescription,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			directory := defaultCatalogDirectory
			if len(arguments) == 1 {
				directory = arguments[0]
			}
			result := runAudit(directory)
			return report(result, command.OutOrStdout(), command.ErrOrStderr())
		},
	}
}

func report(result auditResult, output io.Writer, errorOutput io.Writer) error {
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(output, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(errorOutput, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(errorOutput, "%s\n", auditFailedMessage)
		return errAuditFailed
	}
	_, _ = fmt.Fprintf(output, "%s\n", auditOKMessage)
	return nil
}

func runAudit(directory string) auditResult {
	var result auditResult

	entries, readErr := os.ReadDir(directory)
	if readErr != nil {
		result.addError("read catalog directory %s: %v", directory, readErr)
		return result
	}

	builtIn, builtInErr := schema.Load()
	if builtInErr != nil {
		result.addError("load built-in catalogs: %v", builtInErr)
		return result
	}

	catalogFiles := make(map[model.EntityKind]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != catalogFileExtension {
			continue
		}
		path := filepath.Join(directory, entry.Name())
		document, fileErr := os.ReadFile(path)
		if fileErr != nil {
			result.addError("read %s: %v", path, fileErr)
			continue
		}
		catalog, parseErr := schema.Parse(document)
		if parseErr != nil {
			result.addError("%s: %v", path, parseErr)
			continue
		}
		if previous, duplicate := catalogFiles[catalog.Kind]; duplicate {
			result.addError("%s: kind %s is already defined in %s", path, catalog.Kind, previous)
			continue
		}
		catalogFiles[catalog.Kind] = path

		lines, lineErr := fieldLines(document)
		if lineErr != nil {
			result.addError("%s: %v", path, lineErr)
			continue
		}
		auditCatalog(path, catalog, lines, &result)
		if reference, known := builtInCatalog(builtIn, catalog.Kind); known {
			compareWithBuiltIn(path, catalog, reference, &result)
		}
	}

	if len(catalogFiles) == 0 {
		result.addError("catalog directory %s: no %s files found", directory, catalogFileExtension)
		return result
	}
	for _, kind := range builtIn.Kinds() {
		if _, present := catalogFiles[kind]; !present {
			result.addWarning("catalog directory %s: no catalog for %s, the built-in one is used", directory, kind)
		}
	}
	return result
}

func auditCatalog(path string, catalog schema.Catalog, lines map[string]int, result *auditResult) {
	location := func(fieldID string) string {
		if line, found := lines[fieldID]; found {
			return fmt.Sprintf("%s:%d", path, line)
		}
		return path
	}

	if displayField, declared := catalog.Field(catalog.DisplayField); declared && !displayField.Add {
		result.addWarning("%s: display field %s is not shown in the add dialog", location(displayField.ID), displayField.ID)
	}

	for _, panel := range catalog.Panels {
		if len(panel.Fields) == 0 {
			result.addWarning("%s: panel %s has no fields", path, panel.Name)
		}
	}

	for _, field := range catalog.Fields() {
		if field.Kind == schema.KindHidden {
			continue
		}
		if strings.TrimSpace(field.Label) == "" {
			result.addWarning("%s: field %s has no label", location(field.ID), field.ID)
		}
		if strings.TrimSpace(field.Tooltip) == "" {
			result.addWarning("%s: field %s has no tooltip", location(field.ID), field.ID)
		}
		if field.Required && !field.Add {
			result.addWarning("%s: required field %s is not shown in the add dialog", location(field.ID), field.ID)
		}
		if field.Secret && !field.ReadOnly {
			result.addWarning("%s: secret field %s is editable", location(field.ID), field.ID)
		}
	}
}

func compareWithBuiltIn(path string, catalog schema.Catalog, reference schema.Catalog, result *auditResult) {
	for _, field := range reference.Fields() {
		if _, declared := catalog.Field(field.ID); !declared {
			result.addWarning("%s: built-in field %s is not declared and will not be edited", path, field.ID)
		}
	}
}

func builtInCatalog(registry *schema.Registry, kind model.EntityKind) (schema.Catalog, bool) {
	catalog, catalogErr := registry.Catalog(kind)
	if catalogErr != nil {
		return schema.Catalog{}, false
	}
	return catalog, true
}

// fieldLines maps every field id of a catalog document to the line it is declared on.
func fieldLines(document []byte) (map[string]int, error) {
	var root yaml.Node
	if decodeErr := yaml.Unmarshal(document, &root); decodeErr != nil {
		return nil, decodeErr
	}
	lines := make(map[string]int)
	collectFieldLines(&root, lines)
	return lines, nil
}

func collectFieldLines(node *yaml.Node, lines map[string]int) {
	if node == nil {
		return
	}
	if node.Kind == yaml.MappingNode {
		for index := 0; index+1 < len(node.Content); index += 2 {
			key := node.Content[index]
			value := node.Content[index+1]
			if key.Value == fieldIDKey && value.Kind == yaml.ScalarNode {
				if _, seen := lines[value.Value]; !seen {
					lines[value.Value] = key.Line
				}
			}
		}
	}
	for _, child := range node.Content {
		collectFieldLines(child, lines)
	}
}

func main() {
	if executeErr := newAuditCommand().Execute(); executeErr != nil {
		os.Exit(1)
	}
}
