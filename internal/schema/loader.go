package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
)

const catalogFileExtension = ".yaml"

//go:embed catalogs/*.yaml
var embeddedCatalogs embed.FS

// Registry resolves catalogs by entity kind.
type Registry struct {
	catalogs map[model.EntityKind]Catalog
}

// Catalog returns the catalog registered for the kind.
func (registry *Registry) Catalog(kind model.EntityKind) (Catalog, error) {
	if registry == nil {
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	catalog, found := registry.catalogs[kind]
	if !found {
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return catalog, nil
}

// MustCatalog is Catalog for kinds the caller knows are registered.
func (registry *Registry) MustCatalog(kind model.EntityKind) Catalog {
	catalog, err := registry.Catalog(kind)
	if err != nil {
		panic(err)
	}
	return catalog
}

// Kinds lists the registered entity kinds.
func (registry *Registry) Kinds() []model.EntityKind {
	kinds := make([]model.EntityKind, 0, len(registry.catalogs))
	for _, kind := range []model.EntityKind{model.KindSystem, model.KindAgency} {
		if _, found := registry.catalogs[kind]; found {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Load returns the catalogs compiled into the binary.
func Load() (*Registry, error) {
	return loadFromFS(embeddedCatalogs, "catalogs")
}

// LoadDir loads the embedded catalogs and replaces any kind defined by a yaml file in directory.
func LoadDir(directory string) (*Registry, error) {
	registry, loadErr := Load()
	if loadErr != nil {
		return nil, loadErr
	}
	trimmedDirectory := strings.TrimSpace(directory)
	if trimmedDirectory == "" {
		return registry, nil
	}
	overrides, overrideErr := loadFromFS(os.DirFS(trimmedDirectory), ".")
	if overrideErr != nil {
		return nil, fmt.Errorf("load catalogs from %s: %w", filepath.Clean(trimmedDirectory), overrideErr)
	}
	for kind, catalog := range overrides.catalogs {
		registry.catalogs[kind] = catalog
	}
	return registry, nil
}

// Parse decodes and validates one catalog document.
func Parse(document []byte) (Catalog, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(document))
	decoder.KnownFields(true)
	var catalog Catalog
	if decodeErr := decoder.Decode(&catalog); decodeErr != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, decodeErr)
	}
	catalog.Kind = model.EntityKind(strings.ToLower(strings.TrimSpace(string(catalog.Kind))))
	for index := range catalog.Identity {
		catalog.Identity[index].Panel = IdentityPanelName
	}
	for panelIndex := range catalog.Panels {
		panel := &catalog.Panels[panelIndex]
		for fieldIndex := range panel.Fields {
			panel.Fields[fieldIndex].Panel = panel.Name
		}
	}
	if validateErr := catalog.Validate(); validateErr != nil {
		return Catalog{}, validateErr
	}
	return catalog, nil
}

func loadFromFS(fileSystem fs.FS, root string) (*Registry, error) {
	entries, readErr := fs.ReadDir(fileSystem, root)
	if readErr != nil {
		return nil, readErr
	}
	registry := &Registry{catalogs: make(map[model.EntityKind]Catalog)}
	var loadErrors []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != catalogFileExtension {
			continue
		}
		document, fileErr := fs.ReadFile(fileSystem, filepath.ToSlash(filepath.Join(root, entry.Name())))
		if fileErr != nil {
			loadErrors = append(loadErrors, fileErr)
			continue
		}
		catalog, parseErr := Parse(document)
		if parseErr != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", entry.Name(), parseErr))
			continue
		}
		if _, duplicate := registry.catalogs[catalog.Kind]; duplicate {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w: kind %s defined twice", entry.Name(), ErrInvalidCatalog, catalog.Kind))
			continue
		}
		registry.catalogs[catalog.Kind] = catalog
	}
	if len(loadErrors) > 0 {
		return nil, errors.Join(loadErrors...)
	}
	return registry, nil
}
