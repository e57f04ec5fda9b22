package model

import (
	"fmt"
	"strings"
)

// EntityKind names one of the two configurable entity types.
type EntityKind string

const (
	KindSystem EntityKind = "system"
	KindAgency EntityKind = "agency"
)

// ParseEntityKind normalizes a raw kind name.
func ParseEntityKind(rawKind string) (EntityKind, error) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(rawKind))) {
	case KindSystem:
		return KindSystem, nil
	case KindAgency:
		return KindAgency, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", rawKind)
	}
}

// EntityRef identifies one entity. ParentID carries the owning system for agencies.
type EntityRef struct {
	Kind     EntityKind
	ID       string
	ParentID string
}

// IsNew reports whether the reference points at an entity the server has not assigned an id to yet.
func (ref EntityRef) IsNew() bool {
	return strings.TrimSpace(ref.ID) == ""
}

// Key returns a stable identifier usable as a map key.
func (ref EntityRef) Key() string {
	identifier := ref.ID
	if ref.IsNew() {
		identifier = "new"
	}
	if ref.Kind == KindAgency {
		return fmt.Sprintf("%s:%s:%s", ref.Kind, ref.ParentID, identifier)
	}
	return fmt.Sprintf("%s:%s", ref.Kind, identifier)
}

// Entity is a schema-driven projection of a backend record.
type Entity struct {
	Ref      EntityRef
	Fields   map[string]any
	Children []Entity
}

// Value returns the raw field value, or nil when absent.
func (entity Entity) Value(fieldID string) any {
	if entity.Fields == nil {
		return nil
	}
	return entity.Fields[fieldID]
}

// EntitySummary is one entry of an entity list.
type EntitySummary struct {
	ID          string
	DisplayName string
}

// MutationOutcome mirrors the backend's {success, message} envelope.
type MutationOutcome struct {
	Success   bool
	Message   string
	CreatedID string
}
