package form

import (
	"fmt"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

// Tab is one panel of a form rendered as a tab and its pane.
type Tab struct {
	Name   string
	Label  string
	TabID  string
	PaneID string
	Active bool
	Fields []RenderedField
}

// TabSet is the panel navigation of a single form. Exactly one tab is active.
type TabSet struct {
	OwnerID string
	Tabs    []Tab
}

// ComposePanels renders every catalog panel as a tab in declaration order, the first one active.
// values holds the current string value of each field.
func ComposePanels(catalog schema.Catalog, values map[string]string, ownerID string) TabSet {
	tabSet := TabSet{OwnerID: ownerID, Tabs: make([]Tab, 0, len(catalog.Panels))}
	for panelIndex, panel := range catalog.Panels {
		tab := Tab{
			Name:   panel.Name,
			Label:  panel.Label,
			TabID:  fmt.Sprintf("%s-tab-%s", panel.Name, ownerID),
			PaneID: fmt.Sprintf("%s-pane-%s", panel.Name, ownerID),
			Active: panelIndex == 0,
			Fields: make([]RenderedField, 0, len(panel.Fields)),
		}
		for _, field := range panel.Fields {
			tab.Fields = append(tab.Fields, renderFieldValue(field, values[field.ID], ownerID))
		}
		tabSet.Tabs = append(tabSet.Tabs, tab)
	}
	return tabSet
}

// Activate makes the named tab the only active one. Field values are untouched.
// It reports false when no tab has that name, leaving the current selection in place.
func (tabSet *TabSet) Activate(name string) bool {
	found := false
	for _, tab := range tabSet.Tabs {
		if tab.Name == name {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for tabIndex := range tabSet.Tabs {
		tabSet.Tabs[tabIndex].Active = tabSet.Tabs[tabIndex].Name == name
	}
	return true
}

// ActiveTab returns the currently active tab.
func (tabSet TabSet) ActiveTab() (Tab, bool) {
	for _, tab := range tabSet.Tabs {
		if tab.Active {
			return tab, true
		}
	}
	return Tab{}, false
}

// OwnerID derives the element-id suffix for an entity, e.g. "system_3" or "agency_3_new".
func OwnerID(ref model.EntityRef) string {
	if ref.IsNew() {
		if ref.Kind == model.KindAgency {
			return fmt.Sprintf("%s_%s_new", ref.Kind, ref.ParentID)
		}
		return fmt.Sprintf("%s_new", ref.Kind)
	}
	return fmt.Sprintf("%s_%s", ref.Kind, ref.ID)
}
