package httpapi

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
)

const (
	ConsolePagePath         = "/admin/systems"
	ConsoleScriptPath       = "/admin/static/console.js"
	ConsoleAPISystemsPath   = "/admin/api/systems"
	ConsoleAPINoticePath    = "/admin/api/notification"
	consoleAgenciesSegment  = "/agencies"
	consoleDeleteSuffix     = "/delete"
	consoleRegenerateSuffix = "/regenerate-key"
	querySystemID           = "system_id"
	paramSystemID           = "system_id"
	paramAgencyID           = "agency_id"
)

// consolePaths maps entities to the console routes that mutate them.
type consolePaths struct{}

func (consolePaths) SubmitPath(ref model.EntityRef) string {
	switch ref.Kind {
	case model.KindAgency:
		agenciesPath := systemPath(ref.ParentID) + consoleAgenciesSegment
		if ref.IsNew() {
			return agenciesPath
		}
		return agenciesPath + "/" + url.PathEscape(ref.ID)
	default:
		if ref.IsNew() {
			return ConsolePagePath
		}
		return systemPath(ref.ID)
	}
}

func (paths consolePaths) DeletePath(ref model.EntityRef) string {
	return paths.SubmitPath(ref) + consoleDeleteSuffix
}

func (paths consolePaths) RegeneratePath(ref model.EntityRef) string {
	return paths.SubmitPath(ref) + consoleRegenerateSuffix
}

func (paths consolePaths) CreatePath(kind model.EntityKind, parentID string) string {
	return paths.SubmitPath(model.EntityRef{Kind: kind, ParentID: parentID})
}

func systemPath(systemID string) string {
	return ConsolePagePath + "/" + url.PathEscape(systemID)
}

// pageLocation is the console page showing systemID, or the bare page when none is selected.
func pageLocation(systemID string) string {
	if systemID == "" {
		return ConsolePagePath
	}
	return ConsolePagePath + "?" + url.Values{querySystemID: {systemID}}.Encode()
}

// sortInstances orders forms by numeric id, falling back to string order.
func sortInstances(instances []*form.Instance) {
	sort.SliceStable(instances, func(left, right int) bool {
		leftID, rightID := instances[left].Ref().ID, instances[right].Ref().ID
		leftNumber, leftErr := strconv.ParseUint(leftID, 10, 64)
		rightNumber, rightErr := strconv.ParseUint(rightID, 10, 64)
		if leftErr == nil && rightErr == nil {
			return leftNumber < rightNumber
		}
		return leftID < rightID
	})
}

var _ form.ActionPaths = consolePaths{}
