package form

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const listSeparator = ", "

// DisplayValue converts a backend value into the string placed in a control.
// Absent values render empty; lists are joined with ", " and objects become compact JSON.
func DisplayValue(raw any) string {
	switch typed := raw.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		if typed {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint:
		return strconv.FormatUint(uint64(typed), 10)
	case json.Number:
		return typed.String()
	case []string:
		return strings.Join(typed, listSeparator)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, element := range typed {
			parts = append(parts, DisplayValue(element))
		}
		return strings.Join(parts, listSeparator)
	case map[string]any, map[string]string:
		encoded, marshalErr := json.Marshal(typed)
		if marshalErr != nil {
			return ""
		}
		if string(encoded) == "{}" {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

// ValuesEqual compares two control values as numbers when both parse as numbers, otherwise as strings.
func ValuesEqual(left string, right string) bool {
	trimmedLeft := strings.TrimSpace(left)
	trimmedRight := strings.TrimSpace(right)
	leftNumber, leftErr := strconv.ParseFloat(trimmedLeft, 64)
	rightNumber, rightErr := strconv.ParseFloat(trimmedRight, 64)
	if leftErr == nil && rightErr == nil {
		return leftNumber == rightNumber
	}
	return left == right
}

// SplitList splits a delimited list value, dropping blanks and duplicates while keeping order.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(character rune) bool {
		return character == ',' || character == '\n' || character == ';'
	})
	seen := make(map[string]struct{}, len(fields))
	entries := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed == "" {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		entries = append(entries, trimmed)
	}
	return entries
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
