package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
)

// ErrInvalidField wraps every form value that cannot be converted to its column type.
var ErrInvalidField = errors.New("backend: invalid field value")

// formValues is the flat field map posted by the console. Absent keys leave stored values untouched;
// present but blank keys fall back to the column default.
type formValues map[string]string

type fieldErrors []error

func (problems *fieldErrors) add(err error) {
	if err != nil {
		*problems = append(*problems, err)
	}
}

func (problems fieldErrors) err() error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidField, errors.Join(problems...))
}

func (values formValues) has(key string) bool {
	_, present := values[key]
	return present
}

func (values formValues) trimmed(key string) string {
	return strings.TrimSpace(values[key])
}

func (values formValues) assignText(key string, target *string, fallback string) {
	if !values.has(key) {
		return
	}
	value := values.trimmed(key)
	if value == "" {
		value = fallback
	}
	*target = value
}

// assignRaw keeps surrounding whitespace, which matters for message templates and keys.
func (values formValues) assignRaw(key string, target *string, fallback string) {
	if !values.has(key) {
		return
	}
	value := values[key]
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	*target = value
}

func (values formValues) assignFlag(key string, target *int) error {
	if !values.has(key) {
		return nil
	}
	switch strings.ToLower(values.trimmed(key)) {
	case "", "0", "false", "off", "no":
		*target = 0
	case "1", "true", "on", "yes":
		*target = 1
	default:
		return fmt.Errorf("%s: %q is not a flag", key, values[key])
	}
	return nil
}

func (values formValues) assignInt(key string, target *int, fallback int) error {
	if !values.has(key) {
		return nil
	}
	raw := values.trimmed(key)
	if raw == "" {
		*target = fallback
		return nil
	}
	parsed, parseErr := parseWholeNumber(raw)
	if parseErr != nil {
		return fmt.Errorf("%s: %q is not a whole number", key, raw)
	}
	*target = parsed
	return nil
}

func (values formValues) assignOptionalInt(key string, target **int, fallback *int) error {
	if !values.has(key) {
		return nil
	}
	raw := values.trimmed(key)
	if raw == "" {
		*target = fallback
		return nil
	}
	parsed, parseErr := parseWholeNumber(raw)
	if parseErr != nil {
		return fmt.Errorf("%s: %q is not a whole number", key, raw)
	}
	*target = &parsed
	return nil
}

func (values formValues) assignFloat(key string, target *float64, fallback float64) error {
	if !values.has(key) {
		return nil
	}
	raw := values.trimmed(key)
	if raw == "" {
		*target = fallback
		return nil
	}
	parsed, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return fmt.Errorf("%s: %q is not a number", key, raw)
	}
	*target = parsed
	return nil
}

func (values formValues) assignOptionalFloat(key string, target **float64) error {
	if !values.has(key) {
		return nil
	}
	raw := values.trimmed(key)
	if raw == "" {
		*target = nil
		return nil
	}
	parsed, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return fmt.Errorf("%s: %q is not a number", key, raw)
	}
	*target = &parsed
	return nil
}

// assignHeaders accepts a JSON object of string values; blank input clears the headers.
func (values formValues) assignHeaders(key string, target *string) error {
	if !values.has(key) {
		return nil
	}
	raw := values.trimmed(key)
	if raw == "" {
		*target = emptyHeadersJSON
		return nil
	}
	var headers map[string]string
	if decodeErr := json.Unmarshal([]byte(raw), &headers); decodeErr != nil {
		return fmt.Errorf("%s: must be a JSON object of strings", key)
	}
	encoded, encodeErr := json.Marshal(headers)
	if encodeErr != nil {
		return fmt.Errorf("%s: %w", key, encodeErr)
	}
	*target = string(encoded)
	return nil
}

// emailList splits the posted recipient list into a set, keeping first-seen order.
func (values formValues) emailList(key string) ([]string, bool) {
	if !values.has(key) {
		return nil, false
	}
	return form.SplitList(values[key]), true
}

func (values formValues) identifier(key string) (uint, error) {
	raw := values.trimmed(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidField, key)
	}
	parsed, parseErr := strconv.ParseUint(raw, 10, 64)
	if parseErr != nil || parsed == 0 {
		return 0, fmt.Errorf("%w: %s: %q is not an id", ErrInvalidField, key, raw)
	}
	return uint(parsed), nil
}

func parseWholeNumber(raw string) (int, error) {
	if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
		return parsed, nil
	}
	parsedFloat, floatErr := strconv.ParseFloat(raw, 64)
	if floatErr != nil || parsedFloat != float64(int(parsedFloat)) {
		return 0, errors.New("not a whole number")
	}
	return int(parsedFloat), nil
}

func decodeHeaders(encoded string) map[string]string {
	headers := map[string]string{}
	if strings.TrimSpace(encoded) == "" {
		return headers
	}
	if decodeErr := json.Unmarshal([]byte(encoded), &headers); decodeErr != nil {
		return map[string]string{}
	}
	return headers
}
