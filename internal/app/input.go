package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Optional records whether a JSON field was present and whether it was an
// explicit null. Partial updates only touch fields with Set == true.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// flexID accepts 12, "12", "" and "none". Zero means "no id".
type flexID int64

func (id *flexID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		raw = strings.TrimSpace(text)
		if raw == "" || strings.EqualFold(raw, "none") {
			*id = 0
			return nil
		}
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed < 0 {
		return fmt.Errorf("invalid id %s", raw)
	}
	*id = flexID(parsed)
	return nil
}

type AreaInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Priority    Optional[string] `json:"priority"`
}

type ProjectInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Status      Optional[string] `json:"status"`
	Priority    Optional[string] `json:"priority"`
	DueDate     Optional[string] `json:"dueDate"`
	AreaID      Optional[flexID] `json:"areaId"`
}

type TaskInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Status      Optional[string] `json:"status"`
	Priority    Optional[string] `json:"priority"`
	Energy      Optional[string] `json:"energy"`
	Context     Optional[string] `json:"context"`
	Notes       Optional[string] `json:"notes"`
	DueDate     Optional[string] `json:"dueDate"`
	Completed   Optional[bool]   `json:"completed"`
	ProjectID   Optional[flexID] `json:"projectId"`
	AreaID      Optional[flexID] `json:"areaId"`
}

type ResourceInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Type        Optional[string] `json:"type"`
	URL         Optional[string] `json:"url"`
	ProjectID   Optional[flexID] `json:"projectId"`
	AreaID      Optional[flexID] `json:"areaId"`
}

type FavoriteInput struct {
	ItemID   flexID `json:"itemId"`
	ItemType string `json:"itemType"`
	UserID   string `json:"userId"`
}

var allowedPriorities = map[string]struct{}{
	"P1": {},
	"P2": {},
	"P3": {},
}

var allowedEnergy = map[string]struct{}{
	"HIGH":   {},
	"MEDIUM": {},
	"LOW":    {},
}

var allowedContexts = map[string]struct{}{
	"HOME":     {},
	"COMPUTER": {},
	"CALLS":    {},
	"ERRANDS":  {},
}

var allowedProjectStatus = map[string]struct{}{
	"ACTIVE":      {},
	"IN_PROGRESS": {},
	"COMPLETED":   {},
	"ON_HOLD":     {},
}

var allowedTaskStatus = map[string]struct{}{
	"TODO":        {},
	"IN_PROGRESS": {},
	"COMPLETED":   {},
}

var allowedArchiveTypes = map[string]struct{}{
	"AREA":     {},
	"PROJECT":  {},
	"TASK":     {},
	"RESOURCE": {},
}

var allowedFavoriteTypes = map[string]struct{}{
	"AREA":    {},
	"PROJECT": {},
	"TASK":    {},
}

// isBlank reports whether a string means "no value" for a nullable field.
func isBlank(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || strings.EqualFold(trimmed, "none")
}

func normalizeVocab(field, raw string, allowed map[string]struct{}) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := allowed[value]; !ok {
		return "", validationError("%s must be one of %s", field, strings.Join(sortedKeys(allowed), ", "))
	}
	return value, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// nameField validates a required name. When required is false an absent
// field yields nil.
func nameField(o Optional[string], required bool) (*string, error) {
	if !o.Set {
		if required {
			return nil, validationError("name is required")
		}
		return nil, nil
	}
	name := strings.TrimSpace(o.Value)
	if o.Null || name == "" {
		return nil, validationError("name is required")
	}
	return &name, nil
}

// textField maps a nullable text field onto a patch value. Blank clears.
func textField(o Optional[string]) **string {
	if !o.Set {
		return nil
	}
	var value *string
	if trimmed := strings.TrimSpace(o.Value); !o.Null && trimmed != "" {
		value = &trimmed
	}
	return &value
}

// noteField keeps free-form text as sent. Only an empty string clears.
func noteField(o Optional[string]) **string {
	if !o.Set {
		return nil
	}
	var value *string
	if !o.Null && o.Value != "" {
		note := o.Value
		value = &note
	}
	return &value
}

func nullableEnum[T ~string](o Optional[string], field string, allowed map[string]struct{}) (**T, error) {
	if !o.Set {
		return nil, nil
	}
	var value *T
	if !o.Null && !isBlank(o.Value) {
		normalized, err := normalizeVocab(field, o.Value, allowed)
		if err != nil {
			return nil, err
		}
		typed := T(normalized)
		value = &typed
	}
	return &value, nil
}

func requiredEnum[T ~string](o Optional[string], field string, allowed map[string]struct{}) (*T, error) {
	if !o.Set {
		return nil, nil
	}
	if o.Null || isBlank(o.Value) {
		return nil, validationError("%s cannot be empty", field)
	}
	normalized, err := normalizeVocab(field, o.Value, allowed)
	if err != nil {
		return nil, err
	}
	typed := T(normalized)
	return &typed, nil
}

func dateField(o Optional[string], field string) (**time.Time, error) {
	if !o.Set {
		return nil, nil
	}
	var value *time.Time
	if !o.Null && strings.TrimSpace(o.Value) != "" {
		parsed, err := parseDate(o.Value)
		if err != nil {
			return nil, validationError("%s must be YYYY-MM-DD or RFC 3339", field)
		}
		value = &parsed
	}
	return &value, nil
}

func idField(o Optional[flexID]) **int64 {
	if !o.Set {
		return nil
	}
	var value *int64
	if !o.Null && o.Value > 0 {
		id := int64(o.Value)
		value = &id
	}
	return &value
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// parseID parses a positive integer path or query id.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// optionalQueryID reads an id filter from the query string. Absent or blank
// means no filter.
func optionalQueryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil, domainError(http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("Invalid %s", key), nil)
	}
	return &id, nil
}

// deref flattens a patch value for inserts.
func deref[T any](value **T) *T {
	if value == nil {
		return nil
	}
	return *value
}
