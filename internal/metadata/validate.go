// Package metadata validates and sanitizes partial updates to an episode's
// metadata.yml before they are merged into the stored document.
package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxTagLength         = 100
	MaxNotesLength       = 2000
	MaxDependencyLength  = 200
)

// Content statuses in their conventional order.
const (
	StatusDraft    = "draft"
	StatusReady    = "ready"
	StatusStaged   = "staged"
	StatusReleased = "released"
)

var (
	Statuses       = []string{StatusDraft, StatusReady, StatusStaged, StatusReleased}
	WorkflowStages = []string{"scripted", "recorded", "edited", "thumbnail_created", "uploaded", "published"}

	allowedFields = map[string]struct{}{
		"title": {}, "description": {}, "content_status": {}, "tags": {}, "workflow": {}, "release": {},
	}

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Result is the outcome of Validate. Sanitized must not be applied when
// Errors is non-empty.
type Result struct {
	Errors    []string
	Sanitized map[string]any
}

// OK reports whether the update passed every rule.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Validate checks a partial metadata update field by field. It never panics
// on odd input and reports every problem it finds in one pass.
func Validate(updates map[string]any) Result {
	res := Result{Sanitized: map[string]any{}}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := updates[key]
		if _, ok := allowedFields[key]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("Unknown field: %s", key))
			continue
		}
		switch key {
		case "title":
			title, msg := ValidateTitle(value)
			if msg != "" {
				res.Errors = append(res.Errors, msg)
				continue
			}
			res.Sanitized[key] = title
		case "description":
			description, msg := ValidateDescription(value)
			if msg != "" {
				res.Errors = append(res.Errors, msg)
				continue
			}
			res.Sanitized[key] = description
		case "content_status":
			status, ok := value.(string)
			if !ok || !IsValidStatus(status) {
				res.Errors = append(res.Errors, "Content status must be one of: "+strings.Join(Statuses, ", "))
				continue
			}
			res.Sanitized[key] = status
		case "tags":
			tags, msg := validateTags(value)
			if msg != "" {
				res.Errors = append(res.Errors, msg)
				continue
			}
			res.Sanitized[key] = tags
		case "workflow":
			workflow, errs := validateWorkflow(value)
			res.Errors = append(res.Errors, errs...)
			if len(workflow) > 0 {
				res.Sanitized[key] = workflow
			}
		case "release":
			release, errs := validateRelease(value)
			res.Errors = append(res.Errors, errs...)
			if len(release) > 0 {
				res.Sanitized[key] = release
			}
		}
	}
	return res
}

// ValidateTitle returns the sanitized title or a message describing why the
// value is unacceptable.
func ValidateTitle(value any) (string, string) {
	s, ok := value.(string)
	if !ok {
		return "", "Title must be a string"
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return "", fmt.Sprintf("Title must be %d characters or less", MaxTitleLength)
	}
	clean := SanitizeText(s, false)
	if clean == "" {
		return "", "Title cannot be empty"
	}
	return clean, ""
}

// ValidateDescription returns the sanitized description or a message.
func ValidateDescription(value any) (string, string) {
	s, ok := value.(string)
	if !ok {
		return "", "Description must be a string"
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return "", fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength)
	}
	return SanitizeText(s, true), ""
}

// IsValidStatus reports whether s is one of the content statuses.
func IsValidStatus(s string) bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsWorkflowStage reports whether s names a workflow stage.
func IsWorkflowStage(s string) bool {
	for _, stage := range WorkflowStages {
		if s == stage {
			return true
		}
	}
	return false
}

// IsValidDate reports whether s is a YYYY-MM-DD string naming a real day.
func IsValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func validateTags(value any) ([]string, string) {
	items, ok := asList(value)
	if !ok {
		return nil, "Tags must be an array"
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(stripControl(s, false))
		if s == "" {
			continue
		}
		tags = append(tags, truncate(s, MaxTagLength))
	}
	return tags, ""
}

func validateWorkflow(value any) (map[string]any, []string) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, []string{"Workflow must be an object"}
	}
	var errs []string
	out := map[string]any{}
	for _, stage := range sortedKeys(fields) {
		if !IsWorkflowStage(stage) {
			errs = append(errs, fmt.Sprintf("Unknown workflow stage: %s", stage))
			continue
		}
		done, ok := fields[stage].(bool)
		if !ok {
			errs = append(errs, fmt.Sprintf("Workflow stage %s must be a boolean", stage))
			continue
		}
		out[stage] = done
	}
	return out, errs
}

func validateRelease(value any) (map[string]any, []string) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, []string{"Release must be an object"}
	}
	var errs []string
	out := map[string]any{}
	for _, key := range sortedKeys(fields) {
		v := fields[key]
		switch key {
		case "target_date":
			date, msg := ValidateTargetDate(v)
			if msg != "" {
				errs = append(errs, msg)
				continue
			}
			out[key] = date
		case "release_group":
			out[key] = coerceString(v)
		case "notes":
			out[key] = truncate(coerceString(v), MaxNotesLength)
		case "depends_on":
			if v == nil {
				out[key] = []string{}
				continue
			}
			items, ok := asList(v)
			if !ok {
				errs = append(errs, "Release depends_on must be an array")
				continue
			}
			deps := make([]string, 0, len(items))
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					continue
				}
				if s = strings.TrimSpace(s); s != "" {
					deps = append(deps, truncate(s, MaxDependencyLength))
				}
			}
			out[key] = deps
		default:
			errs = append(errs, fmt.Sprintf("Unknown release field: %s", key))
		}
	}
	return out, errs
}

// ValidateTargetDate normalizes an optional release date. Empty and null
// values become "".
func ValidateTargetDate(value any) (string, string) {
	if value == nil {
		return "", ""
	}
	s, ok := value.(string)
	if !ok {
		return "", "Target date must be a string in YYYY-MM-DD format"
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if !IsValidDate(s) {
		return "", fmt.Sprintf("Target date %q is not a valid YYYY-MM-DD calendar date", s)
	}
	return s, ""
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
