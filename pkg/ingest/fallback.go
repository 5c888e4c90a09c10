package ingest

import "strings"

// Entity provenance values recorded alongside each extracted field.
const (
	ProvenanceML    = "ml"
	ProvenanceTags  = "tags"
	ProvenanceTitle = "title"
)

// EntitySet holds the extracted entity fields of an alert. Nil means the
// field has not been populated yet.
type EntitySet struct {
	ServiceName *string
	Environment *string
	Region      *string
	ErrorCode   *string
}

// tagPrefixes maps payload tag prefixes to entity field setters.
var tagPrefixes = []struct {
	prefix string
	field  func(*EntitySet) **string
}{
	{"service:", func(e *EntitySet) **string { return &e.ServiceName }},
	{"env:", func(e *EntitySet) **string { return &e.Environment }},
	{"region:", func(e *EntitySet) **string { return &e.Region }},
	{"error:", func(e *EntitySet) **string { return &e.ErrorCode }},
}

// titleServiceTokens is the short whitelist scanned when tags carry no
// service name.
var titleServiceTokens = []string{"api", "db", "cache", "queue", "worker"}

// ApplyFallback populates still-nil entity fields from the raw payload's tags
// and the alert title, recording provenance for each field it fills. Fields
// already set are never overwritten.
func ApplyFallback(raw map[string]any, title string, entities *EntitySet, provenance map[string]string) {
	for _, tag := range payloadTags(raw) {
		for _, tp := range tagPrefixes {
			if !strings.HasPrefix(tag, tp.prefix) {
				continue
			}
			slot := tp.field(entities)
			if *slot != nil {
				continue
			}
			value := strings.TrimSpace(strings.TrimPrefix(tag, tp.prefix))
			if value == "" {
				continue
			}
			*slot = &value
			provenance[fieldName(tp.prefix)] = ProvenanceTags
		}
	}

	if entities.ServiceName == nil {
		lower := strings.ToLower(title)
		for _, tok := range titleServiceTokens {
			if containsToken(lower, tok) {
				v := tok
				entities.ServiceName = &v
				provenance["service_name"] = ProvenanceTitle
				break
			}
		}
	}
}

// EntitySource derives the aggregate provenance label: the single value when
// uniform, "mixed" when values differ, "unknown" when nothing was extracted.
func EntitySource(provenance map[string]string) string {
	if len(provenance) == 0 {
		return "unknown"
	}
	var first string
	for _, v := range provenance {
		if first == "" {
			first = v
			continue
		}
		if v != first {
			return "mixed"
		}
	}
	return first
}

func payloadTags(raw map[string]any) []string {
	list, ok := raw["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

func fieldName(prefix string) string {
	switch prefix {
	case "service:":
		return "service_name"
	case "env:":
		return "environment"
	case "region:":
		return "region"
	case "error:":
		return "error_code"
	}
	return strings.TrimSuffix(prefix, ":")
}

// containsToken reports whether tok appears in text as a whole word.
func containsToken(text, tok string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], tok)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(tok)
		leftOK := start == 0 || !isWordChar(text[start-1])
		rightOK := end == len(text) || !isWordChar(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
