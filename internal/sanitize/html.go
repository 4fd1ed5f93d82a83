package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes every tag and attribute.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy keeps basic formatting (<p>, <b>, <i>, <a>, lists) and drops
	// scripts, iframes, event handlers and style attributes.
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all markup and returns trimmed plain text. Entities escaped by
// the policy are decoded again so "Q&A" survives a round trip.
// Use for: titles, locations, tags, creator names.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// HTML sanitizes free-form text while keeping safe formatting.
// Use for: descriptions, requirements.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}

// OptionalText applies Text to a nullable field. Values that sanitize to the
// empty string become nil.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := Text(*input)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// OptionalHTML applies HTML to a nullable field.
func OptionalHTML(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := HTML(*input)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// TextSlice sanitizes each tag and drops entries that end up empty. Order is
// preserved.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if cleaned := Text(input); cleaned != "" {
			sanitized = append(sanitized, cleaned)
		}
	}
	return sanitized
}
