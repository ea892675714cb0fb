// Package pattern resolves date-token templates used in path and filename
// patterns. Resolution is pure and deterministic: the same template,
// reference instant and timezone always produce the same string, because the
// resolved value is recorded for audit and event payloads.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"filesentry/internal/models"
)

// Supported tokens. Unknown tokens are a configuration error detected at
// creation time, never at execution time.
const (
	TokenYear      = "{yyyy}"
	TokenShortYear = "{yy}"
	TokenMonth     = "{mm}"
	TokenDay       = "{dd}"
	TokenHour      = "{hh}"
	TokenMinute    = "{mi}"
	TokenMonthName = "{mmm}"
	TokenDayOfYear = "{ddd}"
)

var tokenPattern = regexp.MustCompile(`\{[^{}]*\}`)

// knownTokens maps each recognized token to the time.Format layout fragment
// producing its value.
var knownTokens = map[string]string{
	TokenYear:      "2006",
	TokenShortYear: "06",
	TokenMonth:     "01",
	TokenDay:       "02",
	TokenHour:      "15",
	TokenMinute:    "04",
	TokenMonthName: "Jan",
}

// Resolve substitutes every date token in template with the corresponding
// field of the reference instant expressed in the given timezone.
func Resolve(template string, referenceInstant time.Time, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	local := referenceInstant.In(location)

	resolved := template
	for token, layout := range knownTokens {
		if strings.Contains(resolved, token) {
			resolved = strings.ReplaceAll(resolved, token, local.Format(layout))
		}
	}
	if strings.Contains(resolved, TokenDayOfYear) {
		resolved = strings.ReplaceAll(resolved, TokenDayOfYear, fmt.Sprintf("%03d", local.YearDay()))
	}
	return resolved
}

// ValidateTemplate checks that template contains only recognized tokens.
// Literal text and the '*' wildcard are always allowed.
func ValidateTemplate(template string) error {
	for _, token := range tokenPattern.FindAllString(template, -1) {
		if _, ok := knownTokens[token]; ok {
			continue
		}
		if token == TokenDayOfYear {
			continue
		}
		return models.NewValidationError("pattern", fmt.Sprintf("unrecognized token %q in template %q", token, template))
	}
	return nil
}

// DiscoveryDay formats the reference instant's calendar date in the given
// timezone. This is the dedup bucket for the discovery ledger.
func DiscoveryDay(referenceInstant time.Time, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	return referenceInstant.In(location).Format(models.DiscoveryDayLayout)
}
