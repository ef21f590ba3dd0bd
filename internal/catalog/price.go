package catalog

import (
	"strconv"
	"strings"
)

// NormalizePrice converts a locale-formatted price string such as
// "$3.399.990" or "$1.234,56" into a count of minor currency units. The
// format uses "." as the thousands separator and an optional trailing
// decimal comma; the fractional part is truncated, never rounded. Returns
// nil when the input is empty or not numeric after stripping symbols.
func NormalizePrice(raw string) *int64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	cleaned = strings.NewReplacer("$", "", " ", "", "\u00a0", "").Replace(cleaned)

	// truncate a trailing decimal-comma fraction
	if idx := strings.IndexByte(cleaned, ','); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")

	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}
