package knowledge

import "time"

// Timestamp layouts accepted from upstream extraction. The extractor emits
// ISO-8601 without a zone; stored rows may carry RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp string. Returns ok=false for
// empty or malformed input; callers decide whether that disables a rule or
// just blanks a projection field.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// humanDate renders a timestamp the way graph queries project it,
// e.g. "Apr 07, 2025". Empty when unparseable.
func humanDate(iso string) string {
	t, ok := ParseTimestamp(iso)
	if !ok {
		return ""
	}
	return t.Format("Jan 02, 2006")
}
