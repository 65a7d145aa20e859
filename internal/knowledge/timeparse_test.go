package knowledge

import "testing"

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-04-07T12:30:00Z", true},
		{"2025-04-07T12:30:00", true},
		{"2025-04-07T12:30:00.123456", true},
		{"2025-04-07", true},
		{"", false},
		{"yesterday", false},
		{"07/04/2025", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := ParseTimestamp(tt.in)
			if ok != tt.ok {
				t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
		})
	}
}

func TestHumanDate(t *testing.T) {
	if got := humanDate("2025-04-07T12:30:00"); got != "Apr 07, 2025" {
		t.Errorf("humanDate = %q, want %q", got, "Apr 07, 2025")
	}
	if got := humanDate("garbage"); got != "" {
		t.Errorf("humanDate = %q for garbage, want empty", got)
	}
}
