package pg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// vectorToString renders a float slice as a pgvector literal, e.g. "[1,2,3]".
func vectorToString(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	buf := make([]byte, 0, len(v)*10)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, []byte(fmt.Sprintf("%g", f))...)
	}
	buf = append(buf, ']')
	return string(buf)
}

// parseVector parses a pgvector text representation back into a float slice.
func parseVector(s string) []float32 {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			continue
		}
		out = append(out, float32(f))
	}
	return out
}

// pqStringArray converts a Go string slice to a PostgreSQL text[] literal.
func pqStringArray(arr []string) string {
	return "{" + strings.Join(arr, ",") + "}"
}

// scanStringArray parses a PostgreSQL text[] column (scanned as []byte) into
// a Go string slice.
func scanStringArray(data []byte, dest *[]string) {
	if len(data) == 0 {
		return
	}
	s := string(data)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		return
	}
	*dest = strings.Split(s, ",")
}

// pqUUIDArray converts UUIDs to a PostgreSQL uuid[] literal.
func pqUUIDArray(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
