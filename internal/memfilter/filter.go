// Package memfilter is a chainable, in-memory predicate and sort engine for
// memory-shaped records: maps that may nest extraction attributes under a
// "metadata" key or expose them top-level. It performs no I/O; a Filter is
// accumulated configuration, and Apply is a pure function over it. Build a
// fresh Filter per query rather than reusing one across unrelated queries.
package memfilter

import (
	"sort"
	"time"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

type predicate func(rec map[string]any) bool

// Filter accumulates predicates and an optional terminal sort. The combined
// predicate is: AND(all match-family conditions) OR (any or-family
// condition). An empty or-set contributes nothing; an empty and-set passes
// everything.
type Filter struct {
	and  []predicate
	or   []predicate
	sort sortSpec
}

type sortSpec struct {
	key   string // "timestamp" or "similarity"; empty means natural order
	order Order
}

// New returns an empty filter.
func New() *Filter {
	return &Filter{}
}

// Match requires the field to equal want (AND-combined).
func (f *Filter) Match(key string, want any) *Filter {
	f.and = append(f.and, func(rec map[string]any) bool {
		got, ok := lookup(rec, key)
		return ok && equalValues(got, want)
	})
	return f
}

// OrMatch requires the field to equal want (OR-combined).
func (f *Filter) OrMatch(key string, want any) *Filter {
	f.or = append(f.or, func(rec map[string]any) bool {
		got, ok := lookup(rec, key)
		return ok && equalValues(got, want)
	})
	return f
}

// GreaterThanOrEqual requires field >= threshold. Numeric values compare
// numerically; string operands parseable as ISO-8601 dates compare as dates,
// other strings lexicographically.
func (f *Filter) GreaterThanOrEqual(key string, threshold any) *Filter {
	f.and = append(f.and, func(rec map[string]any) bool {
		got, ok := lookup(rec, key)
		return ok && compare(got, threshold, opGTE)
	})
	return f
}

// LessThanOrEqual requires field <= threshold.
func (f *Filter) LessThanOrEqual(key string, threshold any) *Filter {
	f.and = append(f.and, func(rec map[string]any) bool {
		got, ok := lookup(rec, key)
		return ok && compare(got, threshold, opLTE)
	})
	return f
}

// Contains requires the list field to contain item (AND-combined).
func (f *Filter) Contains(key string, item any) *Filter {
	f.and = append(f.and, containsPred(key, item))
	return f
}

// OrContains requires the list field to contain item (OR-combined).
func (f *Filter) OrContains(key string, item any) *Filter {
	f.or = append(f.or, containsPred(key, item))
	return f
}

// ContainsAny requires the list field to intersect items.
func (f *Filter) ContainsAny(key string, items []any) *Filter {
	f.and = append(f.and, func(rec map[string]any) bool {
		list := listValue(rec, key)
		for _, item := range items {
			if listContains(list, item) {
				return true
			}
		}
		return false
	})
	return f
}

// ContainsAll requires the list field to contain every item.
func (f *Filter) ContainsAll(key string, items []any) *Filter {
	f.and = append(f.and, func(rec map[string]any) bool {
		list := listValue(rec, key)
		for _, item := range items {
			if !listContains(list, item) {
				return false
			}
		}
		return true
	})
	return f
}

// SortByDate sets the terminal sort to the "timestamp" field. Calling any
// sort setter again overrides the previous one: the last call wins. Orders
// other than Asc sort descending.
func (f *Filter) SortByDate(order Order) *Filter {
	f.sort = sortSpec{key: "timestamp", order: order}
	return f
}

// SortBySimilarity sets the terminal sort to the "similarity" field.
func (f *Filter) SortBySimilarity(order Order) *Filter {
	f.sort = sortSpec{key: "similarity", order: order}
	return f
}

// Apply evaluates the combined predicate over records, then sorts if a sort
// key was set. The input slice is not mutated. Records missing the sort
// field order as the earliest date / 0.0 similarity.
func (f *Filter) Apply(records []map[string]any) []map[string]any {
	filtered := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if f.matches(rec) {
			filtered = append(filtered, rec)
		}
	}

	switch f.sort.key {
	case "timestamp":
		desc := f.sort.order != Asc
		sort.SliceStable(filtered, func(i, j int) bool {
			ti := dateSortValue(filtered[i])
			tj := dateSortValue(filtered[j])
			if desc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	case "similarity":
		desc := f.sort.order != Asc
		sort.SliceStable(filtered, func(i, j int) bool {
			si := similaritySortValue(filtered[i])
			sj := similaritySortValue(filtered[j])
			if desc {
				return si > sj
			}
			return si < sj
		})
	}

	return filtered
}

func (f *Filter) matches(rec map[string]any) bool {
	andOK := true
	for _, p := range f.and {
		if !p(rec) {
			andOK = false
			break
		}
	}
	if andOK {
		return true
	}
	for _, p := range f.or {
		if p(rec) {
			return true
		}
	}
	return false
}

func containsPred(key string, item any) predicate {
	return func(rec map[string]any) bool {
		return listContains(listValue(rec, key), item)
	}
}

// lookup resolves a field, checking rec["metadata"][key] first and falling
// back to the top level. This is the only place the nested/flat duality is
// handled.
func lookup(rec map[string]any, key string) (any, bool) {
	if meta, ok := rec["metadata"].(map[string]any); ok {
		if v, ok := meta[key]; ok {
			return v, true
		}
	}
	v, ok := rec[key]
	return v, ok
}

func listValue(rec map[string]any, key string) []any {
	v, ok := lookup(rec, key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}

func listContains(list []any, item any) bool {
	for _, v := range list {
		if equalValues(v, item) {
			return true
		}
	}
	return false
}

// equalValues compares loosely: numeric values of any width compare as
// float64, everything else by plain equality.
func equalValues(a, b any) bool {
	fa, aNum := numeric(a)
	fb, bNum := numeric(b)
	if aNum && bNum {
		return fa == fb
	}
	return a == b
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

type compareOp int

const (
	opGTE compareOp = iota
	opLTE
)

// compare handles numeric and date-aware ordering. Values that coerce to
// neither a common numeric, date, nor string pair are incomparable (false).
func compare(value, threshold any, op compareOp) bool {
	if value == nil {
		return false
	}

	if vt, ok := dateValue(value); ok {
		if tt, ok := dateValue(threshold); ok {
			return ordered(vt.Compare(tt), op)
		}
		return false
	}

	if fv, ok := numeric(value); ok {
		if ft, ok := numeric(threshold); ok {
			switch op {
			case opGTE:
				return fv >= ft
			default:
				return fv <= ft
			}
		}
		return false
	}

	sv, okV := value.(string)
	st, okT := threshold.(string)
	if okV && okT {
		switch op {
		case opGTE:
			return sv >= st
		default:
			return sv <= st
		}
	}
	return false
}

func ordered(cmp int, op compareOp) bool {
	switch op {
	case opGTE:
		return cmp >= 0
	default:
		return cmp <= 0
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// dateValue interprets strings (and time.Time) as dates where possible.
func dateValue(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func dateSortValue(rec map[string]any) time.Time {
	v, ok := lookup(rec, "timestamp")
	if !ok {
		return time.Time{}
	}
	t, ok := dateValue(v)
	if !ok {
		return time.Time{}
	}
	return t
}

func similaritySortValue(rec map[string]any) float64 {
	v, ok := lookup(rec, "similarity")
	if !ok {
		return 0
	}
	f, ok := numeric(v)
	if !ok {
		return 0
	}
	return f
}
