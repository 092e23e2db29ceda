package engine

import (
	"fmt"
	"strings"
)

// KeyFunc maps a column value to its grouping key.
type KeyFunc func(string) string

// Predicate selects rows of a RowSource.
type Predicate func(src RowSource, i int) bool

// StripQuery drops the query string so /a?x=1 and /a?x=2 group as /a.
func StripQuery(resource string) string {
	path, _, _ := strings.Cut(resource, "?")
	return path
}

// Successful matches statuses in [200, 300].
func Successful(src RowSource, i int) bool {
	s, ok := src.Int(FieldStatus, i)
	return ok && s >= 200 && s <= 300
}

// Unsuccessful matches statuses below 200 or above 300. Null statuses match
// neither Successful nor Unsuccessful.
func Unsuccessful(src RowSource, i int) bool {
	s, ok := src.Int(FieldStatus, i)
	return ok && (s < 200 || s > 300)
}

// And combines predicates; nil predicates are ignored.
func And(preds ...Predicate) Predicate {
	var active []Predicate
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(src RowSource, i int) bool {
		for _, p := range active {
			if !p(src, i) {
				return false
			}
		}
		return true
	}
}

// TopNQuery ranks the values of one column.
type TopNQuery struct {
	Field Field
	N     int
	Key   KeyFunc   // defaults to StripQuery for resource, identity otherwise
	Where Predicate // optional row restriction
}

func (q TopNQuery) keyFunc() KeyFunc {
	if q.Key != nil {
		return q.Key
	}
	return defaultKey(q.Field)
}

func defaultKey(f Field) KeyFunc {
	if f == FieldResource {
		return StripQuery
	}
	return nil
}

// DetailQuery ranks Outer, then ranks Inner within each top Outer key.
type DetailQuery struct {
	Outer  Field
	Inner  Field
	OuterN int
	InnerN int
	Where  Predicate
}

// DetailGroup is one outer key with its inner ranking.
type DetailGroup struct {
	Key   string     `json:"key"`
	Count int64      `json:"count"`
	Top   []KeyCount `json:"top"`
}

// Ratio is a count of matching rows over the total row count.
type Ratio struct {
	Matched int64 `json:"matched"`
	Total   int64 `json:"total"`
}

// Value returns Matched/Total, or 0 for an empty table.
func (r Ratio) Value() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Total)
}

// Percent formats the ratio with two decimals, e.g. "33.33%".
func (r Ratio) Percent() string {
	return fmt.Sprintf("%.2f%%", r.Value()*100)
}

// keyAt returns the grouping key of row i; null values have no key.
func keyAt(src RowSource, f Field, key KeyFunc, i int) (string, bool) {
	v, ok := Text(src, f, i)
	if !ok {
		return "", false
	}
	if key != nil {
		v = key(v)
	}
	return v, true
}

// countRows adds every selected row of src to c, tagging positions with batch.
func countRows(src RowSource, batch int, q TopNQuery, c *Counter) {
	key := q.keyFunc()
	for i := 0; i < src.Len(); i++ {
		if q.Where != nil && !q.Where(src, i) {
			continue
		}
		k, ok := keyAt(src, q.Field, key, i)
		if !ok {
			continue
		}
		c.Add(k, Position{Batch: batch, Row: i})
	}
}

// matchRows counts rows selected by where, and those also matching pred.
func matchRows(src RowSource, where, pred Predicate) (matched, total int64) {
	for i := 0; i < src.Len(); i++ {
		if where != nil && !where(src, i) {
			continue
		}
		total++
		if pred == nil || pred(src, i) {
			matched++
		}
	}
	return matched, total
}

// countDetail counts Inner values for rows whose Outer key is in groups.
func countDetail(src RowSource, batch int, q DetailQuery, groups map[string]*Counter) {
	outerKey := defaultKey(q.Outer)
	innerKey := defaultKey(q.Inner)
	for i := 0; i < src.Len(); i++ {
		if q.Where != nil && !q.Where(src, i) {
			continue
		}
		outer, found := keyAt(src, q.Outer, outerKey, i)
		if !found {
			continue
		}
		c, wanted := groups[outer]
		if !wanted {
			continue
		}
		ik, found := keyAt(src, q.Inner, innerKey, i)
		if !found {
			continue
		}
		c.Add(ik, Position{Batch: batch, Row: i})
	}
}

// detailGroups turns the outer ranking and inner counters into results.
func detailGroups(outer []KeyCount, inner map[string]*Counter, innerN int) []DetailGroup {
	groups := make([]DetailGroup, 0, len(outer))
	for _, kc := range outer {
		g := DetailGroup{Key: kc.Key, Count: kc.Count, Top: []KeyCount{}}
		if c, ok := inner[kc.Key]; ok {
			g.Top = c.Top(innerN)
		}
		groups = append(groups, g)
	}
	return groups
}
