package engine

import (
	"sort"
)

// Position locates a row in append order: batch index, then row within the batch.
type Position struct {
	Batch int
	Row   int
}

// Before reports whether p precedes o in append order.
func (p Position) Before(o Position) bool {
	if p.Batch != o.Batch {
		return p.Batch < o.Batch
	}
	return p.Row < o.Row
}

// KeyCount is one ranked entry of a top-N result.
type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type keyStat struct {
	count int64
	first Position
}

// Counter is a frequency map that remembers where each key was first seen.
// Partial counters built per batch merge into the same result regardless of
// merge order.
type Counter struct {
	stats map[string]*keyStat
}

func NewCounter() *Counter {
	return &Counter{stats: make(map[string]*keyStat)}
}

// Add counts one occurrence of key at pos.
func (c *Counter) Add(key string, pos Position) {
	if st, ok := c.stats[key]; ok {
		st.count++
		if pos.Before(st.first) {
			st.first = pos
		}
		return
	}
	c.stats[key] = &keyStat{count: 1, first: pos}
}

// Merge sums counts per key and keeps the earliest first occurrence.
func (c *Counter) Merge(o *Counter) {
	for key, ost := range o.stats {
		st, ok := c.stats[key]
		if !ok {
			c.stats[key] = &keyStat{count: ost.count, first: ost.first}
			continue
		}
		st.count += ost.count
		if ost.first.Before(st.first) {
			st.first = ost.first
		}
	}
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.stats)
}

// Count returns the count for key.
func (c *Counter) Count(key string) int64 {
	if st, ok := c.stats[key]; ok {
		return st.count
	}
	return 0
}

// Top returns the n most frequent keys, highest count first; equal counts
// keep first-occurrence order. n <= 0 returns every key.
func (c *Counter) Top(n int) []KeyCount {
	type ranked struct {
		key string
		*keyStat
	}
	all := make([]ranked, 0, len(c.stats))
	for k, st := range c.stats {
		all = append(all, ranked{key: k, keyStat: st})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].first.Before(all[j].first)
	})

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	result := make([]KeyCount, len(all))
	for i, r := range all {
		result[i] = KeyCount{Key: r.key, Count: r.count}
	}
	return result
}
