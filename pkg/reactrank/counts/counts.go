package counts

import (
	"fmt"
	"sort"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
)

// Vector holds one count per category, indexed positionally.
type Vector []int64

// Sum returns the total over all categories, in ascending category order.
func (v Vector) Sum() int64 {
	var total int64
	for _, n := range v {
		total += n
	}
	return total
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Store maintains per-category totals and per-tag per-category counts of the
// items currently assigned in the ledger.
type Store struct {
	k      int
	totals Vector
	perTag map[string]Vector
}

// New creates an empty store for k categories.
func New(k int) *Store {
	return &Store{
		k:      k,
		totals: make(Vector, k),
		perTag: make(map[string]Vector),
	}
}

// K returns the number of categories.
func (s *Store) K() int { return s.k }

// ApplyDelta adds sign (+1 or -1) to totals[c] and to perTag[tag][c] for every
// tag. Callers are expected to pair every -1 with an earlier +1; the store does
// not guard against negative counts.
func (s *Store) ApplyDelta(c category.Category, tags []string, sign int) error {
	if c < 0 || int(c) >= s.k {
		return fmt.Errorf("apply delta to category %d: %w", int(c), internalerr.ErrUnknownCategory)
	}
	if sign != 1 && sign != -1 {
		return fmt.Errorf("apply delta with sign %d: %w", sign, internalerr.ErrInvalidInput)
	}

	delta := int64(sign)
	s.totals[c] += delta
	for _, tag := range tags {
		vec, ok := s.perTag[tag]
		if !ok {
			vec = make(Vector, s.k)
			s.perTag[tag] = vec
		}
		vec[c] += delta
	}
	return nil
}

// Totals returns a copy of the per-category totals.
func (s *Store) Totals() Vector {
	return s.totals.Clone()
}

// Tag returns a copy of the tag's counts, or a zero vector for an unseen tag.
func (s *Store) Tag(tag string) Vector {
	if vec, ok := s.perTag[tag]; ok {
		return vec.Clone()
	}
	return make(Vector, s.k)
}

// HasTag reports whether the tag has ever been counted.
func (s *Store) HasTag(tag string) bool {
	_, ok := s.perTag[tag]
	return ok
}

// Tags returns every counted tag in lexical order.
func (s *Store) Tags() []string {
	out := make([]string, 0, len(s.perTag))
	for tag := range s.perTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// UniqueTags returns the number of counted tags.
func (s *Store) UniqueTags() int {
	return len(s.perTag)
}

// SetTotals overwrites the totals. Used when restoring a snapshot.
func (s *Store) SetTotals(v Vector) {
	s.totals = make(Vector, s.k)
	copy(s.totals, v)
}

// SetTag overwrites one tag's counts. Used when restoring a snapshot.
func (s *Store) SetTag(tag string, v Vector) {
	vec := make(Vector, s.k)
	copy(vec, v)
	s.perTag[tag] = vec
}
