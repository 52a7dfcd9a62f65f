package category

import (
	"fmt"
	"strings"

	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
)

// Category is the positional index of a reaction tier within a Scheme.
// Tiers are ordered from least to most preferred.
type Category int

// Unassigned marks an item that has no tier in the ledger.
const Unassigned Category = -1

// UnassignedName is the display name of Unassigned.
const UnassignedName = "unassigned"

// DefaultNames is the tier order used when no configuration overrides it.
func DefaultNames() []string {
	return []string{"dislike", "none", "like", "fav", "favlike"}
}

// Scheme is a fixed, ordered enumeration of K tiers for one session.
type Scheme struct {
	names []string
	index map[string]Category
}

// NewScheme builds a scheme from tier names, lowest tier first.
func NewScheme(names []string) (*Scheme, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty category scheme: %w", internalerr.ErrInvalidInput)
	}
	s := &Scheme{
		names: make([]string, len(names)),
		index: make(map[string]Category, len(names)),
	}
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || name == UnassignedName {
			return nil, fmt.Errorf("category %d: invalid name %q: %w", i, raw, internalerr.ErrInvalidInput)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("category %q listed twice: %w", name, internalerr.ErrInvalidInput)
		}
		s.names[i] = name
		s.index[name] = Category(i)
	}
	return s, nil
}

// MustScheme is NewScheme that panics on error. Intended for tests and constants.
func MustScheme(names []string) *Scheme {
	s, err := NewScheme(names)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns K, the number of tiers.
func (s *Scheme) Len() int { return len(s.names) }

// Valid reports whether c is a tier of this scheme.
func (s *Scheme) Valid(c Category) bool {
	return c >= 0 && int(c) < len(s.names)
}

// Name returns the tier name, or UnassignedName for Unassigned.
func (s *Scheme) Name(c Category) string {
	if c == Unassigned {
		return UnassignedName
	}
	if !s.Valid(c) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return s.names[c]
}

// Lookup resolves a tier by name. UnassignedName resolves to Unassigned.
func (s *Scheme) Lookup(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	if name == UnassignedName {
		return Unassigned, true
	}
	c, ok := s.index[name]
	return c, ok
}

// Parse is Lookup returning ErrUnknownCategory for names outside the scheme.
func (s *Scheme) Parse(name string) (Category, error) {
	c, ok := s.Lookup(name)
	if !ok {
		return Unassigned, fmt.Errorf("%q: %w", name, internalerr.ErrUnknownCategory)
	}
	return c, nil
}

// Names returns a copy of the tier names in order.
func (s *Scheme) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// All returns every tier in ascending order.
func (s *Scheme) All() []Category {
	out := make([]Category, len(s.names))
	for i := range out {
		out[i] = Category(i)
	}
	return out
}
