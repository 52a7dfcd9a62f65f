package snapshot

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/counts"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
	"github.com/cognicore/reactrank/pkg/reactrank/ledger"
)

// Version is written into every snapshot produced by this package.
const Version = 2

// Snapshot is the persisted form of a session:
//
//	{
//	  "version": 2,
//	  "counts":  {"totals": {"like": 3}, "tags": {"fluffy": {"like": 2}}},
//	  "reacted": {"like": ["17", "42"]},
//	  "items":   {"17": ["fluffy", "cat"]}
//	}
//
// Categories are keyed by name. Older snapshots that store positional arrays
// ("totals": [0, 1, 3, 0, 0]) or numeric ids are accepted on load. Absent fields
// decode as empty.
type Snapshot struct {
	Version int                 `json:"version,omitempty"`
	Counts  Counts              `json:"counts"`
	Reacted map[string]IDList   `json:"reacted"`
	Items   map[string][]string `json:"items,omitempty"`
}

// Counts mirrors counts.Store.
type Counts struct {
	Totals Tally            `json:"totals"`
	Tags   map[string]Tally `json:"tags"`
}

// LegacyOrder is the category layout of positional-array snapshots.
var LegacyOrder = []string{"favlike", "fav", "like", "dislike", "none"}

// Tally maps a category key to a count. Keys are category names, or decimal
// positions for array elements beyond LegacyOrder.
type Tally map[string]int64

// UnmarshalJSON accepts an object or a positional array laid out as
// LegacyOrder. Anything else decodes as an empty tally.
func (t *Tally) UnmarshalJSON(data []byte) error {
	out := make(Tally)

	var byName map[string]int64
	if err := json.Unmarshal(data, &byName); err == nil {
		for k, v := range byName {
			out[k] = v
		}
		*t = out
		return nil
	}

	var positional []int64
	if err := json.Unmarshal(data, &positional); err == nil {
		for i, v := range positional {
			if i < len(LegacyOrder) {
				out[LegacyOrder[i]] += v
			} else {
				out[strconv.Itoa(i)] += v
			}
		}
	}
	*t = out
	return nil
}

// Vector resolves the tally against scheme. Keys that name no category are
// returned in unknown, sorted.
func (t Tally) Vector(scheme *category.Scheme) (vec counts.Vector, unknown []string) {
	vec = make(counts.Vector, scheme.Len())
	for key, n := range t {
		c, ok := resolve(scheme, key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		vec[c] += n
	}
	sort.Strings(unknown)
	return vec, unknown
}

// IDList is a list of item ids. Numeric ids are accepted and stored as text.
type IDList []string

// UnmarshalJSON accepts strings and numbers, skipping other elements.
func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make(IDList, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			out = append(out, id)
		case float64:
			out = append(out, strconv.FormatFloat(id, 'f', -1, 64))
		case json.Number:
			out = append(out, id.String())
		}
	}
	*l = out
	return nil
}

func resolve(scheme *category.Scheme, key string) (category.Category, bool) {
	if c, ok := scheme.Lookup(key); ok && c != category.Unassigned {
		return c, true
	}
	if i, err := strconv.Atoi(key); err == nil && scheme.Valid(category.Category(i)) {
		return category.Category(i), true
	}
	return category.Unassigned, false
}

// Capture builds a snapshot of the counts, ledger and item catalog.
func Capture(scheme *category.Scheme, l *ledger.Ledger, items map[string][]string) Snapshot {
	store := l.Counts()
	snap := Snapshot{
		Version: Version,
		Counts: Counts{
			Totals: tally(scheme, store.Totals()),
			Tags:   make(map[string]Tally, store.UniqueTags()),
		},
		Reacted: make(map[string]IDList, scheme.Len()),
	}
	for _, tag := range store.Tags() {
		snap.Counts.Tags[tag] = tally(scheme, store.Tag(tag))
	}
	for _, c := range scheme.All() {
		snap.Reacted[scheme.Name(c)] = IDList(l.Members(c))
	}
	if len(items) > 0 {
		snap.Items = make(map[string][]string, len(items))
		for id, tags := range items {
			cp := make([]string, len(tags))
			copy(cp, tags)
			snap.Items[id] = cp
		}
	}
	return snap
}

func tally(scheme *category.Scheme, vec counts.Vector) Tally {
	t := make(Tally, len(vec))
	for c, n := range vec {
		if n != 0 {
			t[scheme.Name(category.Category(c))] = n
		}
	}
	return t
}

// State is a snapshot resolved against a category scheme.
type State struct {
	Ledger *ledger.Ledger
	Items  map[string][]string
	// Skipped lists category keys present in the snapshot but absent from the
	// scheme. Their counts and ids were dropped.
	Skipped []string
	// Duplicates lists ids listed under more than one category. Each was
	// placed in the highest of them.
	Duplicates []string
}

// Restore rebuilds counts and ledger from the snapshot. Unknown category keys
// are skipped and reported, never fatal. Categories are placed lowest first,
// so an id listed under several ends in the highest.
func (s Snapshot) Restore(scheme *category.Scheme) (*State, error) {
	store := counts.New(scheme.Len())
	skipped := make(map[string]struct{})

	totals, unknown := s.Counts.Totals.Vector(scheme)
	store.SetTotals(totals)
	markSkipped(skipped, unknown)

	for tag, t := range s.Counts.Tags {
		vec, unknown := t.Vector(scheme)
		markSkipped(skipped, unknown)
		store.SetTag(tag, vec)
	}

	type placement struct {
		key string
		c   category.Category
	}
	order := make([]placement, 0, len(s.Reacted))
	for key := range s.Reacted {
		c, ok := resolve(scheme, key)
		if !ok {
			skipped[key] = struct{}{}
			continue
		}
		order = append(order, placement{key: key, c: c})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].c != order[j].c {
			return order[i].c < order[j].c
		}
		return order[i].key < order[j].key
	})

	l := ledger.New(store)
	placed := make(map[string]category.Category)
	dups := make(map[string]struct{})
	for _, p := range order {
		for _, id := range s.Reacted[p.key] {
			if prev, ok := placed[id]; ok && prev != p.c {
				dups[id] = struct{}{}
			}
			placed[id] = p.c
			if err := l.Place(id, p.c); err != nil {
				return nil, fmt.Errorf("restore %s: %w", id, err)
			}
		}
	}

	items := make(map[string][]string, len(s.Items))
	for id, tags := range s.Items {
		cp := make([]string, len(tags))
		copy(cp, tags)
		items[id] = cp
	}

	state := &State{Ledger: l, Items: items}
	for key := range skipped {
		state.Skipped = append(state.Skipped, key)
	}
	sort.Strings(state.Skipped)
	for id := range dups {
		state.Duplicates = append(state.Duplicates, id)
	}
	sort.Strings(state.Duplicates)
	return state, nil
}

func markSkipped(set map[string]struct{}, keys []string) {
	for _, k := range keys {
		set[k] = struct{}{}
	}
}

// Encode writes the snapshot as indented JSON.
func Encode(w io.Writer, s Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Decode reads a snapshot. Only a document that is not JSON at all is an error.
func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %v: %w", err, internalerr.ErrInvalidInput)
	}
	return s, nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version: s.Version,
		Counts: Counts{
			Totals: s.Counts.Totals.clone(),
			Tags:   make(map[string]Tally, len(s.Counts.Tags)),
		},
		Reacted: make(map[string]IDList, len(s.Reacted)),
	}
	for tag, t := range s.Counts.Tags {
		out.Counts.Tags[tag] = t.clone()
	}
	for key, ids := range s.Reacted {
		out.Reacted[key] = append(IDList(nil), ids...)
	}
	if s.Items != nil {
		out.Items = make(map[string][]string, len(s.Items))
		for id, tags := range s.Items {
			out.Items[id] = append([]string(nil), tags...)
		}
	}
	return out
}

func (t Tally) clone() Tally {
	out := make(Tally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
