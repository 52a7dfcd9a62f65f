package ledger

import (
	"fmt"
	"sort"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/counts"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
)

// Ledger records the exclusive category of every reacted item and keeps the
// counts store in step with it. Assign and Unassign are the only paths that
// change counts, always as matched -1/+1 pairs.
type Ledger struct {
	counts   *counts.Store
	assigned map[string]category.Category
	members  []map[string]struct{}
}

// New creates an empty ledger driving store.
func New(store *counts.Store) *Ledger {
	members := make([]map[string]struct{}, store.K())
	for c := range members {
		members[c] = make(map[string]struct{})
	}
	return &Ledger{
		counts:   store,
		assigned: make(map[string]category.Category),
		members:  members,
	}
}

// Counts returns the store the ledger drives.
func (l *Ledger) Counts() *counts.Store { return l.counts }

// CategoryOf returns the item's category, or category.Unassigned.
func (l *Ledger) CategoryOf(id string) category.Category {
	if c, ok := l.assigned[id]; ok {
		return c
	}
	return category.Unassigned
}

// Assign moves the item to c, undoing its previous category first. Assigning
// the current category is a no-op and reports false. Assigning
// category.Unassigned is the same as Unassign. tags must be the item's tags.
func (l *Ledger) Assign(id string, tags []string, c category.Category) (bool, error) {
	if c == category.Unassigned {
		return l.Unassign(id, tags)
	}
	if int(c) < 0 || int(c) >= len(l.members) {
		return false, fmt.Errorf("assign %s to category %d: %w", id, int(c), internalerr.ErrUnknownCategory)
	}
	if id == "" {
		return false, fmt.Errorf("assign empty item id: %w", internalerr.ErrInvalidInput)
	}

	old := l.CategoryOf(id)
	if old == c {
		return false, nil
	}
	if old != category.Unassigned {
		if err := l.counts.ApplyDelta(old, tags, -1); err != nil {
			return false, err
		}
		delete(l.members[old], id)
	}
	if err := l.counts.ApplyDelta(c, tags, +1); err != nil {
		return false, err
	}
	l.members[c][id] = struct{}{}
	l.assigned[id] = c
	return true, nil
}

// Unassign removes the item's category. It reports false if the item had none.
func (l *Ledger) Unassign(id string, tags []string) (bool, error) {
	old, ok := l.assigned[id]
	if !ok {
		return false, nil
	}
	if err := l.counts.ApplyDelta(old, tags, -1); err != nil {
		return false, err
	}
	delete(l.members[old], id)
	delete(l.assigned, id)
	return true, nil
}

// Place records id under c without touching counts. It is used when restoring
// a ledger whose counts are restored separately.
func (l *Ledger) Place(id string, c category.Category) error {
	if int(c) < 0 || int(c) >= len(l.members) {
		return fmt.Errorf("place %s in category %d: %w", id, int(c), internalerr.ErrUnknownCategory)
	}
	if old, ok := l.assigned[id]; ok {
		delete(l.members[old], id)
	}
	l.members[c][id] = struct{}{}
	l.assigned[id] = c
	return nil
}

// Members returns the ids assigned to c in lexical order.
func (l *Ledger) Members(c category.Category) []string {
	if int(c) < 0 || int(c) >= len(l.members) {
		return nil
	}
	out := make([]string, 0, len(l.members[c]))
	for id := range l.members[c] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of assigned items.
func (l *Ledger) Len() int { return len(l.assigned) }

// SplitOverlap partitions two id lists into those present in both and those
// unique to each. Inputs are not modified; output order follows the inputs.
func SplitOverlap(first, second []string) (both, firstOnly, secondOnly []string) {
	inFirst := make(map[string]struct{}, len(first))
	for _, id := range first {
		inFirst[id] = struct{}{}
	}
	inSecond := make(map[string]struct{}, len(second))
	for _, id := range second {
		inSecond[id] = struct{}{}
	}

	for _, id := range first {
		if _, ok := inSecond[id]; ok {
			both = append(both, id)
		} else {
			firstOnly = append(firstOnly, id)
		}
	}
	for _, id := range second {
		if _, ok := inFirst[id]; !ok {
			secondOnly = append(secondOnly, id)
		}
	}
	return both, firstOnly, secondOnly
}
