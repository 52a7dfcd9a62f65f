package store

import (
	"context"
	"time"

	"github.com/cognicore/reactrank/pkg/reactrank/snapshot"
)

// Store persists the item catalog and the latest session snapshot.
type Store interface {
	Close() error

	// Items
	UpsertItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, bool, error)
	ListItems(ctx context.Context) ([]Item, error)

	// Snapshot replaces the stored counts and reactions wholesale. Items listed
	// in the snapshot are upserted with their tags.
	SaveSnapshot(ctx context.Context, snap snapshot.Snapshot) error
	LoadSnapshot(ctx context.Context) (snapshot.Snapshot, bool, error)
}

// Item is a rankable piece of content and its tag set.
type Item struct {
	ID      string
	Title   string
	URL     string
	Tags    []string
	AddedAt time.Time
}

// Clone returns a copy of the item that shares no slices with it.
func (it Item) Clone() Item {
	out := it
	out.Tags = append([]string(nil), it.Tags...)
	return out
}
