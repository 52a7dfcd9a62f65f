package reactrank

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/config"
	"github.com/cognicore/reactrank/pkg/reactrank/counts"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
	"github.com/cognicore/reactrank/pkg/reactrank/ledger"
	"github.com/cognicore/reactrank/pkg/reactrank/metrics"
	"github.com/cognicore/reactrank/pkg/reactrank/model"
	"github.com/cognicore/reactrank/pkg/reactrank/rank"
	"github.com/cognicore/reactrank/pkg/reactrank/snapshot"
	"github.com/cognicore/reactrank/pkg/reactrank/stats"
	"github.com/cognicore/reactrank/pkg/reactrank/store"
	"github.com/cognicore/reactrank/pkg/reactrank/store/memstore"
)

// ErrDesync is matched by every *DesyncError.
var ErrDesync = errors.New("reaction desync")

// DesyncError reports that the local category of an item disagrees with the
// authoritative remote record. Reconcile corrects it.
type DesyncError struct {
	ItemID string
	Local  string
	Remote string
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("item %s: local category %q, remote %q", e.ItemID, e.Local, e.Remote)
}

// Is makes errors.Is(err, ErrDesync) hold.
func (e *DesyncError) Is(target error) bool { return target == ErrDesync }

// Item is a catalog entry.
type Item = store.Item

// Options configures a Session
type Options struct {
	// Scheme defaults to category.DefaultNames.
	Scheme *category.Scheme
	// Store defaults to an in-memory store.
	Store   store.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Workers bounds parallel tag-weight computation.
	Workers int
	// ExactLimit is the largest sample size tested with the exact binomial
	// scan. Zero uses stats.DefaultExactLimit.
	ExactLimit int64
	Softmax    bool
	// SeenCategory names the tier MarkSeen assigns. Empty disables MarkSeen.
	SeenCategory string
	Overlap      *config.Overlap
}

// OptionsFromConfig maps a validated configuration onto Options.
func OptionsFromConfig(cfg config.Config, st store.Store, logger *zap.Logger, m *metrics.Metrics) (Options, error) {
	scheme, err := cfg.Scheme()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Scheme:       scheme,
		Store:        st,
		Logger:       logger,
		Metrics:      m,
		Workers:      cfg.Workers,
		ExactLimit:   cfg.ExactBinomialLimit,
		Softmax:      cfg.Softmax,
		SeenCategory: cfg.SeenCategory,
		Overlap:      cfg.Overlap,
	}, nil
}

type overlapRule struct {
	first, second, into category.Category
}

// Session owns the ledger, counts, catalog and model of one user. A Session
// is not safe for concurrent use.
type Session struct {
	id      ulid.ULID
	scheme  *category.Scheme
	store   store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	builder *model.Builder
	scorer  *rank.Scorer
	seen    category.Category
	overlap *overlapRule

	ledger *ledger.Ledger
	items  map[string][]string
	model  *model.Model
}

// New creates an empty session.
func New(opts Options) (*Session, error) {
	scheme := opts.Scheme
	if scheme == nil {
		scheme = category.MustScheme(category.DefaultNames())
	}
	st := opts.Store
	if st == nil {
		st = memstore.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.ExactLimit
	if limit == 0 {
		limit = stats.DefaultExactLimit
	}

	s := &Session{
		id:      ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)),
		scheme:  scheme,
		store:   st,
		metrics: opts.Metrics,
		builder: &model.Builder{
			Binomial: stats.Binomial{ExactLimit: limit},
			Workers:  opts.Workers,
		},
		scorer: rank.NewScorer(opts.Softmax),
		seen:   category.Unassigned,
		ledger: ledger.New(counts.New(scheme.Len())),
		items:  make(map[string][]string),
	}
	s.logger = logger.With(zap.String("session", s.id.String()))

	if opts.SeenCategory != "" {
		c, err := scheme.Parse(opts.SeenCategory)
		if err != nil {
			return nil, fmt.Errorf("seen category: %w", err)
		}
		s.seen = c
	}
	if opts.Overlap != nil {
		rule, err := parseOverlap(scheme, opts.Overlap)
		if err != nil {
			return nil, err
		}
		s.overlap = rule
	}

	m, err := s.builder.Build(context.Background(), s.ledger.Counts())
	if err != nil {
		return nil, err
	}
	s.model = m
	return s, nil
}

func parseOverlap(scheme *category.Scheme, o *config.Overlap) (*overlapRule, error) {
	var rule overlapRule
	for _, ref := range []struct {
		name string
		dst  *category.Category
	}{{o.First, &rule.first}, {o.Second, &rule.second}, {o.Into, &rule.into}} {
		c, err := scheme.Parse(ref.name)
		if err != nil {
			return nil, fmt.Errorf("overlap rule: %w", err)
		}
		if c == category.Unassigned {
			return nil, fmt.Errorf("overlap rule names %q: %w", ref.name, internalerr.ErrInvalidInput)
		}
		*ref.dst = c
	}
	return &rule, nil
}

// Open creates a session and loads the catalog and last snapshot from the
// store, then builds the model.
func Open(ctx context.Context, opts Options) (*Session, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		s.items[it.ID] = uniqueStrings(it.Tags)
	}

	snap, found, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if found {
		if err := s.Restore(ctx, snap); err != nil {
			return nil, err
		}
	}

	s.logger.Info("session_opened",
		zap.Int("items", len(s.items)),
		zap.Int("assigned", s.ledger.Len()),
		zap.Int("tags", s.ledger.Counts().UniqueTags()),
		zap.Bool("snapshot", found))
	return s, nil
}

// Close cleanly shuts down the session's store
func (s *Session) Close() error {
	return s.store.Close()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id.String() }

// Scheme returns the session's category scheme.
func (s *Session) Scheme() *category.Scheme { return s.scheme }

// Model returns the current model. Callers must not modify it.
func (s *Session) Model() *model.Model { return s.model }

// Ingest adds items to the catalog. Tags are deduplicated. Re-ingesting an
// item that already has a category moves its counts from the old tag set to
// the new one.
func (s *Session) Ingest(ctx context.Context, items []Item) error {
	var changed []string
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("ingest item without id: %w", internalerr.ErrInvalidInput)
		}
		tags := uniqueStrings(it.Tags)
		it.Tags = tags
		if err := s.store.UpsertItem(ctx, it); err != nil {
			return fmt.Errorf("store item %s: %w", it.ID, err)
		}

		old, existed := s.items[it.ID]
		s.items[it.ID] = tags

		c := s.ledger.CategoryOf(it.ID)
		if !existed || c == category.Unassigned || slices.Equal(old, tags) {
			continue
		}
		if err := s.ledger.Counts().ApplyDelta(c, old, -1); err != nil {
			return err
		}
		if err := s.ledger.Counts().ApplyDelta(c, tags, +1); err != nil {
			return err
		}
		changed = append(changed, old...)
		changed = append(changed, tags...)
		s.logger.Debug("item_retagged",
			zap.String("item_id", it.ID),
			zap.Int("old_tags", len(old)),
			zap.Int("new_tags", len(tags)))
	}

	s.metrics.RecordIngest(len(items))
	if len(changed) == 0 {
		return nil
	}
	return s.rebuild(ctx, changed)
}

// CategoryOf returns the item's category name, or "unassigned".
func (s *Session) CategoryOf(id string) string {
	return s.scheme.Name(s.ledger.CategoryOf(id))
}

// React records the user's reaction to an item. name may be
// category.UnassignedName to clear it. It reports whether anything changed.
func (s *Session) React(ctx context.Context, id, name string) (bool, error) {
	c, err := s.scheme.Parse(name)
	if err != nil {
		return false, err
	}
	return s.assign(ctx, id, c)
}

// Clear removes the item's reaction.
func (s *Session) Clear(ctx context.Context, id string) (bool, error) {
	return s.assign(ctx, id, category.Unassigned)
}

// MarkSeen gives an unreacted item the configured seen category. Items that
// already have a category are left alone.
func (s *Session) MarkSeen(ctx context.Context, id string) (bool, error) {
	if s.seen == category.Unassigned {
		return false, fmt.Errorf("no seen category configured: %w", internalerr.ErrInvalidInput)
	}
	if s.ledger.CategoryOf(id) != category.Unassigned {
		return false, nil
	}
	return s.assign(ctx, id, s.seen)
}

// Verify compares the local category of an item with the remote record and
// returns a *DesyncError if they differ.
func (s *Session) Verify(id, remote string) error {
	c, err := s.scheme.Parse(remote)
	if err != nil {
		return err
	}
	local := s.ledger.CategoryOf(id)
	if local == c {
		return nil
	}
	return &DesyncError{ItemID: id, Local: s.scheme.Name(local), Remote: s.scheme.Name(c)}
}

// Reconcile sets one item to the authoritative remote category. No other
// item's counts change.
func (s *Session) Reconcile(ctx context.Context, id, remote string) (bool, error) {
	c, err := s.scheme.Parse(remote)
	if err != nil {
		return false, err
	}
	local := s.ledger.CategoryOf(id)
	changed, err := s.assign(ctx, id, c)
	if err != nil {
		return false, err
	}
	if changed {
		s.metrics.RecordReconciliation()
		s.logger.Warn("reaction_reconciled",
			zap.String("item_id", id),
			zap.String("local", s.scheme.Name(local)),
			zap.String("remote", s.scheme.Name(c)))
	}
	return changed, nil
}

func (s *Session) assign(ctx context.Context, id string, c category.Category) (bool, error) {
	tags, ok := s.items[id]
	if !ok {
		return false, fmt.Errorf("item %s: %w", id, internalerr.ErrNotFound)
	}
	changed, err := s.ledger.Assign(id, tags, c)
	if err != nil || !changed {
		return false, err
	}
	s.metrics.RecordAssignment(s.scheme.Name(c))
	s.logger.Debug("reaction_assigned",
		zap.String("item_id", id),
		zap.String("category", s.scheme.Name(c)))
	return true, s.rebuild(ctx, tags)
}

// rebuild refreshes priors, combine weights and the weights of changed tags.
func (s *Session) rebuild(ctx context.Context, changed []string) error {
	start := time.Now()
	tags := uniqueStrings(changed)
	m, err := s.builder.Rebuild(ctx, s.model, s.ledger.Counts(), tags)
	if err != nil {
		return fmt.Errorf("rebuild model: %w", err)
	}
	s.model = m
	s.metrics.RecordRebuild(len(tags), time.Since(start))
	return nil
}

// Snapshot captures counts, ledger and catalog tags.
func (s *Session) Snapshot() snapshot.Snapshot {
	return snapshot.Capture(s.scheme, s.ledger, s.items)
}

// Restore replaces counts and ledger with the snapshot's, merges its item
// tags into the catalog and rebuilds the model from scratch. Unknown
// categories in the snapshot are logged and skipped.
func (s *Session) Restore(ctx context.Context, snap snapshot.Snapshot) error {
	state, err := snap.Restore(s.scheme)
	if err != nil {
		return err
	}
	if len(state.Skipped) > 0 {
		s.logger.Warn("snapshot_categories_skipped", zap.Strings("categories", state.Skipped))
	}
	if len(state.Duplicates) > 0 {
		s.logger.Warn("snapshot_duplicate_ids", zap.Strings("item_ids", state.Duplicates))
	}

	for id, tags := range state.Items {
		s.items[id] = uniqueStrings(tags)
	}
	s.ledger = state.Ledger

	start := time.Now()
	m, err := s.builder.Build(ctx, s.ledger.Counts())
	if err != nil {
		return fmt.Errorf("rebuild model: %w", err)
	}
	s.model = m
	s.metrics.RecordRebuild(len(m.TagWeights), time.Since(start))

	s.logger.Info("snapshot_restored",
		zap.Int("assigned", s.ledger.Len()),
		zap.Int("tags", len(m.TagWeights)))
	return nil
}

// Save persists the current snapshot to the store.
func (s *Session) Save(ctx context.Context) error {
	if err := s.store.SaveSnapshot(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("snapshot_saved", zap.Int("assigned", s.ledger.Len()))
	return nil
}

func uniqueStrings(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, val := range in {
		if val == "" {
			continue
		}
		if _, ok := set[val]; ok {
			continue
		}
		set[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
