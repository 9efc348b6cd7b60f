// Package topics aggregates tags and recency across every enabled
// collection into a topic index, and renders it as a Markdown report.
package topics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/models"
)

// MaxRecent is the default cap on Index.Recent.
const MaxRecent = 20

// TopicEntry is one tag with the number of documents carrying it and the
// collections those documents came from.
type TopicEntry struct {
	Topic       string   `json:"topic"`
	Count       int      `json:"count"`
	Collections []string `json:"collections"`
}

// CollectionStats summarizes one scanned collection.
type CollectionStats struct {
	Collection string `json:"collection"`
	Icon       string `json:"icon,omitempty"`
	Documents  int    `json:"documents"`
	TotalSize  int64  `json:"total_size"`
}

// Index is the result of one Build call.
type Index struct {
	Topics      []TopicEntry       `json:"topics"`
	Recent      []*models.Document `json:"recent"`
	Stats       []CollectionStats  `json:"collections"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Topic returns the entry for topic, if present.
func (idx *Index) Topic(topic string) (TopicEntry, bool) {
	for _, e := range idx.Topics {
		if e.Topic == topic {
			return e, true
		}
	}
	return TopicEntry{}, false
}

// Excluded identifies a document left out of aggregation.
type Excluded struct {
	Collection string
	Path       string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithMaxRecent overrides the recent-documents cap. n <= 0 keeps MaxRecent.
func WithMaxRecent(n int) Option {
	return func(i *Indexer) {
		if n > 0 {
			i.maxRecent = n
		}
	}
}

// WithExclude leaves the given document out of every aggregate. The
// application uses it for the generated report itself.
func WithExclude(collectionName, path string) Option {
	return func(i *Indexer) {
		i.exclude = append(i.exclude, Excluded{Collection: collectionName, Path: path})
	}
}

// WithClock replaces time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(i *Indexer) {
		i.now = now
	}
}

// Indexer builds topic indexes from a registry.
type Indexer struct {
	registry  *collection.Registry
	loader    *collection.Loader
	logger    *slog.Logger
	maxRecent int
	exclude   []Excluded
	now       func() time.Time
}

// NewIndexer creates an Indexer. A nil logger uses slog.Default().
func NewIndexer(registry *collection.Registry, loader *collection.Loader, logger *slog.Logger, opts ...Option) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Indexer{
		registry:  registry,
		loader:    loader,
		logger:    logger,
		maxRecent: MaxRecent,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Build scans every enabled, reachable collection and aggregates it.
// Unreachable collections are absent from every output and reported as
// warnings; Build itself never fails.
func (i *Indexer) Build(ctx context.Context) (*Index, []models.Warning) {
	var (
		batches  []collection.Batch
		warnings []models.Warning
	)
	for _, c := range i.registry.Enabled() {
		if ctx.Err() != nil {
			break
		}
		bs, ws := i.registry.Gather(i.loader, []models.Collection{c})
		batches = append(batches, bs...)
		warnings = append(warnings, ws...)
	}

	idx := Aggregate(i.filter(batches), i.maxRecent)
	idx.GeneratedAt = i.now()

	i.logger.Info("topic index built",
		slog.Int("collections", len(idx.Stats)),
		slog.Int("topics", len(idx.Topics)),
		slog.Int("warnings", len(warnings)))
	return idx, warnings
}

func (i *Indexer) filter(batches []collection.Batch) []collection.Batch {
	if len(i.exclude) == 0 {
		return batches
	}
	out := make([]collection.Batch, len(batches))
	for n, b := range batches {
		docs := make([]*models.Document, 0, len(b.Documents))
		for _, d := range b.Documents {
			if !i.excluded(d) {
				docs = append(docs, d)
			}
		}
		out[n] = collection.Batch{Collection: b.Collection, Documents: docs}
	}
	return out
}

func (i *Indexer) excluded(d *models.Document) bool {
	for _, e := range i.exclude {
		if e.Collection == d.Collection && e.Path == d.Path {
			return true
		}
	}
	return false
}

// Aggregate computes topics, recent documents and per-collection stats
// from already loaded batches.
func Aggregate(batches []collection.Batch, maxRecent int) *Index {
	type acc struct {
		count int
		from  map[string]struct{}
	}
	byTopic := make(map[string]*acc)
	idx := &Index{Topics: []TopicEntry{}, Stats: make([]CollectionStats, 0, len(batches))}

	for _, b := range batches {
		st := CollectionStats{Collection: b.Collection.Name, Icon: b.Collection.Icon}
		for _, d := range b.Documents {
			st.Documents++
			st.TotalSize += d.Size
			for _, tag := range d.Tags {
				a, ok := byTopic[tag]
				if !ok {
					a = &acc{from: make(map[string]struct{})}
					byTopic[tag] = a
				}
				a.count++
				a.from[d.Collection] = struct{}{}
			}
		}
		idx.Stats = append(idx.Stats, st)
	}

	for topic, a := range byTopic {
		from := make([]string, 0, len(a.from))
		for name := range a.from {
			from = append(from, name)
		}
		sort.Strings(from)
		idx.Topics = append(idx.Topics, TopicEntry{Topic: topic, Count: a.count, Collections: from})
	}
	sort.Slice(idx.Topics, func(x, y int) bool {
		if idx.Topics[x].Count != idx.Topics[y].Count {
			return idx.Topics[x].Count > idx.Topics[y].Count
		}
		return idx.Topics[x].Topic < idx.Topics[y].Topic
	})

	recent := collection.Flatten(batches)
	models.SortByModTime(recent)
	if maxRecent > 0 && len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}
	idx.Recent = recent
	return idx
}
