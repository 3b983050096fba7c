package aggregator

import "sort"

// Aggregator collects feed items and serves filtered, sorted views of them.
type Aggregator struct {
	items []FeedItem
	seen  map[string]bool
}

// New creates a new Aggregator instance.
func New() *Aggregator {
	return &Aggregator{
		items: make([]FeedItem, 0),
		seen:  make(map[string]bool),
	}
}

// AddItems adds feed items. An ID already present is ignored.
func (a *Aggregator) AddItems(items []FeedItem) {
	for _, item := range items {
		if a.seen[item.ID] {
			continue
		}
		a.seen[item.ID] = true
		a.items = append(a.items, item)
	}
}

// GetFeed returns the items matching opts, newest first.
func (a *Aggregator) GetFeed(opts FeedOptions) []FeedItem {
	return Filter(a.items, opts)
}

// Filter returns the items matching opts, newest first. Equal timestamps
// keep their input order. The input is not modified.
func Filter(items []FeedItem, opts FeedOptions) []FeedItem {
	out := make([]FeedItem, 0, len(items))
	for _, item := range items {
		if !opts.Since.IsZero() && item.PublishedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && item.PublishedAt.After(opts.Until) {
			continue
		}
		if opts.Exclude != nil && opts.Exclude(item.ID) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
