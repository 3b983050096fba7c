package aggregator

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gauthierbraillon/feedtriage/internal/clock"
	"github.com/gauthierbraillon/feedtriage/internal/state"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

const (
	// DefaultWindow is how far back the feed reaches.
	DefaultWindow = 30 * 24 * time.Hour
	// MaxVideosPerPlaylist is how many recent uploads are read per channel.
	MaxVideosPerPlaylist = 50
	defaultConcurrency   = 8
)

// Source is the part of the platform client the builder reads from.
type Source interface {
	SubscriptionChannelIDs(ctx context.Context) ([]string, error)
	UploadsPlaylists(ctx context.Context, channelIDs []string) (map[string]string, error)
	PlaylistItems(ctx context.Context, playlistID string, limit int) ([]youtube.PlaylistItem, error)
}

// Curator is the state the builder consults and enriches.
type Curator interface {
	ChannelPlaylist(channelID string) (string, bool)
	CacheChannelPlaylist(channelID, playlistID string) bool
	CacheVideoMetadata(v state.Video) bool
	IsSkipped(videoID string) bool
}

// Builder assembles the triage feed.
type Builder struct {
	source      Source
	curator     Curator
	clock       clock.Clock
	logger      *slog.Logger
	window      time.Duration
	perPlaylist int
	concurrency int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWindow sets how old a video may be and still show up.
func WithWindow(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithConcurrency bounds the number of playlists fetched at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithClock sets the clock the window is measured against.
func WithClock(c clock.Clock) BuilderOption {
	return func(b *Builder) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a feed builder.
func NewBuilder(source Source, curator Curator, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:      source,
		curator:     curator,
		clock:       clock.Real{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		window:      DefaultWindow,
		perPlaylist: MaxVideosPerPlaylist,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns up to limit untriaged videos, newest first. limit <= 0 means
// no limit. Playlists that fail to load are logged and counted, not fatal.
func (b *Builder) Build(ctx context.Context, limit int) (*Feed, error) {
	channels, err := b.source.SubscriptionChannelIDs(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := b.uploadsPlaylists(ctx, channels)
	if err != nil {
		return nil, err
	}

	feed := &Feed{Playlists: len(playlists)}
	var mu sync.Mutex
	var collected []FeedItem

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, playlistID := range playlists {
		g.Go(func() error {
			items, err := b.source.PlaylistItems(gctx, playlistID, b.perPlaylist)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("Skipping playlist", "playlist", playlistID, "error", err)
				mu.Lock()
				feed.Failed++
				mu.Unlock()
				return nil
			}

			converted := make([]FeedItem, 0, len(items))
			for _, item := range items {
				if item.VideoID == "" {
					continue
				}
				converted = append(converted, FromPlaylistItem(item))
			}
			mu.Lock()
			collected = append(collected, converted...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := New()
	agg.AddItems(collected)
	for _, item := range agg.items {
		b.curator.CacheVideoMetadata(item.Video())
	}

	feed.Items = agg.GetFeed(FeedOptions{
		Limit:   limit,
		Since:   b.clock.Now().Add(-b.window),
		Exclude: b.curator.IsSkipped,
	})
	return feed, nil
}

// uploadsPlaylists resolves each channel to its uploads playlist, using the
// cached mapping where present and caching what had to be fetched. The
// result is sorted for a stable fetch order.
func (b *Builder) uploadsPlaylists(ctx context.Context, channels []string) ([]string, error) {
	var playlists, missing []string
	for _, ch := range channels {
		if pl, ok := b.curator.ChannelPlaylist(ch); ok && pl != "" {
			playlists = append(playlists, pl)
			continue
		}
		missing = append(missing, ch)
	}

	if len(missing) > 0 {
		fetched, err := b.source.UploadsPlaylists(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, ch := range missing {
			pl, ok := fetched[ch]
			if !ok {
				b.logger.Warn("Channel has no uploads playlist", "channel", ch)
				continue
			}
			b.curator.CacheChannelPlaylist(ch, pl)
			playlists = append(playlists, pl)
		}
		b.logger.Debug("Resolved uploads playlists", "cached", len(channels)-len(missing), "fetched", len(fetched))
	}

	sort.Strings(playlists)
	return playlists, nil
}
