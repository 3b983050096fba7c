// Package session owns one user's curation state for the lifetime of a run.
//
// A Session loads the cached and remote copies of the state, merges them,
// applies mutations and persists them through a Coalescer so that bursts of
// edits become a single whole-document write.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gauthierbraillon/feedtriage/internal/cache"
	"github.com/gauthierbraillon/feedtriage/internal/clock"
	"github.com/gauthierbraillon/feedtriage/internal/state"
	"github.com/gauthierbraillon/feedtriage/internal/store"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

// CacheKey is the local cache key the state snapshot is stored under.
const CacheKey = "state"

var (
	// ErrLoad wraps failures to fetch the remote state during Load. The
	// session stays usable with its local state.
	ErrLoad = errors.New("failed to load remote state")
	// ErrNoWatchLater is returned when no watch-later playlist is configured.
	ErrNoWatchLater = errors.New("no watch-later playlist configured")
	// ErrRemoteNotMerged is returned by a save attempted before the remote
	// document could be merged.
	ErrRemoteNotMerged = errors.New("remote state not merged yet")
)

// Platform is the subset of the video platform a session talks to.
type Platform interface {
	OwnedPlaylists(ctx context.Context) ([]youtube.Playlist, error)
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) (string, error)
	DeletePlaylistItem(ctx context.Context, playlistItemID string) error
}

// Deps are the collaborators of a Session. Cache and Platform may be nil.
type Deps struct {
	Store    store.DocumentStore
	Cache    cache.Cache
	Platform Platform
	Logger   *slog.Logger
	Clock    clock.Clock
}

// Option configures a Session.
type Option func(*CoalescerConfig)

// WithDebounce sets how long a save request waits for further requests.
func WithDebounce(d time.Duration) Option {
	return func(c *CoalescerConfig) { c.Debounce = d }
}

// WithBusyBackoff sets the delay before retrying while a write is in flight.
func WithBusyBackoff(d time.Duration) Option {
	return func(c *CoalescerConfig) { c.BusyBackoff = d }
}

// WithRetryBackoff sets the delay before retrying a failed write.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *CoalescerConfig) { c.FailureBackoff = d }
}

// WithOnDirty registers a callback for the unsaved-changes indicator.
func WithOnDirty(f func(dirty bool)) Option {
	return func(c *CoalescerConfig) { c.OnDirty = f }
}

// Session is the single owner of a user's state.
type Session struct {
	id       string
	store    store.DocumentStore
	cache    cache.Cache
	platform Platform
	clock    clock.Clock
	logger   *slog.Logger

	locator   *store.Locator
	coalescer *Coalescer

	mu           sync.Mutex
	st           *state.UserState
	remoteMerged bool
	playlists    []youtube.Playlist
}

// New creates a session with an empty state. Call Load to populate it.
func New(deps Deps, opts ...Option) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	id := uuid.NewString()
	logger := deps.Logger.With("session_id", id)

	s := &Session{
		id:       id,
		store:    deps.Store,
		cache:    deps.Cache,
		platform: deps.Platform,
		clock:    deps.Clock,
		logger:   logger,
		locator:  store.NewLocator(deps.Store, store.WithLogger(logger)),
		st:       state.New(),
	}

	cfg := DefaultCoalescerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Clock = deps.Clock
	cfg.Logger = logger
	s.coalescer = NewCoalescer(s.save, cfg)
	return s
}

// ID returns the session identifier attached to every log line.
func (s *Session) ID() string { return s.id }

// Load populates the session from the local cache and the remote document.
// A remote failure is returned wrapped in ErrLoad; the session then keeps
// working on its local state and retries the merge before its first write.
func (s *Session) Load(ctx context.Context) error {
	s.loadLocal()

	type playlistResult struct {
		playlists []youtube.Playlist
		err       error
	}
	playlistsCh := make(chan playlistResult, 1)
	if s.platform != nil {
		go func() {
			pl, err := s.platform.OwnedPlaylists(ctx)
			playlistsCh <- playlistResult{pl, err}
		}()
	} else {
		playlistsCh <- playlistResult{}
	}

	var loadErr error
	if err := s.mergeRemote(ctx); err != nil {
		s.logger.Warn("Remote state unavailable, continuing with local state", "error", err)
		loadErr = fmt.Errorf("%w: %w", ErrLoad, err)
	}

	res := <-playlistsCh
	if res.err != nil {
		s.logger.Warn("Failed to fetch playlists", "error", res.err)
	}

	s.mu.Lock()
	s.playlists = res.playlists
	needsDefault := s.st.WatchLater == "" && len(res.playlists) > 0
	if needsDefault {
		s.st.WatchLater = res.playlists[0].ID
	}
	s.mu.Unlock()

	if needsDefault {
		s.logger.Info("Defaulted watch-later playlist", "playlist", res.playlists[0].ID)
		s.coalescer.RequestSave()
	}
	return loadErr
}

func (s *Session) loadLocal() {
	if s.cache == nil {
		return
	}
	data, ok := s.cache.Get(CacheKey)
	if !ok {
		return
	}
	local, err := state.Decode(data)
	if err != nil {
		s.logger.Warn("Ignoring unreadable parts of cached state", "error", err)
	}

	s.mu.Lock()
	s.st = state.Merge(local, s.st)
	s.mu.Unlock()
}

// mergeRemote reads the remote document and merges it over the in-memory
// state, which may already carry mutations made since Load started.
func (s *Session) mergeRemote(ctx context.Context) error {
	id, err := s.locator.Resolve(ctx)
	if err != nil {
		return err
	}
	data, err := s.store.Read(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			s.locator.Reset()
		}
		return fmt.Errorf("failed to read state document: %w", err)
	}

	remote, err := state.Decode(data)
	if err != nil {
		s.logger.Warn("Ignoring unreadable parts of remote state", "error", err)
	}

	s.mu.Lock()
	s.st = state.Merge(s.st, remote)
	s.remoteMerged = true
	s.mu.Unlock()
	return nil
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	merged := s.remoteMerged
	s.mu.Unlock()
	if !merged {
		if err := s.mergeRemote(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteNotMerged, err)
		}
	}

	s.mu.Lock()
	data, err := state.Encode(s.st)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(CacheKey, data); err != nil {
			s.logger.Warn("Failed to update local cache", "error", err)
		}
	}

	id, err := s.locator.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Write(ctx, id, data); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			s.locator.Reset()
		}
		return fmt.Errorf("failed to write state document: %w", err)
	}
	s.logger.Debug("Saved state", "bytes", len(data))
	return nil
}

// MarkSkip records videoID as triaged now.
func (s *Session) MarkSkip(videoID string) {
	s.mu.Lock()
	s.st.Skip[videoID] = state.Millis(s.clock.Now())
	s.mu.Unlock()
	s.coalescer.RequestSave()
}

// SkipAll marks every video in ids as triaged.
func (s *Session) SkipAll(videoIDs []string) {
	for _, id := range videoIDs {
		s.MarkSkip(id)
	}
}

// AddToWatchLater inserts videoID into the watch-later playlist and, once the
// platform confirms, marks it as triaged. On failure nothing is changed.
func (s *Session) AddToWatchLater(ctx context.Context, videoID string) error {
	playlist := s.WatchLater()
	if playlist == "" {
		return ErrNoWatchLater
	}
	if s.platform == nil {
		return fmt.Errorf("failed to add %s to watch later: no platform client", videoID)
	}

	if _, err := s.platform.InsertPlaylistItem(ctx, playlist, videoID); err != nil {
		s.logger.Error("Failed to add to watch later", "video", videoID, "playlist", playlist, "error", err)
		return fmt.Errorf("failed to add %s to watch later: %w", videoID, err)
	}
	s.MarkSkip(videoID)
	return nil
}

// RemoveFromWatchLater deletes a playlist entry. It does not touch the state.
func (s *Session) RemoveFromWatchLater(ctx context.Context, playlistItemID string) error {
	if s.platform == nil {
		return fmt.Errorf("failed to remove %s from watch later: no platform client", playlistItemID)
	}
	if err := s.platform.DeletePlaylistItem(ctx, playlistItemID); err != nil {
		return fmt.Errorf("failed to remove %s from watch later: %w", playlistItemID, err)
	}
	return nil
}

// CacheVideoMetadata stores v unless metadata for v.ID is already cached.
// It reports whether v was inserted.
func (s *Session) CacheVideoMetadata(v state.Video) bool {
	s.mu.Lock()
	_, exists := s.st.Videos[v.ID]
	if !exists {
		s.st.Videos[v.ID] = v
	}
	s.mu.Unlock()

	if exists {
		return false
	}
	s.coalescer.RequestSave()
	return true
}

// CacheChannelPlaylist records a channel's uploads playlist unless one is
// already known. It reports whether the mapping was inserted.
func (s *Session) CacheChannelPlaylist(channelID, playlistID string) bool {
	s.mu.Lock()
	_, exists := s.st.Chan2Playlist[channelID]
	if !exists {
		s.st.Chan2Playlist[channelID] = playlistID
	}
	s.mu.Unlock()

	if exists {
		return false
	}
	s.coalescer.RequestSave()
	return true
}

// SetWatchLaterPlaylist selects the playlist used as the watch-later queue.
func (s *Session) SetWatchLaterPlaylist(playlistID string) {
	s.mu.Lock()
	s.st.WatchLater = playlistID
	s.mu.Unlock()
	s.coalescer.RequestSave()
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *state.UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// IsSkipped reports whether videoID has been triaged.
func (s *Session) IsSkipped(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.Skip[videoID]
	return ok
}

// ChannelPlaylist returns the cached uploads playlist of a channel.
func (s *Session) ChannelPlaylist(channelID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.st.Chan2Playlist[channelID]
	return pl, ok
}

// WatchLater returns the watch-later playlist ID, or "" when unset.
func (s *Session) WatchLater() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.WatchLater
}

// Playlists returns the user's playlists fetched during Load.
func (s *Session) Playlists() []youtube.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]youtube.Playlist(nil), s.playlists...)
}

// Dirty reports whether there are changes not yet persisted remotely.
func (s *Session) Dirty() bool { return s.coalescer.Dirty() }

// Stats exposes the save coalescer counters.
func (s *Session) Stats() Stats { return s.coalescer.Stats() }

// Wait blocks until all requested saves have been written or ctx is done.
func (s *Session) Wait(ctx context.Context) error { return s.coalescer.Wait(ctx) }

// Close waits for outstanding saves, bounded by ctx, then stops the coalescer.
func (s *Session) Close(ctx context.Context) error {
	err := s.coalescer.Wait(ctx)
	s.coalescer.Close()
	if err != nil && s.coalescer.Dirty() {
		s.logger.Warn("Closing with unsaved changes", "error", err)
	}
	return err
}
