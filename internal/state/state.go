// Package state holds the user's curation state and its persisted form.
//
// This package enables feedtriage to:
// - Track which videos the user has already triaged (skip)
// - Keep metadata for videos that may later turn private or vanish
// - Cache the channel to uploads-playlist mapping
// - Remember which playlist is the user's watch-later queue
package state

import (
	"maps"
	"time"
)

// UserState is the root of everything feedtriage persists for a user.
type UserState struct {
	// Skip maps video ID to the Unix millisecond time it was triaged.
	Skip map[string]int64
	// Videos maps video ID to cached metadata. Entries are write-once.
	Videos map[string]Video
	// Chan2Playlist maps channel ID to its uploads playlist ID. Entries are write-once.
	Chan2Playlist map[string]string
	// WatchLater is the ID of the playlist used as the watch-later queue.
	WatchLater string
}

// Video is the metadata cached for a video seen in the feed.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channel_title"`
	Timestamp    time.Time `json:"ts"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// New returns an empty state with all maps allocated.
func New() *UserState {
	return &UserState{
		Skip:          make(map[string]int64),
		Videos:        make(map[string]Video),
		Chan2Playlist: make(map[string]string),
	}
}

// Normalize allocates any nil map so callers never have to nil-check.
func (s *UserState) Normalize() {
	if s.Skip == nil {
		s.Skip = make(map[string]int64)
	}
	if s.Videos == nil {
		s.Videos = make(map[string]Video)
	}
	if s.Chan2Playlist == nil {
		s.Chan2Playlist = make(map[string]string)
	}
}

// Clone returns a deep copy of s. A nil receiver clones to an empty state.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return New()
	}
	c := &UserState{
		Skip:          maps.Clone(s.Skip),
		Videos:        maps.Clone(s.Videos),
		Chan2Playlist: maps.Clone(s.Chan2Playlist),
		WatchLater:    s.WatchLater,
	}
	c.Normalize()
	return c
}

// Equal reports whether both states hold the same entries in all four fields.
// Video timestamps compare by instant, not by location.
func (s *UserState) Equal(o *UserState) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.WatchLater != o.WatchLater {
		return false
	}
	if !maps.Equal(s.Skip, o.Skip) || !maps.Equal(s.Chan2Playlist, o.Chan2Playlist) {
		return false
	}
	return maps.EqualFunc(s.Videos, o.Videos, func(a, b Video) bool {
		return a.ID == b.ID &&
			a.Title == b.Title &&
			a.ChannelTitle == b.ChannelTitle &&
			a.Thumbnail == b.Thumbnail &&
			a.Timestamp.Equal(b.Timestamp)
	})
}

// Millis converts t to the Unix millisecond form stored in Skip.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
