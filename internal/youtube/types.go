// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables feedtriage to:
// - List the user's subscriptions (all pages)
// - Map channels to their uploads playlists
// - List the user's own playlists and the items of any playlist
// - Add videos to and remove items from the watch-later playlist
package youtube

import "time"

// Subscription represents a YouTube channel subscription.
type Subscription struct {
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// Playlist is a playlist owned by the authenticated user.
type Playlist struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ItemCount int64  `json:"item_count"`
}

// PlaylistItem is a video entry in a playlist.
type PlaylistItem struct {
	// ID identifies the entry within the playlist (used for deletion).
	ID           string    `json:"id"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	URL          string    `json:"url"`
}

// WatchURL returns the watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
