// Package aggregator builds the triage feed: the recent uploads of every
// subscribed channel, minus what the user has already triaged.
//
// This package enables feedtriage to:
// - Merge uploads from all subscriptions chronologically
// - Filter content by date range and skip list
// - Provide a FeedItem shape for display
package aggregator

import (
	"time"

	"github.com/gauthierbraillon/feedtriage/internal/state"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

// FeedItem is a video in the feed.
type FeedItem struct {
	// ID is the video ID.
	ID string `json:"id"`
	// ItemID is the playlist entry the video came from.
	ItemID      string    `json:"item_id,omitempty"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	AuthorID    string    `json:"author_id"`
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// FromPlaylistItem converts a playlist entry into a feed item.
func FromPlaylistItem(item youtube.PlaylistItem) FeedItem {
	return FeedItem{
		ID:          item.VideoID,
		ItemID:      item.ID,
		Title:       item.Title,
		Author:      item.ChannelTitle,
		AuthorID:    item.ChannelID,
		URL:         item.URL,
		Thumbnail:   item.Thumbnail,
		PublishedAt: item.PublishedAt,
	}
}

// Video returns the metadata cached for the item.
func (f FeedItem) Video() state.Video {
	return state.Video{
		ID:           f.ID,
		Title:        f.Title,
		ChannelTitle: f.Author,
		Timestamp:    f.PublishedAt,
		Thumbnail:    f.Thumbnail,
	}
}

// FeedOptions configures feed retrieval.
type FeedOptions struct {
	Limit int
	Since time.Time
	Until time.Time
	// Exclude drops items whose ID it reports true for.
	Exclude func(id string) bool
}

// Feed is the result of a build.
type Feed struct {
	Items []FeedItem
	// Playlists is the number of uploads playlists read.
	Playlists int
	// Failed is the number of playlists that could not be read.
	Failed int
}
