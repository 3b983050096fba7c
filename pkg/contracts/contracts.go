// Package contracts builds YouTube Data API responses from Google's generated
// Go types, so tests can check feedtriage's hand-written client against the
// real wire schema instead of hand-typed JSON.
package contracts

import (
	"encoding/json"
	"fmt"

	yt "google.golang.org/api/youtube/v3"
)

// Published is the publish time used across fixtures.
const Published = "2024-01-15T10:00:00Z"

// SubscriptionList is a single page of subscriptions for the given channels.
func SubscriptionList(nextPageToken string, channelIDs ...string) []byte {
	resp := &yt.SubscriptionListResponse{
		Kind:          "youtube#subscriptionListResponse",
		NextPageToken: nextPageToken,
	}
	for _, id := range channelIDs {
		resp.Items = append(resp.Items, &yt.Subscription{
			Kind: "youtube#subscription",
			Snippet: &yt.SubscriptionSnippet{
				PublishedAt: Published,
				Title:       "Channel " + id,
				Description: "About " + id,
				ResourceId:  &yt.ResourceId{Kind: "youtube#channel", ChannelId: id},
				Thumbnails: &yt.ThumbnailDetails{
					Default: &yt.Thumbnail{Url: "https://i.ytimg.com/" + id + ".jpg"},
				},
			},
		})
	}
	return mustEncode(resp)
}

// ChannelList maps each channel ID to an uploads playlist "UU" + suffix.
func ChannelList(channelIDs ...string) []byte {
	resp := &yt.ChannelListResponse{Kind: "youtube#channelListResponse"}
	for _, id := range channelIDs {
		resp.Items = append(resp.Items, &yt.Channel{
			Id: id,
			ContentDetails: &yt.ChannelContentDetails{
				RelatedPlaylists: &yt.ChannelContentDetailsRelatedPlaylists{Uploads: UploadsPlaylist(id)},
			},
		})
	}
	return mustEncode(resp)
}

// UploadsPlaylist is the uploads playlist ChannelList reports for a channel.
func UploadsPlaylist(channelID string) string {
	if len(channelID) > 2 {
		return "UU" + channelID[2:]
	}
	return "UU" + channelID
}

// PlaylistList is the authenticated user's playlists.
func PlaylistList(ids ...string) []byte {
	resp := &yt.PlaylistListResponse{Kind: "youtube#playlistListResponse"}
	for i, id := range ids {
		resp.Items = append(resp.Items, &yt.Playlist{
			Id:             id,
			Snippet:        &yt.PlaylistSnippet{Title: "Playlist " + id},
			ContentDetails: &yt.PlaylistContentDetails{ItemCount: int64(i + 1)},
		})
	}
	return mustEncode(resp)
}

// PlaylistItemList is a page of uploads, one item per video ID.
func PlaylistItemList(channelID string, videoIDs ...string) []byte {
	resp := &yt.PlaylistItemListResponse{Kind: "youtube#playlistItemListResponse"}
	for _, id := range videoIDs {
		resp.Items = append(resp.Items, &yt.PlaylistItem{
			Id: "item-" + id,
			Snippet: &yt.PlaylistItemSnippet{
				Title:                  "Video " + id,
				PublishedAt:            Published,
				ResourceId:             &yt.ResourceId{Kind: "youtube#video", VideoId: id},
				VideoOwnerChannelId:    channelID,
				VideoOwnerChannelTitle: "Channel " + channelID,
				Thumbnails: &yt.ThumbnailDetails{
					High: &yt.Thumbnail{Url: "https://i.ytimg.com/vi/" + id + "/hq.jpg"},
				},
			},
			ContentDetails: &yt.PlaylistItemContentDetails{
				VideoId:          id,
				VideoPublishedAt: Published,
			},
		})
	}
	return mustEncode(resp)
}

// InsertedPlaylistItem is the response to playlistItems.insert.
func InsertedPlaylistItem(id string) []byte {
	return mustEncode(&yt.PlaylistItem{Kind: "youtube#playlistItem", Id: id})
}

// DecodeInsert parses a playlistItems.insert request body with Google's type.
func DecodeInsert(body []byte) (*yt.PlaylistItem, error) {
	var item yt.PlaylistItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func mustEncode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("contracts: %v", err))
	}
	return data
}
