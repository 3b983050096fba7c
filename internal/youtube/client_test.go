// Package youtube tests document the expected behavior of the YouTube client.
//
// Test requirements (this file serves as documentation):
// - Client sends the bearer token and hits the Data API v3 endpoints
// - Every list call follows nextPageToken until the last page
// - Channels resolve to their uploads playlists in chunks of 50
// - Playlist items carry video ID, title, channel, thumbnail and publish time
// - Watch-later insert/delete use the playlistItems endpoint
// - API errors are reported as *APIError with user friendly messages
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func subscriptionEntry(channelID, title string) map[string]interface{} {
	return map[string]interface{}{
		"snippet": map[string]interface{}{
			"resourceId":  map[string]interface{}{"channelId": channelID},
			"title":       title,
			"publishedAt": "2024-01-01T00:00:00Z",
		},
	}
}

// TestNewClient documents client creation requirements.
func TestNewClient(t *testing.T) {
	client := NewClient(WithAccessToken("test-access-token"))

	if client == nil {
		t.Fatal("client should not be nil")
	}
	if client.baseURL != defaultBaseURL {
		t.Errorf("default base URL should be %s, got %s", defaultBaseURL, client.baseURL)
	}
}

// TestClient_FetchSubscriptions documents subscription fetching:
// - Returns list of subscribed channels
// - Each subscription has channel ID, title, and thumbnail
func TestClient_FetchSubscriptions(t *testing.T) {
	mockResponse := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"snippet": map[string]interface{}{
					"resourceId": map[string]interface{}{
						"channelId": "UC123",
					},
					"title":       "Test Channel",
					"description": "A test channel",
					"thumbnails": map[string]interface{}{
						"default": map[string]interface{}{
							"url": "https://example.com/thumb.jpg",
						},
					},
					"publishedAt": "2024-01-01T00:00:00Z",
				},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-access-token" {
			t.Errorf("expected Bearer token in Authorization header, got %q", auth)
		}
		if r.URL.Path != "/youtube/v3/subscriptions" {
			t.Errorf("expected /youtube/v3/subscriptions, got %q", r.URL.Path)
		}
		if r.URL.Query().Get("mine") != "true" {
			t.Error("subscriptions should be requested for the authenticated user")
		}
		writeJSON(t, w, mockResponse)
	}))
	defer server.Close()

	client := NewClient(WithAccessToken("test-access-token"), WithBaseURL(server.URL))

	subs, err := client.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	if subs[0].ChannelID != "UC123" {
		t.Errorf("expected channel ID UC123, got %q", subs[0].ChannelID)
	}
	if subs[0].ChannelTitle != "Test Channel" {
		t.Errorf("expected channel title 'Test Channel', got %q", subs[0].ChannelTitle)
	}
	if subs[0].Thumbnail != "https://example.com/thumb.jpg" {
		t.Errorf("expected thumbnail, got %q", subs[0].Thumbnail)
	}
}

// TestClient_FetchSubscriptions_FollowsPages documents pagination:
// - Users with more than 50 subscriptions see all of them
func TestClient_FetchSubscriptions_FollowsPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(t, w, map[string]interface{}{
				"nextPageToken": "page2",
				"items":         []interface{}{subscriptionEntry("UC1", "One")},
			})
		case "page2":
			writeJSON(t, w, map[string]interface{}{
				"nextPageToken": "page3",
				"items":         []interface{}{subscriptionEntry("UC2", "Two")},
			})
		case "page3":
			writeJSON(t, w, map[string]interface{}{
				"items": []interface{}{subscriptionEntry("UC3", "Three")},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	subs, err := client.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("user should see subscriptions from all 3 pages, got %d", len(subs))
	}
	for i, want := range []string{"UC1", "UC2", "UC3"} {
		if subs[i].ChannelID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, subs[i].ChannelID)
		}
	}
}

func TestClient_FetchSubscriptions_StopsOnRepeatedPageToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, map[string]interface{}{
			"nextPageToken": "same",
			"items":         []interface{}{subscriptionEntry("UC1", "One")},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.FetchSubscriptions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("a repeated page token should end pagination after 2 calls, got %d", got)
	}
}

func TestClient_SubscriptionChannelIDs_SortedAndDeduplicated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"items": []interface{}{
				subscriptionEntry("UCb", "B"),
				subscriptionEntry("UCa", "A"),
				subscriptionEntry("UCb", "B again"),
			},
		})
	}))
	defer server.Close()

	ids, err := NewClient(WithBaseURL(server.URL)).SubscriptionChannelIDs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "UCa,UCb" {
		t.Errorf("expected sorted unique ids [UCa UCb], got %v", ids)
	}
}

// TestClient_UploadsPlaylists documents channel to uploads playlist mapping:
// - Channels are looked up 50 at a time
// - Each channel maps to contentDetails.relatedPlaylists.uploads
func TestClient_UploadsPlaylists(t *testing.T) {
	var requests []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/channels" {
			t.Errorf("expected /youtube/v3/channels, got %q", r.URL.Path)
		}
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		requests = append(requests, len(ids))

		items := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			items = append(items, map[string]interface{}{
				"id": id,
				"contentDetails": map[string]interface{}{
					"relatedPlaylists": map[string]interface{}{"uploads": "UU" + strings.TrimPrefix(id, "UC")},
				},
			})
		}
		writeJSON(t, w, map[string]interface{}{"items": items})
	}))
	defer server.Close()

	channels := make([]string, 0, 75)
	for i := 0; i < 75; i++ {
		channels = append(channels, fmt.Sprintf("UC%03d", i))
	}

	mapping, err := NewClient(WithBaseURL(server.URL)).UploadsPlaylists(context.Background(), channels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(requests) != 2 || requests[0] != 50 || requests[1] != 25 {
		t.Errorf("expected chunks of 50 and 25, got %v", requests)
	}
	if len(mapping) != 75 {
		t.Fatalf("expected 75 mappings, got %d", len(mapping))
	}
	if mapping["UC007"] != "UU007" {
		t.Errorf("expected UC007 -> UU007, got %q", mapping["UC007"])
	}
}

func TestClient_OwnedPlaylists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/playlists" || r.URL.Query().Get("mine") != "true" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		writeJSON(t, w, map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"id":             "PL1",
					"snippet":        map[string]interface{}{"title": "Watch later-ish"},
					"contentDetails": map[string]interface{}{"itemCount": 12},
				},
			},
		})
	}))
	defer server.Close()

	playlists, err := NewClient(WithBaseURL(server.URL)).OwnedPlaylists(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(playlists) != 1 || playlists[0].ID != "PL1" || playlists[0].ItemCount != 12 {
		t.Errorf("unexpected playlists: %+v", playlists)
	}
}

// TestClient_PlaylistItems documents playlist item fetching:
// - Items carry the playlist item ID (for deletion) and the video ID
// - The video publish time is preferred over the time it was added
// - The limit caps how many items are returned
func TestClient_PlaylistItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("playlistId") != "UU123" {
			t.Errorf("expected playlistId UU123, got %q", r.URL.Query().Get("playlistId"))
		}
		if r.URL.Query().Get("maxResults") != "2" {
			t.Errorf("limit below page size should shrink maxResults, got %q", r.URL.Query().Get("maxResults"))
		}
		writeJSON(t, w, map[string]interface{}{
			"nextPageToken": "more",
			"items": []interface{}{
				map[string]interface{}{
					"id": "item-1",
					"snippet": map[string]interface{}{
						"resourceId":             map[string]interface{}{"videoId": "vid1"},
						"title":                  "First",
						"publishedAt":            "2024-02-02T00:00:00Z",
						"videoOwnerChannelTitle": "Chan",
						"thumbnails": map[string]interface{}{
							"default": map[string]interface{}{"url": "https://example.com/1.jpg"},
						},
					},
					"contentDetails": map[string]interface{}{
						"videoId":          "vid1",
						"videoPublishedAt": "2024-02-01T10:00:00Z",
					},
				},
				map[string]interface{}{
					"id": "item-2",
					"snippet": map[string]interface{}{
						"resourceId":  map[string]interface{}{"videoId": "vid2"},
						"title":       "Private video",
						"publishedAt": "2024-02-03T00:00:00Z",
					},
				},
			},
		})
	}))
	defer server.Close()

	items, err := NewClient(WithBaseURL(server.URL)).PlaylistItems(context.Background(), "UU123", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.ID != "item-1" || first.VideoID != "vid1" {
		t.Errorf("unexpected ids: %+v", first)
	}
	if !first.PublishedAt.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected video publish time, got %v", first.PublishedAt)
	}
	if first.ChannelTitle != "Chan" || first.Thumbnail != "https://example.com/1.jpg" {
		t.Errorf("unexpected metadata: %+v", first)
	}
	if first.URL != "https://www.youtube.com/watch?v=vid1" {
		t.Errorf("unexpected URL %q", first.URL)
	}

	if items[1].Thumbnail != "" {
		t.Error("private video should have no thumbnail")
	}
	if items[1].PublishedAt.IsZero() {
		t.Error("publish time should fall back to the snippet time")
	}
}

// TestClient_InsertPlaylistItem documents add-to-watch-later:
// - POST playlistItems with the playlist, position 0 and the video resource
func TestClient_InsertPlaylistItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/youtube/v3/playlistItems" || r.URL.Query().Get("part") != "snippet" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		body, _ := io.ReadAll(r.Body)
		var req insertRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if req.Snippet.PlaylistID != "PLwl" || req.Snippet.ResourceID.VideoID != "vid1" {
			t.Errorf("unexpected body %s", body)
		}
		if req.Snippet.ResourceID.Kind != "youtube#video" || req.Snippet.Position != 0 {
			t.Errorf("unexpected resource %s", body)
		}
		writeJSON(t, w, map[string]interface{}{"id": "new-item"})
	}))
	defer server.Close()

	id, err := NewClient(WithBaseURL(server.URL)).InsertPlaylistItem(context.Background(), "PLwl", "vid1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "new-item" {
		t.Errorf("expected new-item, got %q", id)
	}
}

func TestClient_DeletePlaylistItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Query().Get("id") != "item-1" {
			t.Errorf("expected id item-1, got %q", r.URL.Query().Get("id"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewClient(WithBaseURL(server.URL)).DeletePlaylistItem(context.Background(), "item-1"); err != nil {
		t.Fatalf("204 should be success, got %v", err)
	}
}

func TestClient_ErrorsAreAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).InsertPlaylistItem(context.Background(), "PL", "v")

	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected APIError with status 403, got %v", err)
	}
}

func TestClient_RateLimitRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"items": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(0.001, 1))
	if _, err := client.OwnedPlaylists(context.Background()); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.OwnedPlaylists(ctx); err == nil {
		t.Error("second call should be held back by the limiter and fail on context deadline")
	}
}
