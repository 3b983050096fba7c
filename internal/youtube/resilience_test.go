package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveJSON(t *testing.T, body interface{}) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return NewClient(WithAccessToken("test"), WithBaseURL(server.URL))
}

func serveRaw(t *testing.T, status int, body string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewClient(WithAccessToken("test"), WithBaseURL(server.URL))
}

func TestSubscriptions_IgnoresUnexpectedFields(t *testing.T) {
	client := serveJSON(t, map[string]interface{}{
		"kind": "youtube#subscriptionListResponse",
		"items": []map[string]interface{}{{
			"snippet": map[string]interface{}{
				"resourceId":         map[string]interface{}{"channelId": "UC123"},
				"title":              "Test Channel",
				"newFieldFromGoogle": "surprise feature!",
				"thumbnails":         map[string]interface{}{"default": map[string]interface{}{"url": "https://example.com/thumb.jpg"}},
				"publishedAt":        "2024-01-01T00:00:00Z",
			},
		}},
	})

	subs, err := client.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("unexpected fields should be ignored, got error: %v", err)
	}
	if len(subs) != 1 || subs[0].ChannelID != "UC123" || subs[0].ChannelTitle != "Test Channel" {
		t.Errorf("unexpected subscriptions: %+v", subs)
	}
}

func TestSubscriptions_EmptyResponse(t *testing.T) {
	client := serveJSON(t, map[string]interface{}{"items": []interface{}{}})

	subs, err := client.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("no subscriptions is not an error: %v", err)
	}
	if subs == nil || len(subs) != 0 {
		t.Errorf("should return an empty, non-nil slice, got %#v", subs)
	}
}

func TestSubscriptions_NullAndMissingFields(t *testing.T) {
	client := serveJSON(t, map[string]interface{}{
		"items": []map[string]interface{}{
			{"snippet": map[string]interface{}{
				"resourceId":  map[string]interface{}{"channelId": "UC1"},
				"title":       "Minimal Channel",
				"publishedAt": "2024-01-01T00:00:00Z",
			}},
			{"snippet": map[string]interface{}{
				"resourceId":  map[string]interface{}{"channelId": "UC2"},
				"title":       "Null Channel",
				"description": nil,
				"thumbnails":  nil,
			}},
		},
	})

	subs, err := client.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("optional fields may be missing or null: %v", err)
	}
	if len(subs) != 2 || subs[1].ChannelTitle != "Null Channel" || subs[1].Thumbnail != "" {
		t.Errorf("unexpected subscriptions: %+v", subs)
	}
}

func TestPlaylistItems_PrivateVideoWithoutSnippetData(t *testing.T) {
	client := serveJSON(t, map[string]interface{}{
		"items": []map[string]interface{}{{
			"id": "item-1",
			"snippet": map[string]interface{}{
				"title":       "Private video",
				"publishedAt": "2024-02-01T00:00:00Z",
				"thumbnails":  map[string]interface{}{},
				"resourceId":  map[string]interface{}{"kind": "youtube#video"},
			},
			"contentDetails": map[string]interface{}{"videoId": "vid1"},
		}},
	})

	items, err := client.PlaylistItems(context.Background(), "PL1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.VideoID != "vid1" {
		t.Errorf("video id should come from contentDetails, got %q", item.VideoID)
	}
	if item.Thumbnail != "" || item.ChannelTitle != "" {
		t.Errorf("missing fields should stay empty: %+v", item)
	}
	if item.PublishedAt.IsZero() {
		t.Error("snippet.publishedAt should be used when videoPublishedAt is absent")
	}
}

func TestErrors_AreTypedAndReadable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		hints  []string
	}{
		{"server down", http.StatusServiceUnavailable, []string{"youtube", "unavailable"}},
		{"expired token", http.StatusUnauthorized, []string{"auth"}},
		{"quota", http.StatusForbidden, []string{"quota"}},
		{"rate limited", http.StatusTooManyRequests, []string{"rate limit"}},
		{"missing playlist", http.StatusNotFound, []string{"private or deleted"}},
		{"server error", http.StatusBadGateway, []string{"server error"}},
		{"other", http.StatusTeapot, []string{"status 418"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := serveRaw(t, tt.status, `{"error":{"code":0,"message":"nope"}}`)

			_, err := client.PlaylistItems(context.Background(), "PL1", 0)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrAPI) {
				t.Errorf("error should match ErrAPI: %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Errorf("expected *APIError with status %d, got %v", tt.status, err)
			}
			msg := strings.ToLower(err.Error())
			for _, hint := range tt.hints {
				if !strings.Contains(msg, hint) {
					t.Errorf("error %q should mention %q", msg, hint)
				}
			}
		})
	}
}

func TestErrors_MalformedAndTruncatedJSON(t *testing.T) {
	bodies := map[string]string{
		"malformed": `{"invalid": json}`,
		"truncated": `{"items": [{"snippet": {"resourceId": {"channelId": "UC123"}, "title": "Test`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := serveRaw(t, http.StatusOK, body)

			_, err := client.FetchSubscriptions(context.Background())
			if err == nil {
				t.Fatal("a broken response should be an error")
			}
			if errors.Is(err, ErrAPI) {
				t.Errorf("decode failures are not API errors: %v", err)
			}
		})
	}
}

func TestInsertPlaylistItem_FailureIsSurfaced(t *testing.T) {
	client := serveRaw(t, http.StatusForbidden, `{"error":{"code":403,"message":"quotaExceeded"}}`)

	id, err := client.InsertPlaylistItem(context.Background(), "PLwl", "vid1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if id != "" {
		t.Errorf("no item id on failure, got %q", id)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected a 403 APIError, got %v", err)
	}
}
