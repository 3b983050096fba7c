package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	// maxPageSize is the largest maxResults the Data API accepts.
	maxPageSize = 50
	// maxIDsPerRequest bounds the id= list of channels.list.
	maxIDsPerRequest = 50
)

// ErrAPI is matched by every *APIError.
var ErrAPI = errors.New("youtube api error")

// APIError is a non-2xx response from the Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrAPI) true for any APIError.
func (e *APIError) Is(target error) bool { return target == ErrAPI }

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. It is expected to add authorization,
// e.g. a client from oauth2.Config.Client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAccessToken sends a static bearer token with every request.
func WithAccessToken(token string) ClientOption {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithRateLimit caps the request rate. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is a YouTube Data API client.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  HTTPClient
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new YouTube API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchSubscriptions retrieves all of the authenticated user's subscriptions.
func (c *Client) FetchSubscriptions(ctx context.Context) ([]Subscription, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("mine", "true")
	params.Set("order", "alphabetical")

	items, err := fetchAll[subscriptionItem](ctx, c, "/youtube/v3/subscriptions", params, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]Subscription, 0, len(items))
	for _, item := range items {
		publishedAt, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		subs = append(subs, Subscription{
			ChannelID:    item.Snippet.ResourceID.ChannelID,
			ChannelTitle: item.Snippet.Title,
			Description:  item.Snippet.Description,
			Thumbnail:    item.Snippet.Thumbnails.Default.URL,
			SubscribedAt: publishedAt,
		})
	}

	return subs, nil
}

// SubscriptionChannelIDs returns the sorted, de-duplicated channel IDs the
// user is subscribed to.
func (c *Client) SubscriptionChannelIDs(ctx context.Context) ([]string, error) {
	subs, err := c.FetchSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.ChannelID != "" {
			ids = append(ids, sub.ChannelID)
		}
	}
	c.logger.Info("Fetched subscriptions", "channels", len(ids))
	return dedupSorted(ids), nil
}

// UploadsPlaylists maps each channel ID to its uploads playlist ID.
func (c *Client) UploadsPlaylists(ctx context.Context, channelIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(channelIDs))

	for start := 0; start < len(channelIDs); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(channelIDs))
		chunk := channelIDs[start:end]

		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("id", strings.Join(chunk, ","))

		items, err := fetchAll[channelItem](ctx, c, "/youtube/v3/channels", params, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list channels: %w", err)
		}
		if len(items) != len(chunk) {
			c.logger.Warn("Channel lookup returned fewer channels than requested",
				"requested", len(chunk),
				"returned", len(items),
			)
		}
		for _, item := range items {
			if uploads := item.ContentDetails.RelatedPlaylists.Uploads; uploads != "" {
				result[item.ID] = uploads
			}
		}
	}

	return result, nil
}

// OwnedPlaylists lists the playlists owned by the authenticated user.
func (c *Client) OwnedPlaylists(ctx context.Context) ([]Playlist, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("mine", "true")

	items, err := fetchAll[playlistResource](ctx, c, "/youtube/v3/playlists", params, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(items))
	for _, item := range items {
		playlists = append(playlists, Playlist{
			ID:        item.ID,
			Title:     item.Snippet.Title,
			ItemCount: item.ContentDetails.ItemCount,
		})
	}
	return playlists, nil
}

// PlaylistItems returns up to limit items of a playlist; limit <= 0 fetches every page.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("playlistId", playlistID)

	items, err := fetchAll[playlistItemResource](ctx, c, "/youtube/v3/playlistItems", params, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist %s: %w", playlistID, err)
	}

	result := make([]PlaylistItem, 0, len(items))
	for _, item := range items {
		publishedAt, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt)
		if err != nil {
			publishedAt, _ = time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		}

		videoID := item.Snippet.ResourceID.VideoID
		if videoID == "" {
			videoID = item.ContentDetails.VideoID
		}

		// Private and deleted videos come back without thumbnails.
		thumbnail := item.Snippet.Thumbnails.Default.URL
		if thumbnail == "" {
			thumbnail = item.Snippet.Thumbnails.High.URL
		}

		result = append(result, PlaylistItem{
			ID:           item.ID,
			VideoID:      videoID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.VideoOwnerChannelID,
			ChannelTitle: item.Snippet.VideoOwnerChannelTitle,
			Thumbnail:    thumbnail,
			PublishedAt:  publishedAt,
			URL:          WatchURL(videoID),
		})
	}
	return result, nil
}

// InsertPlaylistItem adds a video at the top of a playlist and returns the new item's ID.
func (c *Client) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) (string, error) {
	var reqBody insertRequest
	reqBody.Snippet.PlaylistID = playlistID
	reqBody.Snippet.ResourceID.Kind = "youtube#video"
	reqBody.Snippet.ResourceID.VideoID = videoID

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode playlist item: %w", err)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	body, err := c.doRequest(ctx, http.MethodPost, c.endpoint("/youtube/v3/playlistItems", params), payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse playlist item response: %w", err)
	}
	return created.ID, nil
}

// DeletePlaylistItem removes an entry from a playlist.
func (c *Client) DeletePlaylistItem(ctx context.Context, playlistItemID string) error {
	params := url.Values{}
	params.Set("id", playlistItemID)
	_, err := c.doRequest(ctx, http.MethodDelete, c.endpoint("/youtube/v3/playlistItems", params), nil)
	return err
}

// page is the envelope shared by every list endpoint.
type page[T any] struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []T    `json:"items"`
}

// fetchAll follows nextPageToken until the last page, or until limit items
// have been collected when limit > 0.
func fetchAll[T any](ctx context.Context, c *Client, path string, params url.Values, limit int) ([]T, error) {
	pageSize := maxPageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	all := make([]T, 0)
	seen := make(map[string]bool)
	token := ""
	for {
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		p.Set("maxResults", strconv.Itoa(pageSize))
		if token != "" {
			p.Set("pageToken", token)
		}

		body, err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, p), nil)
		if err != nil {
			return nil, err
		}

		var pg page[T]
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		all = append(all, pg.Items...)

		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if pg.NextPageToken == "" || seen[pg.NextPageToken] {
			return all, nil
		}
		seen[pg.NextPageToken] = true
		token = pg.NextPageToken
	}
}

func (c *Client) endpoint(path string, params url.Values) string {
	return c.baseURL + path + "?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("YouTube API request failed", "method", method, "status", resp.StatusCode)
		return nil, c.handleAPIError(resp.StatusCode)
	}

	return respBody, nil
}

func dedupSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		out = append(out, id)
	}
	return out
}

// API response types (private - implementation detail)

type thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
	High struct {
		URL string `json:"url"`
	} `json:"high"`
}

type subscriptionItem struct {
	Snippet struct {
		ResourceID struct {
			ChannelID string `json:"channelId"`
		} `json:"resourceId"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		PublishedAt string     `json:"publishedAt"`
		Thumbnails  thumbnails `json:"thumbnails"`
	} `json:"snippet"`
}

type channelItem struct {
	ID             string `json:"id"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

type playlistResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
	ContentDetails struct {
		ItemCount int64 `json:"itemCount"`
	} `json:"contentDetails"`
}

type playlistItemResource struct {
	ID      string `json:"id"`
	Snippet struct {
		ResourceID struct {
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
		Title                  string     `json:"title"`
		PublishedAt            string     `json:"publishedAt"`
		VideoOwnerChannelID    string     `json:"videoOwnerChannelId"`
		VideoOwnerChannelTitle string     `json:"videoOwnerChannelTitle"`
		Thumbnails             thumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID          string `json:"videoId"`
		VideoPublishedAt string `json:"videoPublishedAt"`
	} `json:"contentDetails"`
}

type insertRequest struct {
	Snippet struct {
		PlaylistID string `json:"playlistId"`
		Position   int    `json:"position"`
		ResourceID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
}

func (c *Client) handleAPIError(statusCode int) error {
	var msg string
	switch statusCode {
	case http.StatusUnauthorized:
		msg = "YouTube API authentication failed - please run 'feedtriage auth' to re-authenticate"
	case http.StatusForbidden:
		msg = "YouTube API access denied - check your OAuth permissions or daily quota"
	case http.StatusNotFound:
		msg = "YouTube API resource not found - the playlist or video may be private or deleted"
	case http.StatusTooManyRequests:
		msg = "YouTube API rate limit exceeded - please try again later"
	case http.StatusServiceUnavailable:
		msg = "YouTube API temporarily unavailable - please try again in a few minutes"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		msg = "YouTube API server error - please try again later"
	default:
		msg = fmt.Sprintf("YouTube API error (status %d) - please try again", statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}
