// Package oauth provides the OAuth 2.0 browser flow and token persistence
// for feedtriage, on top of golang.org/x/oauth2.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested from Google.
const (
	ScopeYouTube      = "https://www.googleapis.com/auth/youtube"
	ScopeDriveAppData = "https://www.googleapis.com/auth/drive.appdata"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidConfig = errors.New("invalid oauth config")
)

// Token is the persisted OAuth token.
type Token = oauth2.Token

// Config describes an OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string // #nosec G117 - OAuth client config, not an exposed secret
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// GoogleOAuthConfig returns the config for Google with the YouTube and Drive
// app-data scopes.
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) Config {
	return Config{ // #nosec G101 -- OAuth URLs are public API endpoints, not hardcoded credentials
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      google.Endpoint.AuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		RedirectURL:  redirectURL,
		Scopes:       []string{ScopeYouTube, ScopeDriveAppData},
	}
}

// Validate checks that the config can drive an authorization flow.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: client ID is required", ErrInvalidConfig)
	case c.ClientSecret == "":
		return fmt.Errorf("%w: client secret is required", ErrInvalidConfig)
	case c.RedirectURL == "":
		return fmt.Errorf("%w: redirect URL is required", ErrInvalidConfig)
	case len(c.Scopes) == 0:
		return fmt.Errorf("%w: at least one scope is required", ErrInvalidConfig)
	}
	return nil
}

func (c Config) oauth2() *oauth2.Config {
	authURL := c.AuthURL
	if authURL == "" {
		authURL = google.Endpoint.AuthURL
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Flow runs the authorization code flow.
type Flow struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithHTTPClient sets the client used to talk to the token endpoint.
func WithHTTPClient(client *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = client }
}

// NewFlow creates a flow for config.
func NewFlow(config Config, opts ...FlowOption) *Flow {
	f := &Flow{config: config.oauth2()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) context(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// GenerateAuthURL returns the consent URL and the state it carries. Offline
// access is requested so a refresh token is issued.
func (f *Flow) GenerateAuthURL() (string, string) {
	state := randomState()
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), state
}

// ExchangeCode trades an authorization code for a token.
func (f *Flow) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	token, err := f.config.Exchange(f.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// TokenSource returns a source that refreshes token when it expires.
func (f *Flow) TokenSource(ctx context.Context, token *Token) oauth2.TokenSource {
	return f.config.TokenSource(f.context(ctx), token)
}

// Client returns an HTTP client authorized with token. Refreshed tokens are
// written back to storage under name.
func (f *Flow) Client(ctx context.Context, token *Token, storage *TokenStorage, name string) *http.Client {
	src := NewPersistingTokenSource(f.TokenSource(ctx, token), storage, name, token)
	return oauth2.NewClient(f.context(ctx), src)
}

func randomState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// PersistingTokenSource saves every token that differs from the last one seen.
type PersistingTokenSource struct {
	src     oauth2.TokenSource
	storage *TokenStorage
	name    string

	mu   sync.Mutex
	last string
}

// NewPersistingTokenSource wraps src. current is the token already on disk.
func NewPersistingTokenSource(src oauth2.TokenSource, storage *TokenStorage, name string, current *Token) *PersistingTokenSource {
	p := &PersistingTokenSource{src: src, storage: storage, name: name}
	if current != nil {
		p.last = current.AccessToken
	}
	return p
}

// Token implements oauth2.TokenSource.
func (p *PersistingTokenSource) Token() (*Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last && p.storage != nil {
		if err := p.storage.Save(p.name, token); err != nil {
			return nil, err
		}
		p.last = token.AccessToken
	}
	return token, nil
}

// TokenStorage keeps tokens as JSON files in a private directory.
type TokenStorage struct {
	dir string
}

// NewTokenStorage stores tokens under dir.
func NewTokenStorage(dir string) *TokenStorage {
	return &TokenStorage{dir: dir}
}

// Save writes token as <name>_token.json with owner-only permissions.
func (s *TokenStorage) Save(name string, token *Token) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	return os.WriteFile(s.path(name), data, 0600)
}

// Load reads a token saved with Save.
func (s *TokenStorage) Load(name string) (*Token, error) {
	data, err := os.ReadFile(s.path(name)) // #nosec G304 -- name is sanitized
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

func (s *TokenStorage) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name)+"_token.json")
}
