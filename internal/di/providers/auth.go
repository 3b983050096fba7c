package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/logger"
	"github.com/gauthierbraillon/feedtriage/pkg/oauth"
)

// ErrNotAuthenticated is returned when no saved token exists.
var ErrNotAuthenticated = errors.New("not authenticated (run 'feedtriage auth')")

// AuthorizedClient is an HTTP client that signs requests with the user's
// Google token and persists refreshed tokens.
type AuthorizedClient struct {
	*http.Client
}

// ProvideTokenStorage provides the token store in the config directory.
func ProvideTokenStorage(i do.Injector) (*oauth.TokenStorage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return oauth.NewTokenStorage(cfg.ConfigDir), nil
}

// ProvideOAuthFlow provides the OAuth flow for the configured client. The
// redirect URL only matters for the consent step, which builds its own flow.
func ProvideOAuthFlow(i do.Injector) (*oauth.Flow, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	oc := oauth.GoogleOAuthConfig(cfg.ClientID, cfg.ClientSecret, "http://localhost/callback")
	return oauth.NewFlow(oc), nil
}

// ProvideAuthorizedClient provides the token-carrying HTTP client.
func ProvideAuthorizedClient(i do.Injector) (*AuthorizedClient, error) {
	storage := do.MustInvoke[*oauth.TokenStorage](i)
	log := do.MustInvoke[*logger.Logger](i)

	token, err := storage.Load(TokenName)
	if errors.Is(err, oauth.ErrTokenNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	flow, err := do.Invoke[*oauth.Flow](i)
	if err != nil {
		return nil, err
	}

	log.Debug("Using saved token", "expires", token.Expiry)
	return &AuthorizedClient{Client: flow.Client(context.Background(), token, storage, TokenName)}, nil
}
