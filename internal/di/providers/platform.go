package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"google.golang.org/api/option"

	"github.com/gauthierbraillon/feedtriage/internal/cache"
	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/drive"
	"github.com/gauthierbraillon/feedtriage/internal/logger"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

// ProvideYouTubeClient provides the YouTube Data API client.
func ProvideYouTubeClient(i do.Injector) (*youtube.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hc, err := do.Invoke[*AuthorizedClient](i)
	if err != nil {
		return nil, err
	}

	opts := []youtube.ClientOption{
		youtube.WithHTTPClient(hc.Client),
		youtube.WithRateLimit(cfg.RateLimit, rateBurst),
		youtube.WithLogger(log.Logger),
	}
	if cfg.APIURL != "" {
		opts = append(opts, youtube.WithBaseURL(cfg.APIURL))
	}
	return youtube.NewClient(opts...), nil
}

// ProvideDriveStore provides the Drive-backed document store.
func ProvideDriveStore(i do.Injector) (*drive.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	hc, err := do.Invoke[*AuthorizedClient](i)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc.Client)}
	if cfg.DriveURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.DriveURL))
	}

	st, err := drive.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("drive store: %w", err)
	}
	return st, nil
}

// CacheHandle wraps the local cache with shutdown capability.
type CacheHandle struct {
	*cache.Badger
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the on-disk state cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := cache.OpenBadger(cfg.CacheDir(), cache.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}

	log.Debug("Local cache opened", "path", cfg.CacheDir())
	return &CacheHandle{Badger: db}, nil
}
