package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gauthierbraillon/feedtriage/internal/aggregator"
	"github.com/gauthierbraillon/feedtriage/internal/cache"
	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/drive"
	"github.com/gauthierbraillon/feedtriage/internal/logger"
	"github.com/gauthierbraillon/feedtriage/internal/session"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

// SessionHandle wraps the session with shutdown capability.
type SessionHandle struct {
	*session.Session
}

// Shutdown implements do.Shutdownable. It gives an outstanding save a last
// chance to finish before the cache underneath is closed.
func (h *SessionHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Close(ctx)
}

// ProvideSession provides the user's session. The local cache is optional:
// if it cannot be opened, the session runs against the remote only.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := do.Invoke[*drive.Store](i)
	if err != nil {
		return nil, err
	}
	yt, err := do.Invoke[*youtube.Client](i)
	if err != nil {
		return nil, err
	}

	deps := session.Deps{
		Store:    st,
		Platform: yt,
		Logger:   log.Logger,
	}
	var c cache.Cache
	if handle, err := do.Invoke[*CacheHandle](i); err != nil {
		log.Warn("Local cache unavailable, continuing without it", "error", err)
	} else {
		c = handle
	}
	deps.Cache = c

	sess := session.New(deps,
		session.WithDebounce(cfg.Debounce),
		session.WithBusyBackoff(cfg.BusyBackoff),
		session.WithRetryBackoff(cfg.RetryBackoff),
	)

	log.Debug("Session created", "session_id", sess.ID())
	return &SessionHandle{Session: sess}, nil
}

// ProvideFeedBuilder provides the triage feed builder over the session.
func ProvideFeedBuilder(i do.Injector) (*aggregator.Builder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	yt, err := do.Invoke[*youtube.Client](i)
	if err != nil {
		return nil, err
	}
	sess, err := do.Invoke[*SessionHandle](i)
	if err != nil {
		return nil, err
	}

	return aggregator.NewBuilder(yt, sess.Session,
		aggregator.WithWindow(cfg.FeedWindow()),
		aggregator.WithLogger(log.Logger),
	), nil
}
