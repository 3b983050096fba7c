package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrAuthDenied   = errors.New("authorization denied")
)

// CallbackServer receives the redirect at the end of the browser flow.
type CallbackServer struct {
	port int
}

// NewCallbackServer listens on localhost:port once WaitForCallback is called.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{port: port}
}

type callbackResult struct {
	code string
	err  error
}

// WaitForCallback serves /callback until a request arrives, ctx is done or
// timeout passes. It returns the authorization code when state matches.
func (s *CallbackServer) WaitForCallback(ctx context.Context, state string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan callbackResult, 1)
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			deliver(callbackResult{err: ErrInvalidState})
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrAuthDenied, e)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("%w: missing code", ErrAuthDenied)})
			return
		}
		_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
		deliver(callbackResult{code: code})
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return "", fmt.Errorf("failed to start callback server: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	select {
	case r := <-results:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("timed out waiting for authorization: %w", ctx.Err())
	}
}
