// Package main provides the feedtriage CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/di"
	"github.com/gauthierbraillon/feedtriage/internal/di/providers"
	"github.com/gauthierbraillon/feedtriage/internal/display"
	"github.com/gauthierbraillon/feedtriage/internal/session"
)

const defaultTimeout = 30 * time.Second

func main() {
	a := &app{}
	root := newRootCmd(a)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := guardInterrupt(context.Background(), sigs, a.dirty, os.Stderr)

	err := root.ExecuteContext(ctx)
	cancel()
	signal.Stop(sigs)
	a.shutdown()

	if err != nil {
		os.Exit(1)
	}
}

// app holds what the commands of one invocation share.
type app struct {
	injector *do.RootScope
	timeout  time.Duration
	sess     atomic.Pointer[session.Session]
}

// init loads the configuration and builds the container. Services are
// resolved lazily by the commands that need them.
func (a *app) init() error {
	if a.injector != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.injector = di.NewContainerWithConfig(cfg)
	return nil
}

func (a *app) config() *config.Config {
	return do.MustInvoke[*config.Config](a.injector)
}

func (a *app) shutdown() {
	if a.injector == nil {
		return
	}
	if err := di.Shutdown(a.injector); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: shutdown did not complete cleanly")
	}
}

func (a *app) dirty() bool {
	s := a.sess.Load()
	return s != nil && s.Dirty()
}

// openSession resolves and loads the session. A remote failure is reported
// and the command carries on with the local state.
func (a *app) openSession(cmd *cobra.Command) (*session.Session, error) {
	handle, err := do.Invoke[*providers.SessionHandle](a.injector)
	if err != nil {
		return nil, unwrapInvoke(err)
	}
	sess := handle.Session
	a.sess.Store(sess)

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	if err := sess.Load(ctx); err != nil {
		if !errors.Is(err, session.ErrLoad) {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: working offline, %v\n", err)
	}
	return sess, nil
}

// finish waits for pending saves, bounded by --timeout.
func (a *app) finish(cmd *cobra.Command, sess *session.Session) error {
	if !sess.Dirty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	if err := sess.Wait(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unsaved changes (%d pending)\n", sess.Stats().Pending)
		return fmt.Errorf("unsaved changes: %w", err)
	}
	return nil
}

// unwrapInvoke surfaces the provider error behind a container failure so
// users see "not authenticated" rather than the resolution chain.
func unwrapInvoke(err error) error {
	switch {
	case errors.Is(err, providers.ErrNotAuthenticated):
		return providers.ErrNotAuthenticated
	case errors.Is(err, config.ErrMissingCredentials):
		return config.ErrMissingCredentials
	}
	return err
}

// guardInterrupt returns a context cancelled by a signal on sigs. While
// dirty reports unsaved changes the first signal only prints a warning so
// an outstanding save gets a chance to complete.
func guardInterrupt(parent context.Context, sigs <-chan os.Signal, dirty func() bool, w io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		warned := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if dirty() && !warned {
					warned = true
					fmt.Fprintln(w, "Unsaved changes are being written. Interrupt again to quit without saving.")
					continue
				}
				cancel()
				return
			}
		}
	}()
	return ctx, cancel
}

// newRootCmd creates the root command for feedtriage CLI.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "feedtriage",
		Short:        "Triage your YouTube subscription feed",
		Long:         "Feedtriage lists recent uploads from the channels you subscribe to so you can skip them or queue them in a watch-later playlist. Your choices are synced through Google Drive.",
		Version:      currentVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.SetVersionTemplate("feedtriage version {{.Version}}\n")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", defaultTimeout, "How long to wait for remote calls and pending saves")

	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newFeedCmd(a))
	rootCmd.AddCommand(newSkipCmd(a))
	rootCmd.AddCommand(newSkipAllCmd(a))
	rootCmd.AddCommand(newLaterCmd(a))
	rootCmd.AddCommand(newWatchLaterCmd(a))
	rootCmd.AddCommand(newPlaylistsCmd(a))
	rootCmd.AddCommand(newStateCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd
}

func formatter() *display.TerminalFormatter {
	return display.NewTerminalFormatter()
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  "Show the feedtriage configuration resolved from defaults, .env and FEEDTRIAGE_* variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			out := cmd.OutOrStdout()

			credentials := "not set"
			if cfg.RequireCredentials() == nil {
				credentials = "set"
			}

			fmt.Fprintf(out, "Config directory: %s\n", cfg.ConfigDir)
			fmt.Fprintf(out, "Cache directory:  %s\n", cfg.CacheDir())
			fmt.Fprintf(out, "OAuth client:     %s\n", credentials)
			fmt.Fprintf(out, "Feed window:      %d days\n", cfg.FeedDays)
			fmt.Fprintf(out, "Save debounce:    %s\n", cfg.Debounce)
			fmt.Fprintf(out, "Retry backoff:    %s\n", cfg.RetryBackoff)
			fmt.Fprintf(out, "Rate limit:       %g req/s\n", cfg.RateLimit)
			if cfg.APIURL != "" {
				fmt.Fprintf(out, "API URL:          %s\n", cfg.APIURL)
			}
			if cfg.DriveURL != "" {
				fmt.Fprintf(out, "Drive URL:        %s\n", cfg.DriveURL)
			}
			return nil
		},
	}
}
