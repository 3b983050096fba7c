package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/feedtriage/internal/aggregator"
	"github.com/gauthierbraillon/feedtriage/internal/di/providers"
	"github.com/gauthierbraillon/feedtriage/internal/display"
	"github.com/gauthierbraillon/feedtriage/internal/session"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
	"github.com/gauthierbraillon/feedtriage/pkg/browser"
	"github.com/gauthierbraillon/feedtriage/pkg/oauth"
)

// maxWatchLaterVideos is how much of the watch-later playlist is listed.
const maxWatchLaterVideos = 50

const authTimeout = 5 * time.Minute

// newAuthCmd creates the auth subcommand.
func newAuthCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google",
		Long:  "Run the OAuth consent flow in the browser and save the token. Access is requested to YouTube and to this app's private Google Drive folder.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}

			redirectURL := fmt.Sprintf("http://localhost:%d/callback", port)
			flow := oauth.NewFlow(oauth.GoogleOAuthConfig(cfg.ClientID, cfg.ClientSecret, redirectURL))
			authURL, state := flow.GenerateAuthURL()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Opening browser for authorization...\n")
			if err := browser.Open(authURL); err != nil {
				fmt.Fprintf(out, "Could not open browser. Please visit:\n%s\n", authURL)
			}

			fmt.Fprintf(out, "Waiting for authorization...\n")
			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()

			code, err := oauth.NewCallbackServer(port).WaitForCallback(ctx, state, authTimeout)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintf(out, "Exchanging authorization code...\n")
			token, err := flow.ExchangeCode(ctx, code)
			if err != nil {
				return fmt.Errorf("token exchange failed: %w", err)
			}

			storage := do.MustInvoke[*oauth.TokenStorage](a.injector)
			if err := storage.Save(providers.TokenName, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintf(out, "Successfully authenticated!\n")
			fmt.Fprintf(out, "Token saved to: %s\n", cfg.ConfigDir)
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for OAuth callback server")

	return cmd
}

// buildFeed loads the session and builds the triage feed.
func (a *app) buildFeed(cmd *cobra.Command, limit, days int) (*session.Session, *aggregator.Feed, error) {
	if cmd.Flags().Changed("days") {
		if days <= 0 {
			return nil, nil, fmt.Errorf("--days must be positive")
		}
		a.config().FeedDays = days
	}

	sess, err := a.openSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	builder, err := do.Invoke[*aggregator.Builder](a.injector)
	if err != nil {
		return nil, nil, unwrapInvoke(err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	feed, err := builder.Build(ctx, limit)
	if err != nil {
		return sess, nil, fmt.Errorf("failed to build feed: %w", err)
	}
	return sess, feed, nil
}

// newFeedCmd creates the feed subcommand.
func newFeedCmd(a *app) *cobra.Command {
	var limit, days int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Display the triage feed",
		Long:  "Display recent uploads from your subscriptions that you have not skipped or queued yet, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, feed, err := a.buildFeed(cmd, limit, days)
			if err != nil {
				if sess != nil {
					_ = a.finish(cmd, sess)
				}
				return err
			}

			f := formatter()
			fmt.Fprint(cmd.OutOrStdout(), f.FormatFeed(feed.Items))
			fmt.Fprint(cmd.OutOrStdout(), "\n"+f.FormatFeedSummary(feed))

			// Building the feed caches metadata and channel playlists.
			return a.finish(cmd, sess)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of videos to display")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "How many days back to look (default from FEEDTRIAGE_FEED_DAYS)")

	return cmd
}

// newSkipCmd creates the skip subcommand.
func newSkipCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <video-id>...",
		Short: "Mark videos as triaged",
		Long:  "Mark one or more videos as triaged so they no longer show up in the feed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			sess.SkipAll(args)
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d %s\n", len(args), plural(len(args), "video"))
			return a.finish(cmd, sess)
		},
	}
}

// newSkipAllCmd creates the skip-all subcommand.
func newSkipAllCmd(a *app) *cobra.Command {
	var limit, days int

	cmd := &cobra.Command{
		Use:   "skip-all",
		Short: "Skip every video in the current feed",
		Long:  "Mark every video the feed command would display as triaged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, feed, err := a.buildFeed(cmd, limit, days)
			if err != nil {
				if sess != nil {
					_ = a.finish(cmd, sess)
				}
				return err
			}

			ids := make([]string, 0, len(feed.Items))
			for _, item := range feed.Items {
				ids = append(ids, item.ID)
			}
			sess.SkipAll(ids)

			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d %s\n", len(ids), plural(len(ids), "video"))
			return a.finish(cmd, sess)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of videos to skip")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "How many days back to look (default from FEEDTRIAGE_FEED_DAYS)")

	return cmd
}

// newLaterCmd creates the later subcommand.
func newLaterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "later <video-id>",
		Short: "Add a video to watch later",
		Long:  "Add a video to your watch-later playlist. Once added it no longer shows up in the feed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			if err := sess.AddToWatchLater(ctx, args[0]); err != nil {
				if errors.Is(err, session.ErrNoWatchLater) {
					return fmt.Errorf("%w (run 'feedtriage playlists use <playlist-id>')", err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to watch later\n", args[0])
			return a.finish(cmd, sess)
		},
	}
}

// newWatchLaterCmd creates the watch-later subcommand.
func newWatchLaterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch-later",
		Short: "List the watch-later queue",
		Long:  "List the videos in your watch-later playlist.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			playlist := sess.WatchLater()
			if playlist == "" {
				return session.ErrNoWatchLater
			}

			yt, err := do.Invoke[*youtube.Client](a.injector)
			if err != nil {
				return unwrapInvoke(err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			items, err := yt.PlaylistItems(ctx, playlist, maxWatchLaterVideos)
			if err != nil {
				return err
			}

			converted := make([]aggregator.FeedItem, 0, len(items))
			for _, item := range items {
				converted = append(converted, aggregator.FromPlaylistItem(item))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter().FormatWatchLater(converted))
			return a.finish(cmd, sess)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <playlist-item-id>",
		Short: "Remove an entry from watch later",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			if err := sess.RemoveFromWatchLater(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from watch later\n", args[0])
			return a.finish(cmd, sess)
		},
	})

	return cmd
}

// newPlaylistsCmd creates the playlists subcommand.
func newPlaylistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "List your playlists",
		Long:  "List the playlists you own. The one marked with * is used as watch later.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter().FormatPlaylists(sess.Playlists(), sess.WatchLater()))
			return a.finish(cmd, sess)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "use <playlist-id>",
		Short: "Use a playlist as watch later",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			if playlists := sess.Playlists(); len(playlists) > 0 && !ownsPlaylist(playlists, args[0]) {
				return fmt.Errorf("unknown playlist %q (run 'feedtriage playlists')", args[0])
			}
			sess.SetWatchLaterPlaylist(args[0])

			fmt.Fprintf(cmd.OutOrStdout(), "Watch later set to %s\n", args[0])
			return a.finish(cmd, sess)
		},
	})

	return cmd
}

func ownsPlaylist(playlists []youtube.Playlist, id string) bool {
	for _, pl := range playlists {
		if pl.ID == id {
			return true
		}
	}
	return false
}

// newStateCmd creates the state subcommand.
func newStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Summarize the synchronized state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter().FormatState(display.StateSummary{
				State:   sess.Snapshot(),
				Dirty:   sess.Dirty(),
				Pending: sess.Stats().Pending,
				Session: sess.ID(),
			}))
			return a.finish(cmd, sess)
		},
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
