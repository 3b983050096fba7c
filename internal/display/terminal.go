// Package display provides terminal output formatting for feedtriage.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/gauthierbraillon/feedtriage/internal/aggregator"
	"github.com/gauthierbraillon/feedtriage/internal/state"
	"github.com/gauthierbraillon/feedtriage/internal/youtube"
)

const (
	separator   = " • "
	titleMaxLen = 100
)

// TerminalFormatter formats feed items for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// WithNow returns a formatter that measures relative times against now.
func (f *TerminalFormatter) WithNow(now func() time.Time) *TerminalFormatter {
	return &TerminalFormatter{now: now}
}

// FormatItem formats a single feed item. n is its 1-based position.
func (f *TerminalFormatter) FormatItem(n int, item aggregator.FeedItem) string {
	lines := []string{
		fmt.Sprintf("[%d] %s", n, f.TruncateText(item.Title, titleMaxLen)),
		fmt.Sprintf("  by %s%s%s", item.Author, separator, f.FormatTimestamp(item.PublishedAt)),
		"  id: " + item.ID,
	}
	if item.URL != "" {
		lines = append(lines, "  "+item.URL)
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed formats the triage feed.
func (f *TerminalFormatter) FormatFeed(items []aggregator.FeedItem) string {
	if len(items) == 0 {
		return "No new videos. You're all caught up.\n"
	}

	formatted := make([]string, 0, len(items))
	for i, item := range items {
		formatted = append(formatted, f.FormatItem(i+1, item))
	}
	return strings.Join(formatted, "\n")
}

// FormatFeedSummary is the footer printed after the feed.
func (f *TerminalFormatter) FormatFeedSummary(feed *aggregator.Feed) string {
	s := fmt.Sprintf("%d videos from %d channels", len(feed.Items), feed.Playlists)
	if feed.Failed > 0 {
		s += fmt.Sprintf(" (%d could not be loaded)", feed.Failed)
	}
	return s + "\n"
}

// FormatWatchLater formats the watch-later queue. The playlist item ID is
// shown because removal works on it.
func (f *TerminalFormatter) FormatWatchLater(items []aggregator.FeedItem) string {
	if len(items) == 0 {
		return "Watch later is empty.\n"
	}

	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, f.TruncateText(item.Title, titleMaxLen))
		fmt.Fprintf(&b, "  by %s%sitem: %s\n", item.Author, separator, item.ItemID)
		if item.URL != "" {
			fmt.Fprintf(&b, "  %s\n", item.URL)
		}
	}
	return b.String()
}

// FormatPlaylists lists playlists, marking the one used as watch later.
func (f *TerminalFormatter) FormatPlaylists(playlists []youtube.Playlist, watchLater string) string {
	if len(playlists) == 0 {
		return "No playlists found.\n"
	}

	var b strings.Builder
	for _, pl := range playlists {
		marker := " "
		if pl.ID == watchLater {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s  %s (%d videos)\n", marker, pl.ID, pl.Title, pl.ItemCount)
	}
	return b.String()
}

// StateSummary is what the state command reports.
type StateSummary struct {
	State   *state.UserState
	Dirty   bool
	Pending int
	Session string
}

// FormatState formats a summary of the synchronized state.
func (f *TerminalFormatter) FormatState(s StateSummary) string {
	watchLater := s.State.WatchLater
	if watchLater == "" {
		watchLater = "(not set)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Skipped videos:    %d\n", len(s.State.Skip))
	fmt.Fprintf(&b, "Cached videos:     %d\n", len(s.State.Videos))
	fmt.Fprintf(&b, "Known channels:    %d\n", len(s.State.Chan2Playlist))
	fmt.Fprintf(&b, "Watch later:       %s\n", watchLater)
	if s.Session != "" {
		fmt.Fprintf(&b, "Session:           %s\n", s.Session)
	}
	if s.Dirty {
		fmt.Fprintf(&b, "Unsaved changes:   yes (%d pending)\n", s.Pending)
	}
	return b.String()
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
