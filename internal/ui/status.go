package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains daemon/index health information (§SPEC_FULL.md D).
type StatusInfo struct {
	// Index stats
	RootLabel     string    `json:"root_label"`
	TotalServices int       `json:"total_services"`
	TotalWords    int       `json:"total_words"`
	LastIndexed   time.Time `json:"last_indexed"`

	// Storage sizes (in bytes)
	CommonSize    int64 `json:"common_size"`
	WordIndexSize int64 `json:"word_index_size"`
	ContentSize   int64 `json:"content_size"`
	TotalSize     int64 `json:"total_size"`

	// Component status
	CrawlerStage  string `json:"crawler_stage"` // "crawling", "idle"
	DaemonStatus  string `json:"daemon_status"` // "running", "stopped", "error"
	PID           int    `json:"pid,omitempty"`
	LiveSearches  int    `json:"live_searches"` // active live-search count
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	// Header
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("trackerd status: "+info.RootLabel))

	// Index stats
	_, _ = fmt.Fprintf(r.out, "  Services indexed: %d\n", info.TotalServices)
	_, _ = fmt.Fprintf(r.out, "  Words indexed:    %d\n", info.TotalWords)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed:     %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(r.out)

	// Storage sizes
	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Common:      %s\n", FormatBytes(info.CommonSize))
	_, _ = fmt.Fprintf(r.out, "    Word index:  %s\n", FormatBytes(info.WordIndexSize))
	_, _ = fmt.Fprintf(r.out, "    Content:     %s\n", FormatBytes(info.ContentSize))
	_, _ = fmt.Fprintf(r.out, "    Total:       %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(r.out)

	// Daemon status
	_, _ = fmt.Fprintln(r.out, "  Daemon:")
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.DaemonStatus))
	if info.PID != 0 {
		_, _ = fmt.Fprintf(r.out, "    PID:    %d\n", info.PID)
	}
	_, _ = fmt.Fprintf(r.out, "    Live searches: %d\n", info.LiveSearches)
	_, _ = fmt.Fprintln(r.out)

	// Crawler status
	if info.CrawlerStage != "" {
		_, _ = fmt.Fprintf(r.out, "  Crawler: %s\n", r.renderStatus(info.CrawlerStage))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
