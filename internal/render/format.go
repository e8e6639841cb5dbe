// Package render formats activity entries and text outputs for the chat
// sink and for terminal display.
package render

import (
	"fmt"
	"strings"

	"github.com/3gx/ccslack/internal/activity"
)

// TruncationMarker is appended to text deliveries cut at the char limit.
const TruncationMarker = "… [truncated]"

// FormatDuration formats milliseconds into a compact human duration.
// e.g., 850 -> "0.9s", 12400 -> "12s", 312000 -> "5m 12s"
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	secs := ms / 1000
	switch {
	case secs >= 3600:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	case secs >= 60:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs >= 10:
		return fmt.Sprintf("%ds", secs)
	default:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
}

// FormatChars formats a character count with human-readable suffixes.
func FormatChars(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Truncate bounds a text delivery at limit runes with a visible marker.
// A limit of 0 or less means unbounded.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + TruncationMarker
}

// entryLine renders one activity entry as a single sink text line.
func entryLine(e activity.Entry) string {
	switch e.Kind {
	case activity.KindThinking:
		line := "✱ Thinking"
		if e.Preview != "" {
			line += ": " + firstLine(e.Preview)
		}
		return line
	case activity.KindToolStart:
		return "⚒ " + e.ToolName + "…"
	case activity.KindToolComplete:
		return fmt.Sprintf("⚒ %s (%s)", e.ToolName, FormatDuration(e.DurationMS))
	case activity.KindGenerating:
		return fmt.Sprintf("▍ Generating (%s chars)", FormatChars(e.FullLength))
	case activity.KindError:
		return "✗ " + firstLine(e.Detail)
	case activity.KindAborted:
		return "■ Aborted"
	case activity.KindSessionChanged:
		return "─── session changed: " + e.Detail + " ───"
	case activity.KindContextCleared:
		return "─── context cleared ───"
	case activity.KindModeChanged:
		return "─── mode changed: " + e.Detail + " ───"
	}
	return ""
}

// ActivityMessage renders an activity window into one sink message body.
// Separators render on their own visually distinct lines.
func ActivityMessage(entries []activity.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		line := entryLine(e)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// UserInputMessage renders a mirrored user input.
func UserInputMessage(text string) string {
	return "❯ " + text
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
