package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/3gx/ccslack/internal/activity"
	"github.com/3gx/ccslack/internal/events"
)

// Theme colors (Flexoki Dark)
var (
	colorTextDim = lipgloss.Color("#575653")
	colorText    = lipgloss.Color("#FFFCF0")
	colorAccent  = lipgloss.Color("#3AA99F")
	colorGreen   = lipgloss.Color("#879A39")
	colorOrange  = lipgloss.Color("#DA702C")
	colorRed     = lipgloss.Color("#D14D41")
	colorBlue    = lipgloss.Color("#4385BE")
	colorPurple  = lipgloss.Color("#8B7EC8")
)

var (
	dimStyle      = lipgloss.NewStyle().Foreground(colorTextDim)
	textStyle     = lipgloss.NewStyle().Foreground(colorText)
	toolStyle     = lipgloss.NewStyle().Foreground(colorBlue)
	thinkStyle    = lipgloss.NewStyle().Foreground(colorPurple)
	genStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	errStyle      = lipgloss.NewStyle().Foreground(colorRed)
	turnStyle     = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	sepStyle      = lipgloss.NewStyle().Foreground(colorOrange)
	headerStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	keyValueStyle = lipgloss.NewStyle().Foreground(colorTextDim)
)

// TerminalEvent renders a canonical event as a styled terminal line for
// the live tail view.
func TerminalEvent(ev events.Event) string {
	switch ev.Type {
	case events.TypeInit:
		return headerStyle.Render("● session " + ev.SessionID)
	case events.TypeThinkingStart:
		return thinkStyle.Render("✱ thinking…")
	case events.TypeThinkingComplete:
		return thinkStyle.Render("✱ thinking") + dimStyle.Render(fmt.Sprintf(" (%d chars)", len([]rune(ev.Text))))
	case events.TypeToolStart:
		return toolStyle.Render("⚒ "+ev.ToolName) + dimStyle.Render(" started")
	case events.TypeToolComplete:
		return toolStyle.Render("⚒ "+ev.ToolName) + dimStyle.Render(" ("+FormatDuration(ev.DurationMS)+")")
	case events.TypeText:
		return genStyle.Render("▍ text") + dimStyle.Render(fmt.Sprintf(" %s chars", FormatChars(ev.CharCount)))
	case events.TypeTurnEnd:
		return turnStyle.Render("── turn end ") + dimStyle.Render("("+FormatDuration(ev.TurnDurationMS)+")")
	}
	return ""
}

// TerminalEntry renders an activity entry as a styled terminal line.
func TerminalEntry(e activity.Entry) string {
	line := entryLine(e)
	switch {
	case e.Separator():
		return sepStyle.Render(line)
	case e.Kind == activity.KindError:
		return errStyle.Render(line)
	default:
		return textStyle.Render(line)
	}
}

// StatusLine renders one key/value status row for CLI output.
func StatusLine(key, value string) string {
	return keyValueStyle.Render(fmt.Sprintf("  %-14s", key+":")) + textStyle.Render(value)
}
