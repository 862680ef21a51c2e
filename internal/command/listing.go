package command

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// NoRemindersMessage is sent for "list" when nothing is due later today.
const NoRemindersMessage = "No reminders left today!"

// markdownEscaper escapes the characters MarkdownV2 treats as markup.
var markdownEscaper = func() *strings.Replacer {
	const special = "_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, len(special)*2)
	for _, c := range special {
		pairs = append(pairs, string(c), `\`+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

// DueAfter keeps the pending reminders whose due time is later than now,
// preserving order.
func DueAfter(reminders []reminder.Reminder, now timelabel.Label) []reminder.Reminder {
	var out []reminder.Reminder
	for _, r := range reminders {
		if r.Completed {
			continue
		}
		if now.Before(r.DueAt()) {
			out = append(out, r)
		}
	}
	return out
}

// RenderTable renders reminders as a pipe table with name, time and
// snooze_until columns.
func RenderTable(reminders []reminder.Reminder) string {
	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers("name", "time", "snooze_until")

	for _, r := range reminders {
		t.Row(r.Name, r.Time.String(), r.SnoozeUntil.String())
	}
	return t.String()
}

// EscapeMarkdown escapes text for a MarkdownV2 message.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// FormatListing renders reminders as an escaped MarkdownV2 code block.
func FormatListing(reminders []reminder.Reminder) string {
	return "```\n" + EscapeMarkdown(RenderTable(reminders)) + "\n```"
}
