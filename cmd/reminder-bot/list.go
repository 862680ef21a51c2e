package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/notexe/reminder-bot/internal/command"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// printListing renders the same reminders the chat "list" command shows.
func printListing(ctx context.Context, w io.Writer, store *reminder.Store) error {
	var pending []reminder.Reminder
	err := store.InTx(ctx, func(tx *reminder.Tx) error {
		var err error
		pending, err = tx.FindPendingByDueTime(ctx)
		return err
	})
	if err != nil {
		return err
	}

	upcoming := command.DueAfter(pending, timelabel.Now())
	if len(upcoming) == 0 {
		_, err := fmt.Fprintln(w, command.NoRemindersMessage)
		return err
	}

	table := command.RenderTable(upcoming)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err = fmt.Fprintln(w, table)
		return err
	}

	rendered, err := renderer.Render(table)
	if err != nil {
		_, err = fmt.Fprintln(w, table)
		return err
	}

	_, err = fmt.Fprintln(w, strings.TrimSpace(rendered))
	return err
}
