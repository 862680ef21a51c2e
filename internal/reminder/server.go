package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/reminder-bot/internal/timelabel"
)

const (
	serverName    = "reminder"
	serverVersion = "1.0.0"
)

// Status filters for list_reminders.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Server is the MCP server for reminder management.
type Server struct {
	mcpServer *server.MCPServer
	store     *Store
}

// NewServer creates a new Reminder MCP server backed by the given store.
func NewServer(store *Store) *Server {
	s := &Server{
		store: store,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a reminder that fires at a time of day, optionally every day"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Reminder name")),
			mcp.WithString("time", mcp.Required(), mcp.Description("Time of day as HHMM (e.g. 0930)")),
			mcp.WithBoolean("daily", mcp.Description("Repeat every day (default: false)")),
		),
		s.handleAddReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders ordered by due time, optionally filtered by status (pending or completed)"),
			mcp.WithString("status", mcp.Description("Filter by status: pending, completed, or empty for all")),
		),
		s.handleListReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Acknowledge a reminder, marking it completed and clearing any snooze"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("snooze_reminder",
			mcp.WithDescription("Move a reminder's next due time to the given HHMM time"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("until", mcp.Required(), mcp.Description("New due time as HHMM")),
		),
		s.handleSnoozeReminder,
	)
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	at, err := timelabel.Parse(req.GetString("time", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid time: %v (use HHMM, e.g. 0930)", err)), nil
	}

	r := Reminder{
		Name:  name,
		Daily: req.GetBool("daily", false),
		Time:  at,
	}
	if err := s.store.InTx(ctx, func(tx *Tx) error {
		_, err := tx.Create(ctx, &r)
		return err
	}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add reminder: %v", err)), nil
	}

	output, _ := json.MarshalIndent(r, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")

	var reminders []Reminder
	err := s.store.InTx(ctx, func(tx *Tx) error {
		var err error
		switch status {
		case StatusPending:
			reminders, err = tx.FindPendingByDueTime(ctx)
		case StatusCompleted, "":
			reminders, err = tx.All(ctx)
		default:
			return fmt.Errorf("unknown status %q", status)
		}
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}

	if status == StatusCompleted {
		completed := reminders[:0]
		for _, r := range reminders {
			if r.Completed {
				completed = append(completed, r)
			}
		}
		reminders = completed
	}

	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	output, _ := json.MarshalIndent(reminders, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	err := s.update(ctx, id, func(r *Reminder) error {
		r.Acknowledge()
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d marked as completed.", id)), nil
}

func (s *Server) handleSnoozeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	until, err := timelabel.Parse(req.GetString("until", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid until: %v", err)), nil
	}

	err = s.update(ctx, id, func(r *Reminder) error {
		if r.Completed {
			return fmt.Errorf("reminder %d is already completed", id)
		}
		r.SnoozeTo(until)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to snooze reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d snoozed until %s.", id, until)), nil
}

func (s *Server) update(ctx context.Context, id int64, mutate func(r *Reminder) error) error {
	return s.store.InTx(ctx, func(tx *Tx) error {
		r, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(r); err != nil {
			return err
		}
		return tx.Save(ctx, *r)
	})
}

func requireID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	idFloat := req.GetFloat("id", -1)
	if idFloat < 1 {
		return 0, mcp.NewToolResultError("id is required and must be a positive number")
	}
	return int64(idFloat), nil
}

