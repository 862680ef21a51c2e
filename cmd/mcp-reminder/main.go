// Command mcp-reminder provides an MCP server over the reminder-bot database.
//
// It lets local agents add, list, complete and snooze the same reminders
// the bot fires.
//
// Usage:
//
//	./mcp-reminder          # Start MCP server (stdio)
//	./mcp-reminder --help   # Show help
//
// Configuration is read exactly like reminder-bot (config file, .env,
// DATABASE_STRING).
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/reminder-bot/internal/config"
	"github.com/notexe/reminder-bot/internal/reminder"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	cfg, err := config.Load(config.GetDefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := reminder.Open(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	s := reminder.NewServer(store)

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`MCP Reminder Server - reminder-bot reminders via MCP protocol

USAGE:
    mcp-reminder          Start MCP server (communicates via stdio)
    mcp-reminder --help   Show this help

ENVIRONMENT:
    DATABASE_STRING   Database to serve (sqlite path or postgres:// URL)
                      Default: ~/.reminder-bot/reminders.db

TOOLS:
    add_reminder       Add a reminder (name, time as HHMM, daily)
    list_reminders     List reminders by due time (optional status filter)
    complete_reminder  Acknowledge a reminder
    snooze_reminder    Move a reminder's next due time

CONFIGURATION:
    Add to your MCP client config:
    {
      "mcpServers": {
        "reminder": {
          "command": "/path/to/mcp-reminder",
          "args": []
        }
      }
    }`)
}
