// Command reminder-bot runs the chat-driven reminder scheduler.
//
// Usage:
//
//	./reminder-bot              # Poll Telegram and fire reminders
//	./reminder-bot --console    # Use the terminal instead of Telegram
//	./reminder-bot --list       # Print reminders still due today and exit
//	./reminder-bot --check      # Validate configuration and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/notexe/reminder-bot/internal/command"
	"github.com/notexe/reminder-bot/internal/config"
	"github.com/notexe/reminder-bot/internal/console"
	"github.com/notexe/reminder-bot/internal/logs"
	"github.com/notexe/reminder-bot/internal/notify"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/scheduler"
	"github.com/notexe/reminder-bot/internal/telegram"
)

func main() {
	configPath := pflag.String("config", config.GetDefaultConfigPath(), "Path to configuration file")
	consoleMode := pflag.Bool("console", false, "Read commands from the terminal instead of Telegram")
	list := pflag.Bool("list", false, "Print pending reminders due later today and exit")
	check := pflag.Bool("check", false, "Validate configuration and exit")
	logLevel := pflag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if *consoleMode || *list {
		cfg.Console = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logs.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *check {
		printCheck(cfg)
		return
	}

	logger := logs.New(os.Stderr, cfg.Log.Format, level)

	store, err := reminder.Open(cfg.Database.DSN, reminder.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *list {
		if err := printListing(ctx, os.Stdout, store); err != nil {
			logger.Error("failed to list reminders", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, store, logger, stop); err != nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store *reminder.Store, logger *slog.Logger, stop context.CancelFunc) error {
	var gateway notify.Gateway
	if cfg.Console {
		lastID, err := store.MaxNotificationID(ctx)
		if err != nil {
			return err
		}
		cg := console.New(os.Stdout, lastID)
		go func() {
			if err := cg.ReadLines(ctx); err != nil {
				logger.Error("console input failed", "error", err)
			}
			stop()
		}()
		gateway = cg
	} else {
		client := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.Token, cfg.Telegram.ChatID,
			cfg.TelegramTimeout(), logger)
		gateway = notify.Retry(client, cfg.Telegram.RetryAttempts, cfg.RetryBaseDelay(), logger)
	}

	interpreter := command.New(cfg.Reminders.Delimiter, gateway, logger,
		command.WithErrorReports(cfg.Commands.ReportErrors))
	engine := scheduler.NewEngine(gateway, cfg.Reminders.SnoozeMinutes, cfg.ResetTime(), logger)
	s := scheduler.New(store, gateway, interpreter, engine, cfg.PollInterval(), logger)

	if err := s.Announce(ctx); err != nil {
		logger.Warn("startup notice not sent", "error", err)
	}

	return s.Run(ctx)
}

func printCheck(cfg *config.Config) {
	fmt.Println("Checking reminder-bot configuration...")
	fmt.Println()

	if cfg.Console {
		fmt.Println("✓ Transport: console")
	} else {
		masked := cfg.Telegram.Token
		if len(masked) > 10 {
			masked = masked[:10] + "..." + masked[len(masked)-4:]
		}
		fmt.Printf("✓ Telegram token: %s\n", masked)
		fmt.Printf("✓ Telegram chat: %s\n", cfg.Telegram.ChatID)
	}
	fmt.Printf("✓ Database: %s\n", cfg.Database.DSN)
	fmt.Printf("✓ Snooze: %d minutes\n", cfg.Reminders.SnoozeMinutes)
	fmt.Printf("✓ Daily reset: %s\n", cfg.ResetTime())
	fmt.Printf("✓ Delimiter: %q\n", cfg.Reminders.Delimiter)
	fmt.Printf("✓ Poll interval: %s\n", cfg.PollInterval())
	fmt.Println()
	fmt.Println("Configuration complete! Bot is ready to run.")
}
