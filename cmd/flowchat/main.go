package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/MikeSquared-Agency/flowchat/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx, cfg)
	defer a.close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "login":
		err = a.cmdLogin(args)
	case "register":
		err = a.cmdRegister(args)
	case "logout":
		err = a.cmdLogout()
	case "chats":
		err = a.cmdChats(args)
	case "show":
		err = a.cmdShow(args)
	case "send":
		err = a.cmdSend(args)
	case "clear":
		err = a.cmdClear()
	case "profile":
		err = a.cmdProfile(args)
	case "admin":
		err = a.cmdAdmin(args)
	case "tui":
		err = a.cmdTUI()
	case "serve":
		err = a.cmdServe()
	case "archive":
		err = a.cmdArchive(args)
	case "archives":
		err = a.cmdArchives()
	case "watch":
		err = a.cmdWatch(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		a.close()
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("flowchat - command line client for the flow chatbot backend")
	fmt.Println()
	fmt.Println("Usage: flowchat <command> [args]")
	fmt.Println()
	yellow.Println("Account:")
	fmt.Println("  login [--email E]              Sign in (password is prompted)")
	fmt.Println("  register --email E --name N --phone P --plan PLAN --site URL")
	fmt.Println("                                 Create an account and bot from your website")
	fmt.Println("  logout                         Forget the stored session")
	fmt.Println("  profile                        Show your profile")
	fmt.Println("  profile edit [--calendar T] [--definition D] [--password]")
	fmt.Println()
	yellow.Println("Conversations:")
	fmt.Println("  chats [filter]                 List conversations")
	fmt.Println("  show <id>                      Print one conversation")
	fmt.Println("  send <text...>                 Send a message to the test conversation")
	fmt.Println("  clear                          Clear the test conversation")
	fmt.Println("  tui                            Interactive terminal composer")
	fmt.Println("  serve                          Local web viewer and JSON API")
	fmt.Println()
	yellow.Println("Archive and events:")
	fmt.Println("  archive <id>                   Save a conversation to Postgres")
	fmt.Println("  archives                       List saved conversations")
	fmt.Println("  watch [--archive]              Print chat events from NATS, optionally archiving sends")
	fmt.Println()
	yellow.Println("Admin:")
	fmt.Println("  admin users                    List accounts")
	fmt.Println("  admin user <id>                Show an account and its conversations")
	fmt.Println("  admin delete <id>              Delete an account")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  FLOWCHAT_API_URL               Backend URL (default: http://localhost:5137)")
	fmt.Println("  FLOWCHAT_SESSION_FILE          Session file (default: ~/.config/flowchat/session.json)")
	fmt.Println("  FLOWCHAT_SESSION_TTL_HOURS     Session lifetime in hours (default: 24)")
	fmt.Println("  FLOWCHAT_PORT                  Port for serve (default: 8760)")
	fmt.Println("  FLOWCHAT_CONVERSATION          Conversation to write to (default: testchat)")
	fmt.Println("  FLOWCHAT_CONFIG                Optional YAML config file")
	fmt.Println("  NATS_URL, NATS_TOKEN           Publish chat events (optional)")
	fmt.Println("  DATABASE_URL                   Postgres for archive (optional)")
	fmt.Println("  LOG_LEVEL                      debug, info, warn or error")
	fmt.Println()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
