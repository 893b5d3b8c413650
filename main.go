package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"stocktool/internal/app"
	"stocktool/internal/config"
	"stocktool/internal/mock"
	sdk "stocktool/sdk/chat"
)

func main() {
	cliApp := &cli.App{
		Name:  "stocktool",
		Usage: "Terminal client for the stocktool market assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Assistant API base URL",
				EnvVars: []string{"STOCKTOOL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model to request",
				EnvVars: []string{"STOCKTOOL_MODEL"},
			},
			&cli.StringFlag{
				Name:    "locale",
				Usage:   "Answer language (en or ja)",
				EnvVars: []string{"STOCKTOOL_LOCALE"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for the assistant API",
				EnvVars: []string{"STOCKTOOL_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for the local conversation database",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Keep conversation history in memory only",
			},
			&cli.BoolFlag{
				Name:    "resume",
				Aliases: []string{"r"},
				Usage:   "Resume the most recent conversation",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:  "mock-server",
				Usage: "Run a local mock assistant API for development",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   8000,
						Usage:   "Port to listen on",
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "Require this bearer token on chat requests",
					},
				},
				Action: func(c *cli.Context) error {
					return mock.NewServer(c.Int("port"), c.String("token")).Start()
				},
			},
			{
				Name:  "health",
				Usage: "Check connectivity to the assistant API",
				Action: func(c *cli.Context) error {
					prefs, err := config.LoadPreferences()
					if err != nil {
						return err
					}
					serverURL := firstNonEmpty(c.String("server"), prefs.ServerURL)

					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()

					health, err := sdk.NewClient(serverURL).Health(ctx)
					if err != nil {
						return fmt.Errorf("health check against %s: %w", serverURL, err)
					}
					fmt.Printf("%s: %s (model %s)\n", serverURL, health.Status, health.Model)
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runTUI(c *cli.Context) error {
	logger, logFile := openLogger()
	if logFile != nil {
		defer logFile.Close()
	}
	sdk.SetLogger(logger)

	prefs, err := config.LoadPreferences()
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	serverURL := firstNonEmpty(c.String("server"), prefs.ServerURL)
	modelID := firstNonEmpty(c.String("model"), prefs.ModelID)
	locale := sdk.Locale(firstNonEmpty(c.String("locale"), prefs.Locale))

	var opts []sdk.ClientOption
	if token := c.String("token"); token != "" {
		opts = append(opts, sdk.WithTokenSource(
			sdk.NewRefreshingToken(token, serverURL+"/v1/auth/refresh", nil)))
	}
	client := sdk.NewClient(serverURL, opts...)

	store, err := openStore(c, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	resume := ""
	if c.Bool("resume") {
		if last, err := config.GetLastConversation(); err == nil && last != nil {
			resume = last.ConversationID
		}
	}

	// Remember effective settings for the next run.
	prefs.ServerURL = serverURL
	prefs.ModelID = modelID
	prefs.Locale = string(locale)
	if err := config.SavePreferences(prefs); err != nil {
		logger.Warn("could not save preferences", "error", err)
	}

	program := tea.NewProgram(app.New(app.Options{
		Client:  client,
		Store:   store,
		ModelID: modelID,
		Locale:  locale,
		Resume:  resume,
	}), tea.WithAltScreen())

	_, err = program.Run()
	return err
}

// openLogger builds the SDK logger from LOG_LEVEL. Output goes to a file
// because the TUI owns the terminal's alternate screen.
func openLogger() (*sdk.Logger, *os.File) {
	if os.Getenv("LOG_LEVEL") == "" {
		return sdk.NewLoggerFromEnv(nil), nil
	}
	dataDir, err := config.DataDir()
	if err != nil {
		return sdk.NewLoggerFromEnv(nil), nil
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return sdk.NewLoggerFromEnv(nil), nil
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "stocktool.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return sdk.NewLoggerFromEnv(nil), nil
	}
	return sdk.NewLoggerFromEnv(f), f
}

func openStore(c *cli.Context, logger *sdk.Logger) (*sdk.Store, error) {
	if c.Bool("memory") {
		return sdk.NewMemoryStore(), nil
	}

	dataDir := c.String("data-dir")
	if dataDir == "" {
		var err error
		dataDir, err = config.DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := sdk.OpenBadgerStore(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open conversation database: %w", err)
	}
	return store, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
