package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"LocalChat/internal/backend"
	"LocalChat/internal/catalog"
	"LocalChat/internal/chatbot"
	"LocalChat/internal/config"
	"LocalChat/internal/console"
	"LocalChat/internal/render"
	"LocalChat/internal/store"
	"LocalChat/internal/telemetry"
)

type flags struct {
	configPath string
	ollamaURL  string
	timeout    string
	model      string
	dbPath     string
	logDir     string
	style      string
	width      int
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "localchat",
		Short: "Chat with a local Ollama model",
		Long: `localchat is a terminal chat client for a local Ollama server.
The conversation is stored in SQLite and restored on the next start.

Examples:
  localchat                          Start chatting with the first available model
  localchat -m llama3:latest         Chat with a specific model
  localchat --db ~/chats/work.db     Use a different history file`,
		Version:       telemetry.ServiceVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			if err := run(cmd.Context(), cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to TOML config file (default $"+config.EnvConfig+")")
	cmd.Flags().StringVar(&f.ollamaURL, "ollama-url", "", "Ollama server URL (default "+config.DefaultOllamaURL+")")
	cmd.Flags().StringVar(&f.timeout, "timeout", "", "Per-message timeout, e.g. 300s or 300")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model to chat with (default: first model the server lists)")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite history file (default "+config.DefaultDBPath+")")
	cmd.Flags().StringVar(&f.logDir, "log-dir", "", "Directory for log, trace and metric files")
	cmd.Flags().StringVar(&f.style, "style", "", "Markdown style: auto, dark, light, notty, ascii, dracula, tokyo-night, pink")
	cmd.Flags().IntVar(&f.width, "width", 0, "Word wrap width for rendered replies")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")

	return cmd
}

// loadConfig layers command line flags over the file and environment
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("ollama-url") {
		cfg.OllamaURL = f.ollamaURL
	}
	if changed("timeout") {
		d, err := config.ParseTimeout(f.timeout)
		if err != nil {
			return config.Config{}, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = config.Duration(d)
	}
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("db") {
		cfg.DBPath = f.dbPath
	}
	if changed("log-dir") {
		cfg.LogDir = f.logDir
	}
	if changed("style") {
		cfg.RenderStyle = f.style
	}
	if changed("width") {
		cfg.Width = f.width
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if !render.ValidStyle(cfg.RenderStyle) {
		return config.Config{}, fmt.Errorf("invalid config: unknown render style %q", cfg.RenderStyle)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	logger.Info("starting", "ollama_url", cfg.OllamaURL, "db", cfg.DBPath, "timeout", cfg.Timeout.String())

	st, err := store.Open(ctx, cfg.DBPath, cfg.SessionKey, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	client := backend.NewClient(cfg.OllamaURL, nil, logger)
	models := catalog.New(client, logger, tracer)

	bot := chatbot.New(st, client, chatbot.Options{
		Model:   cfg.Model,
		Timeout: cfg.Timeout.Std(),
		Logger:  logger,
		Tracer:  tracer,
		Meter:   meter,
	})
	if _, err := bot.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ids := models.ListModels(ctx)
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no models found at %s\n", cfg.OllamaURL)
	}
	if cfg.Model == "" && len(ids) > 0 {
		bot.SetModel(ids[0])
	}

	renderer, err := render.New(render.DefaultOptions().WithStyle(cfg.RenderStyle).WithWidth(cfg.Width))
	if err != nil {
		return err
	}

	in := console.NewLinerReader()
	defer in.Close()

	return console.New(bot, models, renderer, in, os.Stdout, logger).Run(ctx)
}
