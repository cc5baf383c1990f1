package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/hawcbmd/internal/config"
	"github.com/rewired-gh/hawcbmd/internal/hawc"
	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/pipeline"
	"github.com/rewired-gh/hawcbmd/internal/storage"
	"github.com/rewired-gh/hawcbmd/internal/telegram"
)

var (
	cfg        *config.Config
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "hawcbmd",
	Short: "Benchmark dose model recommendation for HAWC endpoints",
	Long: "Fetches BMD modeling sessions from HAWC, classifies every candidate model " +
		"against the recommendation logic, picks a model per benchmark response and " +
		"renders dose-response charts with BMD curves.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return eris.Wrap(err, "invalid configuration")
		}
		cfg = c

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configPath != "" {
			logger.Debug("Configuration loaded from %s", configPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json or yaml")
}

// env bundles the collaborators built from configuration.
type env struct {
	runner *pipeline.Runner
	store  *storage.Storage
	tg     *telegram.Client
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
}

// newEnv wires the HAWC client, run history and Telegram from cfg.
func newEnv() (*env, error) {
	client := hawc.NewClient(cfg.HAWC.BaseURL, cfg.HAWC.Timeout, hawc.ClientConfig{
		MaxRetries:     cfg.HAWC.MaxRetries,
		RetryDelayBase: cfg.HAWC.RetryDelayBase,
		Token:          cfg.HAWC.Token,
	})

	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		return nil, eris.Wrap(err, "initialize storage")
	}
	e := &env{store: store}

	pc := pipeline.Config{
		Rules:        cfg.Logic.Rules,
		PollInterval: cfg.HAWC.PollInterval,
		Store:        store,
	}
	if cfg.Telegram.Enabled {
		e.tg, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			store.Close()
			return nil, eris.Wrap(err, "initialize Telegram client")
		}
		pc.Notifier = e.tg
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	e.runner = pipeline.New(client, pc)
	return e, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
