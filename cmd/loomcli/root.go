package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/internal/store"
	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/config"
	"github.com/kittclouds/textloom/pkg/logging"
	"github.com/kittclouds/textloom/pkg/rewrite"
)

var (
	cfgPath string
	verbose bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "loomcli",
	Short: "Content buffer workbench with full provenance tracking",
	Long: `loomcli manages immutable, content-addressed text buffers.
Every operation derives a new buffer and appends to its provenance
chain, so any piece of text can be traced back to where it came from.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		slog.SetDefault(logging.New(cfg.Logging, os.Stderr))
		return nil
	},
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// openStore builds the persistence adapter selected by the config.
func openStore() (buffer.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = ":memory:"
		}
		return store.NewSQLiteStoreWithDSN(dsn)
	default:
		return store.NewMemStore(), nil
	}
}

// newService wires the buffer service from the loaded config. The
// rewrite engine and embedder are attached only when an API key is
// configured; commands that need them fail with a clear error
// otherwise.
func newService() (*buffer.Service, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}

	opts := buffer.Options{
		Store:  st,
		Logger: slog.Default(),
	}
	if cfg.OpenAI.APIKey != "" {
		retry := rewrite.RetryPolicy{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			PerAttemptTimeout: cfg.Retry.PerAttemptTimeout,
			Backoff:           cfg.Retry.Backoff,
		}
		opts.Rewriter = rewrite.NewEngine(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, retry, slog.Default())
		opts.Embed = rewrite.NewEmbedFn(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel)
	}
	return buffer.NewService(opts)
}

// readInput returns the text argument, or stdin when the argument is "-".
func readInput(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
