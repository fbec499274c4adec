package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/memory"
	"github.com/commonplacehq/commonplace/internal/server"
	"github.com/commonplacehq/commonplace/internal/webfetch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the commonplace server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()

		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
			cfg.Backend = backend
		}
		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}
		if dbPath, _ := cmd.Flags().GetString("db-path"); dbPath != "" {
			cfg.DBPath = dbPath
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		// Backend selection happens exactly once, here. There is no
		// runtime fallback or migration between backends.
		var store memory.Store
		var err error
		switch cfg.Backend {
		case config.BackendSQLite:
			store, err = memory.NewSQLStore(cfg.DBPath)
		default:
			store, err = memory.NewFileStore(cfg.DataDir)
		}
		if err != nil {
			return err
		}
		log.Printf("Memory store initialized (%s backend)", store.Backend())

		fetcher := webfetch.NewFetcher(webfetch.NewValidator(webfetch.ValidatorOptions{}))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, store, fetcher)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "bind address")
	serveCmd.Flags().Int("port", 8080, "listen port")
	serveCmd.Flags().String("backend", config.BackendFile, "storage backend (file or sqlite)")
	serveCmd.Flags().String("data-dir", "", "data directory for the file backend")
	serveCmd.Flags().String("db-path", "", "database path for the sqlite backend")
	rootCmd.AddCommand(serveCmd)
}
