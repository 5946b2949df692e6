// Package main is the twiiiiter server entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/edgarogh/twiiiiter/internal/config"
	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/edgarogh/twiiiiter/internal/event"
	"github.com/edgarogh/twiiiiter/internal/logger"
	"github.com/edgarogh/twiiiiter/internal/server"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagPort   int

	rootCmd = &cobra.Command{
		Use:   "twiiiiter-server",
		Short: "Runs the twiiiiter micro-blogging server.",
		RunE:  runServe,
	}
)

func runServe(cmd *cobra.Command, args []string) error {
	config.Path = flagConfig
	cfg, err := config.ReadConfig()
	if err != nil {
		return fmt.Errorf("error occured while reading config: %w", err)
	}
	loggerCallback := logger.Init()
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	var store database.Store
	switch cfg.Store {
	case config.StoreMongoDB:
		if err := database.ConnectDatabase(); err != nil {
			return fmt.Errorf("error occured while initializing database: %w", err)
		}
		store = database.NewDatabaseStore()
	case config.StoreMemory, "":
		logger.Warn("Using the in-memory store, nothing will survive a restart")
		store = database.NewMemoryStore()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	port := cfg.AppPort
	if cmd.Flags().Changed("port") {
		port = flagPort
	}

	srv := server.NewServer(store)
	if err := srv.Listen(port); err != nil {
		return err
	}
	cleaner.Add(srv)
	srv.Serve()
	return nil
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "config.json", "path of the configuration file")
	rootCmd.Flags().IntVar(&flagPort, "port", 7878, "TCP port to listen on (0 for an ephemeral port)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
