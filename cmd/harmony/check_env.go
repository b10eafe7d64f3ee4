package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/group-harmony/internal/config"
	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/observability"
)

var checkEnvPing bool

var checkEnvCmd = &cobra.Command{
	Use:   "check-env",
	Short: "Report which credentials are configured",
	Long:  `Prints the same environment report as GET /api/test. With --ping, also connects to the preference store.`,
	RunE:  runCheckEnv,
}

func init() {
	checkEnvCmd.Flags().BoolVar(&checkEnvPing, "ping", false, "Connect to the database and ping it")
	rootCmd.AddCommand(checkEnvCmd)
}

func runCheckEnv(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	observability.NewPrinter(out).PrintEnvReport(config.EnvReport(os.Getenv))

	if !checkEnvPing {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	_, _ = fmt.Fprintln(out, "database: reachable")
	return nil
}
