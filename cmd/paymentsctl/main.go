package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/db"
	"github.com/ignatzorin/freelance-payments/internal/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "paymentsctl - служебные команды платёжного сервиса",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(idempotencyCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig читает ту же конфигурацию, что и сервер, и настраивает логгер.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger.Init(cfg.LogLevel)
	logger.SetTextFormatter()
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, fmt.Errorf("подключение к базе: %w", err)
	}
	return conn, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
