package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

func idempotencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Ключи идемпотентности",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Удалить истёкшие ключи",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			svc := service.NewMaintenanceService(persistence.NewStore(conn))
			n, err := svc.PurgeIdempotency(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d\n", n)
			return nil
		},
	})
	return cmd
}
