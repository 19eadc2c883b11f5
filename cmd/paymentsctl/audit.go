package main

import (
	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit [entity-type] [entity-id]",
		Short: "Журнал переходов статусов сущности",
		Example: `  paymentsctl audit invoice JD-000001
  paymentsctl audit withdrawal 6f1c...`,
		Args: cobra.ExactArgs(2),
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

			entries, err := service.NewMaintenanceService(persistence.NewStore(conn)).AuditTrail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
}
