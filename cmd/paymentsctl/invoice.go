package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/service"
	"github.com/ignatzorin/freelance-payments/internal/storage"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Операции со счетами",
	}
	cmd.AddCommand(invoiceExportCmd())
	return cmd
}

func invoiceExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export [invoice-number...]",
		Short: "Выгрузить PDF счетов в каталог архива",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			archive, err := storage.NewInvoiceArchive(dir, 10)
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			svc := service.NewMaintenanceService(persistence.NewStore(conn))
			for _, number := range args {
				path, err := svc.ExportInvoice(cmd.Context(), number, archive)
				if err != nil {
					return fmt.Errorf("%s: %w", number, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, path))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "./invoices", "каталог архива")
	return cmd
}
