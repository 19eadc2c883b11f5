package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Сверка платежей и бюджета проектов",
	}
	cmd.AddCommand(reconcileListCmd())
	cmd.AddCommand(reconcileProjectCmd())
	return cmd
}

func reconcileListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать платежи, требующие ручной сверки",
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
			items, err := svc.Reconciliations(cmd.Context(), status)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "статус записи (open, resolved)")
	return cmd
}

func reconcileProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project [project-id]",
		Short: "Проверить целостность бюджета проекта",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("неверный id проекта: %w", err)
			}

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
			report, err := svc.ProjectReport(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Valid() {
				return fmt.Errorf("найдено расхождений: %d", len(report.Discrepancies))
			}
			return nil
		},
	}
}
