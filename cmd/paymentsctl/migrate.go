package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/db"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить SQL-миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsPath
			}

			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := db.RunMigrations(cmd.Context(), conn, dir)
			if err != nil {
				return fmt.Errorf("миграции: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "нет новых миграций")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "каталог миграций (по умолчанию MIGRATIONS_PATH)")
	return cmd
}
