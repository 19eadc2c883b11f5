package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Работа с очередью событий",
	}
	cmd.AddCommand(outboxDispatchCmd())
	return cmd
}

// outboxDispatchCmd доставляет накопившиеся события без WebSocket:
// уведомления записываются в базу, push пропускается.
func outboxDispatchCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Один проход доставки событий outbox",
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

			if batch <= 0 {
				batch = cfg.OutboxBatchSize
			}
			dispatcher := service.NewOutboxDispatcher(persistence.NewStore(conn), nil, service.DispatcherConfig{
				BatchSize:   batch,
				MaxAttempts: cfg.OutboxMaxAttempts,
			})
			n, err := dispatcher.DispatchOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d\n", n)
			return nil
		},
	}

	cmd.Flags().IntVarP(&batch, "batch", "n", 0, "размер пачки (по умолчанию OUTBOX_BATCH_SIZE)")
	return cmd
}
