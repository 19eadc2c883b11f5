package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// tokenCmd выпускает access-токен для локальной отладки API.
func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить JWT для пользователя",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			id := uuid.New()
			if userID != "" {
				if id, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("неверный id пользователя: %w", err)
				}
			}
			if role != models.RoleFreelancer && role != models.RoleCommissioner {
				return fmt.Errorf("роль должна быть %s или %s", models.RoleFreelancer, models.RoleCommissioner)
			}
			if ttl <= 0 {
				ttl = cfg.AccessTokenTTL
			}

			token, expiresAt, err := service.NewTokenManager(cfg.JWTSecret, ttl).Issue(id, role)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"userId":    id,
				"role":      role,
				"token":     token,
				"expiresAt": expiresAt,
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "id пользователя (по умолчанию новый)")
	cmd.Flags().StringVarP(&role, "role", "r", models.RoleCommissioner, "роль: freelancer или commissioner")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "время жизни токена")
	return cmd
}
