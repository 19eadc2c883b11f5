package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей платформы.
const (
	RoleFreelancer   = "freelancer"
	RoleCommissioner = "commissioner"
)

// User описывает участника сделки: фрилансера или заказчика.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Email       string    `db:"email" json:"email"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
