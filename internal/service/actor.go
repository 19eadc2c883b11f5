package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Actor - аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsFreelancer() bool {
	return a.Role == models.RoleFreelancer
}

func (a Actor) IsCommissioner() bool {
	return a.Role == models.RoleCommissioner
}

func requireRole(a Actor, role string) error {
	if a.UserID == uuid.Nil {
		return apperror.ErrUnauthorized
	}
	if a.Role != role {
		return apperror.ErrForbiddenUserType
	}
	return nil
}

// canView: счёт видят только его фрилансер и заказчик.
func canViewInvoice(a Actor, inv *models.Invoice) bool {
	return inv.FreelancerID == a.UserID || inv.CommissionerID == a.UserID
}

func canViewProject(a Actor, p *models.Project) bool {
	return p.CommissionerID == a.UserID || p.HasFreelancer(a.UserID)
}
