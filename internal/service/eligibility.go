package service

import (
	"context"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// EligibilityChecker решает, можно ли запускать оплату по счёту.
// Ошибка PAYMENT_NOT_ELIGIBLE возвращается как есть, любая другая считается недоступностью сервиса.
type EligibilityChecker interface {
	Check(ctx context.Context, tx repository.Repositories, inv *models.Invoice) error
}

// ProjectEligibility проверяет состояние проекта и назначенного фрилансера.
type ProjectEligibility struct{}

func (ProjectEligibility) Check(ctx context.Context, tx repository.Repositories, inv *models.Invoice) error {
	p, err := tx.Projects().GetByID(ctx, inv.ProjectID)
	if err != nil {
		return err
	}
	switch {
	case p.Status != models.ProjectStatusActive:
		return apperror.ErrPaymentNotEligible.WithDetails("статус проекта: " + p.Status)
	case !p.HasFreelancer(inv.FreelancerID):
		return apperror.ErrPaymentNotEligible.WithDetails("фрилансер счёта не назначен на проект")
	case p.CommissionerID != inv.CommissionerID:
		return apperror.ErrPaymentNotEligible.WithDetails("заказчик счёта не совпадает с заказчиком проекта")
	}
	return nil
}
