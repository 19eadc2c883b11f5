package common

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Коды ошибок PostgreSQL, которые репозитории обрабатывают отдельно.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation сообщает, что вставка нарушила уникальный индекс.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// IsCheckViolation сообщает о нарушении CHECK-ограничения (например, отрицательный баланс).
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgCheckViolation
}

// VersionConflict превращает пустой результат UPDATE ... WHERE version = $n в CONCURRENT_MODIFICATION.
func VersionConflict(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrConcurrentModification
	}
	return err
}
