package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/projects/:id", UUIDValidator("id"), handler.GetProject)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			response.Error(c, apperror.InvalidInput("параметр "+paramName+" обязателен"))
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			response.Error(c, apperror.InvalidInput("параметр "+paramName+" должен быть валидным UUID"))
			return
		}

		c.Next()
	}
}
