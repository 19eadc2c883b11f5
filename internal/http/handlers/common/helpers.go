package common

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// IdempotencyHeader - заголовок с ключом идемпотентности денежных операций.
const IdempotencyHeader = "Idempotency-Key"

// В ошибках валидации поля называются так же, как в JSON.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// CurrentActor собирает пользователя запроса из контекста, заполненного AuthMiddleware.
func CurrentActor(c *gin.Context) (service.Actor, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return service.Actor{}, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return service.Actor{}, apperror.ErrUnauthorized
	}
	role, _ := c.Get(middleware.ContextRoleKey)
	roleStr, _ := role.(string)
	return service.Actor{UserID: userID, Role: roleStr}, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.InvalidInput("параметр " + paramName + " отсутствует")
	}
	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.InvalidInput("неверный формат UUID: " + paramName)
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса. Ошибки binding-тегов становятся VALIDATION_ERROR с перечнем полей.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, lowerFirst(fe.Field())+": "+fe.Tag())
			}
			return apperror.New(apperror.ErrCodeValidation, "некорректные поля запроса").WithDetails(details...)
		}
		return apperror.Wrap(err, apperror.ErrCodeInvalidInput, "некорректное тело запроса")
	}
	return nil
}

// IdempotencyKey берёт ключ из заголовка, а если его нет, из тела запроса.
func IdempotencyKey(c *gin.Context, fromBody string) string {
	if key := strings.TrimSpace(c.GetHeader(IdempotencyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(fromBody)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
