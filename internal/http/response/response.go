package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Retryable bool     `json:"retryable,omitempty"`
	Details   []string `json:"details,omitempty"`
}

type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// Paginated отдаёт страницу. Общее число не считается: hasMore значит, что страница заполнена целиком.
func Paginated(c *gin.Context, data interface{}, count, limit, offset int) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: count == limit,
		},
	})
}

// Error пишет конверт ошибки. Неизвестные ошибки логируются и отдаются как INTERNAL_ERROR без деталей.
func Error(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), Envelope(c, err))
}

// Status возвращает HTTP-статус для ошибки.
func Status(err error) int {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Envelope строит тело ответа с ошибкой.
func Envelope(c *gin.Context, err error) Response {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Log.WithFields(logrus.Fields{
				"code":   appErr.Code,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).WithError(err).Error("request failed")
		}
		return Response{
			Success: false,
			Error: &ErrorInfo{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Retryable: appErr.Retryable(),
				Details:   appErr.Details,
			},
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).WithError(err).Error("unexpected error")
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    string(apperror.ErrCodeInternal),
			Message: "внутренняя ошибка сервера",
		},
	}
}

func BadRequest(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeBadRequest, message))
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeUnauthorized, message))
}
