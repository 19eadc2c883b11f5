package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/logger"
)

// ErrorHandler превращает ошибки, добавленные через c.Error, в конверт ответа,
// если обработчик сам ничего не записал.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// Recovery перехватывает панику обработчика и всегда отдаёт корректный конверт INTERNAL_ERROR.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithField("path", c.Request.URL.Path).Errorf("panic в обработчике: %v", r)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Error(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}
