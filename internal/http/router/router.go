package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers"
	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// Handlers собирает все обработчики API.
type Handlers struct {
	Health        *handlers.HealthHandler
	Payments      *handlers.PaymentHandler
	Wallets       *handlers.WalletHandler
	Invoices      *handlers.InvoiceHandler
	Projects      *handlers.ProjectHandler
	Notifications *handlers.NotificationHandler
	WS            *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.New(apperror.ErrCodeNotFound, "маршрут не найден"))
	})

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// денежные операции ограничены по частоте на пользователя
	money := protected.Group("/")
	money.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		money.POST("/payments/trigger", h.Payments.Trigger)
		money.POST("/payments/execute", h.Payments.Execute)
		money.POST("/payments/completion/execute-upfront", h.Payments.ExecuteUpfront)
		money.POST("/payments/completion/execute-final", h.Payments.ExecuteFinal)
		money.POST("/payments/completion/manual-invoice", h.Payments.CreateManualInvoice)
		money.POST("/withdraw", h.Wallets.Withdraw)
	}

	{
		protected.POST("/payments/completion/calculate", h.Payments.Calculate)
		protected.GET("/payments/wallet", h.Wallets.GetWallet)
		protected.GET("/payments/transactions", h.Wallets.ListTransactions)
		protected.GET("/withdrawals", h.Wallets.ListWithdrawals)
		protected.GET("/withdrawals/:id", middleware.UUIDValidator("id"), h.Wallets.GetWithdrawal)

		protected.GET("/invoices", h.Invoices.ListInvoices)
		protected.GET("/invoices/:number", h.Invoices.GetInvoice)
		protected.POST("/invoices/:number/send", h.Invoices.SendInvoice)
		protected.GET("/invoices/:number/transactions", h.Invoices.ListInvoiceTransactions)
		protected.GET("/invoices/:number/pdf", h.Invoices.DownloadPDF)

		protected.POST("/projects", h.Projects.CreateProject)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), h.Projects.GetProject)
		protected.POST("/projects/:id/assign", middleware.UUIDValidator("id"), h.Projects.AssignFreelancer)
		protected.POST("/projects/:id/tasks", middleware.UUIDValidator("id"), h.Projects.CreateTask)
		protected.POST("/projects/:id/milestones/:milestoneId/invoice", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), h.Projects.CreateMilestoneInvoice)
		protected.POST("/tasks/:id/submit", middleware.UUIDValidator("id"), h.Projects.SubmitTask)
		protected.POST("/tasks/:id/approve", middleware.UUIDValidator("id"), h.Projects.ApproveTask)
		protected.POST("/tasks/:id/reject", middleware.UUIDValidator("id"), h.Projects.RejectTask)

		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
	}

	return r
}
