package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/service"
	"github.com/ignatzorin/freelance-payments/internal/testutil"
)

type apiEnv struct {
	t            *testing.T
	engine       *gin.Engine
	store        *testutil.MemStore
	commissioner string
	freelancer   string
	freelancerID uuid.UUID
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string   `json:"code"`
		Message   string   `json:"message"`
		Retryable bool     `json:"retryable"`
		Details   []string `json:"details"`
	} `json:"error"`
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Silence()

	cfg := &config.Config{Env: "test", RateLimitLimit: 1000, RateLimitPeriod: time.Minute}
	store := testutil.NewMemStore()
	gw := testutil.NewScriptedGateway()
	policy := config.DefaultBillingPolicy()
	payCfg := service.PaymentConfig{GatewayTimeout: time.Second, IdempotencyTTL: time.Hour, EligibilityCheck: true}

	invoices := service.NewInvoiceService(store, policy)
	projects := service.NewProjectService(store, invoices)
	payments := service.NewPaymentService(store, invoices, gw, service.ProjectEligibility{}, payCfg)
	wallets := service.NewWalletService(store, gw, policy, payCfg)
	tokens := service.NewTokenManager("router-test-secret-router-test-secret", time.Hour)

	engine := SetupRouter(cfg, Handlers{
		Health:        handlers.NewHealthHandler(store, nil),
		Payments:      handlers.NewPaymentHandler(payments, invoices),
		Wallets:       handlers.NewWalletHandler(wallets),
		Invoices:      handlers.NewInvoiceHandler(invoices),
		Projects:      handlers.NewProjectHandler(projects, invoices),
		Notifications: handlers.NewNotificationHandler(service.NewNotificationService(store.Notifications())),
	}, tokens)

	commissioner := testutil.SeedUser(t, store, models.RoleCommissioner, "John Doe")
	freelancer := testutil.SeedUser(t, store, models.RoleFreelancer, "Jane Roe")
	cTok, _, err := tokens.Issue(commissioner.ID, models.RoleCommissioner)
	require.NoError(t, err)
	fTok, _, err := tokens.Issue(freelancer.ID, models.RoleFreelancer)
	require.NoError(t, err)

	return &apiEnv{
		t:            t,
		engine:       engine,
		store:        store,
		commissioner: cTok,
		freelancer:   fTok,
		freelancerID: freelancer.ID,
	}
}

func (e *apiEnv) do(method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (e *apiEnv) ok(method, path, token string, body any, dest any) {
	e.t.Helper()
	w, env := e.do(method, path, token, body)
	require.Truef(e.t, w.Code < 300, "%s %s: %d %s", method, path, w.Code, w.Body.String())
	require.True(e.t, env.Success)
	if dest != nil {
		require.NoError(e.t, json.Unmarshal(env.Data, dest))
	}
}

func TestAPI_MilestonePaymentFlow(t *testing.T) {
	api := newAPI(t)

	var project struct {
		Project    models.Project     `json:"project"`
		Milestones []models.Milestone `json:"milestones"`
	}
	api.ok(http.MethodPost, "/api/projects", api.commissioner, map[string]any{
		"title":           "Дизайн",
		"invoicingMethod": "milestone",
		"totalBudget":     "1500",
		"milestones":      []map[string]any{{"title": "Макеты", "rate": 1500}},
	}, &project)
	require.Len(t, project.Milestones, 1)
	projectPath := "/api/projects/" + project.Project.ID.String()

	var task struct {
		Task models.Task `json:"task"`
	}
	api.ok(http.MethodPost, projectPath+"/tasks", api.commissioner, map[string]any{
		"title":       "Главная страница",
		"milestoneId": project.Milestones[0].ID,
	}, &task)
	api.ok(http.MethodPost, projectPath+"/assign", api.commissioner, map[string]any{"freelancerId": api.freelancerID}, nil)

	taskPath := "/api/tasks/" + task.Task.ID.String()
	api.ok(http.MethodPost, taskPath+"/submit", api.freelancer, nil, nil)

	var approved struct {
		Invoice models.Invoice `json:"invoice"`
	}
	api.ok(http.MethodPost, taskPath+"/approve", api.commissioner, nil, &approved)
	number := approved.Invoice.InvoiceNumber
	require.Equal(t, "JD-000001", number)

	api.ok(http.MethodPost, "/api/invoices/"+number+"/send", api.freelancer, nil, nil)
	api.ok(http.MethodPost, "/api/payments/trigger", api.freelancer, map[string]any{"invoiceNumber": number}, nil)

	var paid service.PaymentResult
	w, env := api.do(http.MethodPost, "/api/payments/execute", api.commissioner,
		map[string]any{"invoiceNumber": number}, "Idempotency-Key", "exec-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	assert.Equal(t, models.InvoiceStatusPaid, paid.Invoice.Status)
	assert.True(t, paid.Wallet.AvailableBalance.Equal(paid.Invoice.TotalAmount))

	// повтор с тем же ключом возвращает сохранённый ответ
	w, env = api.do(http.MethodPost, "/api/payments/execute", api.commissioner,
		map[string]any{"invoiceNumber": number, "idempotencyKey": "exec-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var replay service.PaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.Equal(t, paid.Transaction.ID, replay.Transaction.ID)

	w, env = api.do(http.MethodPost, "/api/payments/execute", api.commissioner, map[string]any{"invoiceNumber": number})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAYMENT_ALREADY_PROCESSED", env.Error.Code)

	var wallet struct {
		Wallet models.Wallet `json:"wallet"`
	}
	api.ok(http.MethodGet, "/api/payments/wallet?currency=USD", api.freelancer, nil, &wallet)
	assert.Equal(t, "1500", wallet.Wallet.AvailableBalance.String())

	var withdrawal service.WithdrawalResult
	api.ok(http.MethodPost, "/api/withdraw", api.freelancer, map[string]any{"amount": "500", "currency": "USD"}, &withdrawal)
	assert.Equal(t, models.WithdrawalStatusPaid, withdrawal.Withdrawal.Status)
	assert.Equal(t, "1000", withdrawal.Wallet.AvailableBalance.String())

	w, env = api.do(http.MethodPost, "/api/withdraw", api.freelancer, map[string]any{"amount": "5000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)

	w, _ = api.do(http.MethodGet, "/api/invoices/"+number+"/pdf", api.commissioner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestAPI_Errors(t *testing.T) {
	api := newAPI(t)

	w, env := api.do(http.MethodPost, "/api/payments/execute", "", map[string]any{"invoiceNumber": "JD-000001"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = api.do(http.MethodPost, "/api/payments/execute", api.commissioner, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "invoiceNumber: required")

	w, env = api.do(http.MethodPost, "/api/payments/execute", api.commissioner, map[string]any{"invoiceNumber": "JD-404404"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "INVOICE_NOT_FOUND", env.Error.Code)

	w, env = api.do(http.MethodPost, "/api/payments/trigger", api.commissioner, map[string]any{"invoiceNumber": "JD-000001"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN_USER_TYPE", env.Error.Code)

	w, env = api.do(http.MethodPost, "/api/payments/completion/execute-upfront", api.commissioner, map[string]any{"projectId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = api.do(http.MethodGet, "/api/projects/not-a-uuid", api.commissioner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	w, env = api.do(http.MethodGet, "/api/unknown", api.commissioner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAPI_CompletionCalculate(t *testing.T) {
	api := newAPI(t)

	var calc service.Calculation
	api.ok(http.MethodPost, "/api/payments/completion/calculate", api.commissioner, map[string]any{
		"calculationType": "upfront",
		"totalBudget":     2000,
	}, &calc)
	require.NotNil(t, calc.UpfrontAmount)
	assert.Equal(t, "240", calc.UpfrontAmount.String())
}

func TestAPI_Health(t *testing.T) {
	api := newAPI(t)
	w, _ := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)
}
