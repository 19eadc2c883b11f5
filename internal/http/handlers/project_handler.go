package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// ProjectHandler обслуживает проекты, задачи и их проверку.
type ProjectHandler struct {
	projects *service.ProjectService
	invoices *service.InvoiceService
}

func NewProjectHandler(projects *service.ProjectService, invoices *service.InvoiceService) *ProjectHandler {
	return &ProjectHandler{projects: projects, invoices: invoices}
}

type milestoneRequest struct {
	Title  string           `json:"title" binding:"required"`
	Amount *decimal.Decimal `json:"rate" binding:"required"`
}

type createProjectRequest struct {
	Title           string             `json:"title" binding:"required"`
	InvoicingMethod string             `json:"invoicingMethod" binding:"required,oneof=milestone completion"`
	TotalBudget     *decimal.Decimal   `json:"totalBudget" binding:"required"`
	Currency        string             `json:"currency" binding:"omitempty,len=3"`
	Milestones      []milestoneRequest `json:"milestones" binding:"dive"`
}

type assignRequest struct {
	FreelancerID string `json:"freelancerId" binding:"required,uuid"`
}

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	MilestoneID *string `json:"milestoneId" binding:"omitempty,uuid"`
}

type rejectTaskRequest struct {
	Reason string `json:"reason"`
}

// CreateProject POST /projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req createProjectRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	in := service.CreateProjectInput{
		Title:           req.Title,
		InvoicingMethod: req.InvoicingMethod,
		TotalBudget:     *req.TotalBudget,
		Currency:        req.Currency,
	}
	for _, m := range req.Milestones {
		in.Milestones = append(in.Milestones, service.MilestoneInput{Title: m.Title, Amount: *m.Amount})
	}

	view, err := h.projects.CreateProject(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// GetProject GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.projects.GetProject(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// AssignFreelancer POST /projects/:id/assign
func (h *ProjectHandler) AssignFreelancer(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req assignRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.projects.AssignFreelancer(c.Request.Context(), actor, id, uuid.MustParse(req.FreelancerID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// CreateTask POST /projects/:id/tasks
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req createTaskRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	in := service.CreateTaskInput{Title: req.Title}
	if req.MilestoneID != nil {
		milestoneID := uuid.MustParse(*req.MilestoneID)
		in.MilestoneID = &milestoneID
	}
	task, err := h.projects.CreateTask(c.Request.Context(), actor, id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"task": task})
}

// CreateMilestoneInvoice POST /projects/:id/milestones/:milestoneId/invoice
func (h *ProjectHandler) CreateMilestoneInvoice(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invoices.CreateMilestoneInvoice(c.Request.Context(), actor, projectID, milestoneID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"invoice": inv})
}

// SubmitTask POST /tasks/:id/submit
func (h *ProjectHandler) SubmitTask(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	task, err := h.projects.SubmitTask(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"task": task})
}

// ApproveTask POST /tasks/:id/approve
func (h *ProjectHandler) ApproveTask(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.projects.ApproveTask(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// RejectTask POST /tasks/:id/reject
func (h *ProjectHandler) RejectTask(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req rejectTaskRequest
	// тело необязательно
	if c.Request.ContentLength > 0 {
		if err := common.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}

	task, err := h.projects.RejectTask(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"task": task})
}
