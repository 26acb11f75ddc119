package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/http/response"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/apierr"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/services"
)

type GenerationHandler struct {
	runs services.GenerationService
}

func NewGenerationHandler(runs services.GenerationService) *GenerationHandler {
	return &GenerationHandler{runs: runs}
}

type triggerRequest struct {
	TenantID         string `json:"tenant_id"`
	CourseCount      int    `json:"course_count"`
	ModulesPerCourse int    `json:"modules_per_course"`
	FacultyFilter    string `json:"faculty_filter"`
}

// POST /api/generation-runs
func (h *GenerationHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	run, err := h.runs.Start(dbctx.New(c.Request.Context()), services.StartParams{
		TenantID:         req.TenantID,
		CourseCount:      req.CourseCount,
		ModulesPerCourse: req.ModulesPerCourse,
		FacultyFilter:    req.FacultyFilter,
	})
	if err != nil {
		response.RespondErr(c, serviceError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"run_id": run.ID})
}

// GET /api/tenants/:id/generation-runs/latest
func (h *GenerationHandler) GetLatest(c *gin.Context) {
	tenantID, ok := uuidParam(c, "id", "invalid_tenant_id")
	if !ok {
		return
	}
	run, err := h.runs.GetLatest(dbctx.New(c.Request.Context()), tenantID)
	if err != nil {
		response.RespondErr(c, serviceError(err))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/tenants/:id/generation-runs/:run_id
func (h *GenerationHandler) GetRun(c *gin.Context) {
	tenantID, ok := uuidParam(c, "id", "invalid_tenant_id")
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "run_id", "invalid_run_id")
	if !ok {
		return
	}
	run, err := h.runs.GetByID(dbctx.New(c.Request.Context()), tenantID, runID)
	if err != nil {
		response.RespondErr(c, serviceError(err))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/tenants/:id/generation-runs/:run_id/cancel
func (h *GenerationHandler) CancelRun(c *gin.Context) {
	tenantID, ok := uuidParam(c, "id", "invalid_tenant_id")
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "run_id", "invalid_run_id")
	if !ok {
		return
	}
	run, err := h.runs.Cancel(dbctx.New(c.Request.Context()), tenantID, runID)
	if err != nil {
		response.RespondErr(c, serviceError(err))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, code, errors.New(name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func serviceError(err error) error {
	var (
		ve  *services.ValidationError
		tre *services.TenantResolutionError
		rce *services.RunCreationError
	)
	switch {
	case errors.As(err, &ve):
		return apierr.BadRequest("invalid_request", err)
	case errors.As(err, &tre):
		return apierr.New(http.StatusUnprocessableEntity, "tenant_unresolved", err)
	case errors.As(err, &rce):
		return apierr.New(http.StatusInternalServerError, "run_creation_failed", err)
	case errors.Is(err, services.ErrRunNotFound):
		return apierr.NotFound("run_not_found", err)
	}
	return err
}
