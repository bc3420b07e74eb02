package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brandflow-io/brandflow/internal/engine"
	"github.com/brandflow-io/brandflow/internal/util"
	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
	"github.com/brandflow-io/brandflow/pkg/brandflow/models"
)

// WorkflowsController holds dependencies for workflow instance HTTP endpoints.
type WorkflowsController struct {
	Engine *engine.Engine
}

func NewWorkflowsController(eng *engine.Engine) *WorkflowsController {
	return &WorkflowsController{Engine: eng}
}

// RegisterRoutes wires the HTTP routes for this controller.
func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.handleStartWorkflow)
	mux.HandleFunc("GET /api/workflows", c.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", c.handleGetWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/history", c.handleGetHistory)
	mux.HandleFunc("GET /api/workflows/{id}/transitions", c.handleListTransitions)
	mux.HandleFunc("POST /api/workflows/{id}/transitions", c.handleTransition)
	mux.HandleFunc("POST /api/workflows/{id}/pause", c.handlePause)
	mux.HandleFunc("POST /api/workflows/{id}/resume", c.handleResume)
	mux.HandleFunc("POST /api/workflows/{id}/cancel", c.handleCancel)
}

func (c *WorkflowsController) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.StartWorkflowRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.DefinitionID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "definitionId is required")
		return
	}

	var opts *engine.StartOptions
	if req.Assignee != "" || len(req.Participants) > 0 {
		opts = &engine.StartOptions{Assignee: req.Assignee, Participants: req.Participants}
	}
	id, err := c.Engine.StartWorkflow(r.Context(), req.DefinitionID, req.Data, req.Initiator, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, models.StartWorkflowResponse{ID: id})
}

func (c *WorkflowsController) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	var result []*domain.WorkflowInstance
	switch {
	case r.URL.Query().Get("status") != "":
		result = c.Engine.ListWorkflowsByStatus(domain.WorkflowStatus(r.URL.Query().Get("status")))
	case r.URL.Query().Get("participant") != "":
		result = c.Engine.ListWorkflowsByParticipant(r.URL.Query().Get("participant"))
	default:
		result = c.Engine.ListWorkflows()
	}
	util.WriteJSON(w, http.StatusOK, result)
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	inst, ok := c.Engine.GetWorkflow(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "workflow not found")
		return
	}
	util.WriteJSON(w, http.StatusOK, inst)
}

func (c *WorkflowsController) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := c.Engine.GetWorkflow(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "workflow not found")
		return
	}
	util.WriteJSON(w, http.StatusOK, inst.History)
}

func (c *WorkflowsController) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	transitions, err := c.Engine.AvailableTransitions(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, transitions)
}

func (c *WorkflowsController) handleTransition(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.TransitionRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	id := r.PathValue("id")
	if err := c.Engine.TransitionWorkflow(r.Context(), id, req.TransitionID, req.Actor, req.Data); err != nil {
		writeEngineError(w, err)
		return
	}
	inst, _ := c.Engine.GetWorkflow(id)
	util.WriteJSON(w, http.StatusOK, inst)
}

func (c *WorkflowsController) handlePause(w http.ResponseWriter, r *http.Request) {
	c.statusChange(w, r, c.Engine.PauseWorkflow)
}

func (c *WorkflowsController) handleResume(w http.ResponseWriter, r *http.Request) {
	c.statusChange(w, r, c.Engine.ResumeWorkflow)
}

func (c *WorkflowsController) handleCancel(w http.ResponseWriter, r *http.Request) {
	c.statusChange(w, r, c.Engine.CancelWorkflow)
}

func (c *WorkflowsController) statusChange(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id string, actor domain.Participant) error) {
	req, err := util.DecodeJSONBody[models.ActorRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	id := r.PathValue("id")
	if err := op(r.Context(), id, req.Actor); err != nil {
		writeEngineError(w, err)
		return
	}
	inst, _ := c.Engine.GetWorkflow(id)
	util.WriteJSON(w, http.StatusOK, inst)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	util.WriteJSON(w, status, models.ErrorResponse{Code: code, Message: message})
}

// writeEngineError maps the engine's typed errors onto HTTP statuses so
// callers can tell request-shape failures apart.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		notFound      *engine.NotFoundError
		permission    *engine.PermissionError
		conditions    *engine.ConditionsNotMetError
		completed     *engine.WorkflowCompletedError
		alreadyDone   *engine.AlreadyCompletedError
		paused        *engine.WorkflowPausedError
		invalidStatus *engine.InvalidStatusError
		validation    *engine.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &permission):
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
	case errors.As(err, &conditions):
		writeError(w, http.StatusUnprocessableEntity, "CONDITIONS_NOT_MET", err.Error())
	case errors.As(err, &completed):
		writeError(w, http.StatusConflict, "WORKFLOW_COMPLETED", err.Error())
	case errors.As(err, &alreadyDone):
		writeError(w, http.StatusConflict, "ALREADY_COMPLETED", err.Error())
	case errors.As(err, &paused):
		writeError(w, http.StatusConflict, "WORKFLOW_PAUSED", err.Error())
	case errors.As(err, &invalidStatus):
		writeError(w, http.StatusConflict, "INVALID_STATUS", err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		slog.Error("Unhandled engine error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	}
}
