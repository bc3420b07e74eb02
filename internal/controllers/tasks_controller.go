package controllers

import (
	"net/http"
	"time"

	"github.com/brandflow-io/brandflow/internal/engine"
	"github.com/brandflow-io/brandflow/internal/util"
	"github.com/brandflow-io/brandflow/pkg/brandflow/models"
)

// TasksController holds dependencies for task HTTP endpoints.
type TasksController struct {
	Engine *engine.Engine
}

func NewTasksController(eng *engine.Engine) *TasksController {
	return &TasksController{Engine: eng}
}

// RegisterRoutes wires the HTTP routes for this controller.
func (c *TasksController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows/{id}/tasks", c.handleCreateTask)
	mux.HandleFunc("GET /api/workflows/{id}/tasks", c.handleListTasks)
	mux.HandleFunc("POST /api/workflows/{id}/tasks/{taskId}/start", c.handleStartTask)
	mux.HandleFunc("POST /api/workflows/{id}/tasks/{taskId}/complete", c.handleCompleteTask)
	mux.HandleFunc("POST /api/workflows/{id}/tasks/{taskId}/cancel", c.handleCancelTask)
}

func (c *TasksController) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateTaskRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	spec := engine.TaskSpec{
		Name:        req.Name,
		Description: req.Description,
		Assignee:    req.Assignee,
		DueAt:       req.DueAt,
	}
	if req.ExpectedDuration != "" {
		d, err := time.ParseDuration(req.ExpectedDuration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "expectedDuration is not a valid duration")
			return
		}
		spec.ExpectedDuration = d
	}

	id, err := c.Engine.CreateTask(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, models.CreateTaskResponse{ID: id})
}

func (c *TasksController) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Engine.ListTasks(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, tasks)
}

func (c *TasksController) handleStartTask(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.ActorRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := c.Engine.StartTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"), req.Actor); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *TasksController) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CompleteTaskRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := c.Engine.CompleteTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"), req.Actor, req.Result); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *TasksController) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.ActorRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := c.Engine.CancelTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"), req.Actor); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
