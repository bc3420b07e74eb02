package controllers

import (
	"net/http"

	"github.com/brandflow-io/brandflow/internal/engine"
	"github.com/brandflow-io/brandflow/internal/util"
	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// DefinitionsController holds dependencies for definition HTTP endpoints.
type DefinitionsController struct {
	Engine *engine.Engine
}

func NewDefinitionsController(eng *engine.Engine) *DefinitionsController {
	return &DefinitionsController{Engine: eng}
}

// RegisterRoutes wires the HTTP routes for this controller.
func (c *DefinitionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/definitions", c.handleRegisterDefinition)
	mux.HandleFunc("GET /api/definitions", c.handleListDefinitions)
	mux.HandleFunc("GET /api/definitions/{id}", c.handleGetDefinition)
}

func (c *DefinitionsController) handleRegisterDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := util.DecodeJSONBody[domain.WorkflowDefinition](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := c.Engine.RegisterWorkflow(&def); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (c *DefinitionsController) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, c.Engine.ListWorkflowDefinitions())
}

func (c *DefinitionsController) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, ok := c.Engine.GetWorkflowDefinition(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "definition not found")
		return
	}
	util.WriteJSON(w, http.StatusOK, def)
}
