package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/projection"
)

// ScenariosHandler handles decision path and scenario set endpoints.
type ScenariosHandler struct {
	svc *projection.Service
	log zerolog.Logger
}

// NewScenariosHandler creates a new scenarios handler.
func NewScenariosHandler(svc *projection.Service, log zerolog.Logger) *ScenariosHandler {
	return &ScenariosHandler{svc: svc, log: log}
}

// ListDecisionPaths handles GET /api/decision-paths
func (h *ScenariosHandler) ListDecisionPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := h.svc.ListDecisionPaths(r.Context())
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"decision_paths": paths,
		"count":          len(paths),
	})
}

// CreateDecisionPath handles POST /api/decision-paths
func (h *ScenariosHandler) CreateDecisionPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.CreateDecisionPath(r.Context(), req.Name, req.Description)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, p)
}

// GetDecisionPath handles GET /api/decision-paths/{id}
func (h *ScenariosHandler) GetDecisionPath(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetDecisionPath(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

// DeleteDecisionPath handles DELETE /api/decision-paths/{id}
func (h *ScenariosHandler) DeleteDecisionPath(w http.ResponseWriter, r *http.Request) {
	recalcs, err := h.svc.DeleteDecisionPath(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recalculations": recalcs})
}

// ListScenarioSets handles GET /api/scenario-sets
func (h *ScenariosHandler) ListScenarioSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.svc.ListScenarioSets(r.Context())
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scenario_sets": sets,
		"count":         len(sets),
	})
}

// CreateScenarioSet handles POST /api/scenario-sets
func (h *ScenariosHandler) CreateScenarioSet(w http.ResponseWriter, r *http.Request) {
	var in projection.ScenarioSetInput
	if !decodeJSON(w, r, &in) {
		return
	}

	set, err := h.svc.CreateScenarioSet(r.Context(), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, set)
}

// GetScenarioSet handles GET /api/scenario-sets/{id}
func (h *ScenariosHandler) GetScenarioSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.GetScenarioSet(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, set)
}

// UpdateScenarioPaths handles PUT /api/scenario-sets/{id}/paths
func (h *ScenariosHandler) UpdateScenarioPaths(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths map[string]bool `json:"paths"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	set, err := h.svc.UpdateScenarioPaths(r.Context(), r.PathValue("id"), req.Paths)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, set)
}

// MakeDefault handles POST /api/scenario-sets/{id}/default
func (h *ScenariosHandler) MakeDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MakeDefaultScenarioSet(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteScenarioSet handles DELETE /api/scenario-sets/{id}
func (h *ScenariosHandler) DeleteScenarioSet(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteScenarioSet(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
