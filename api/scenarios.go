/*
scenarios.go - Demo scenario loading and database reset

PURPOSE:

	Populates the store with one of the built-in crew scenarios for demos
	and manual testing. The scenarios themselves are YAML documents in
	scenario/builtin; this file only exposes them over HTTP.

HOW LOADING WORKS:
 1. Reset the store and forget every running or pending shift
 2. Load the scenario (policies, workers, rates, time sheets, projects)
 3. Remember it as the current scenario

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "crew-week"}

NOTE:

	Loading and reset wipe all data. Both routes sit behind basic auth when
	an admin login is configured.

SEE ALSO:
  - scenario/scenario.go: Document format and built-ins
  - scenario/load.go: Writes a scenario through the repository
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	"github.com/warp/crew-engine/scenario"
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all, err := scenario.Builtins()
	if err != nil {
		h.fail(w, r, "Failed to read scenarios", err)
		return
	}
	dtos := make([]ScenarioDTO, len(all))
	for i, sc := range all {
		dtos[i] = toScenarioDTO(sc)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, r, http.StatusOK, nil)
		return
	}
	if sc, ok := scenario.Get(current); ok {
		writeJSON(w, r, http.StatusOK, toScenarioDTO(sc))
		return
	}
	writeJSON(w, r, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a built-in scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sc, ok := scenario.Get(req.ScenarioID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	counts, err := scenario.Load(ctx, h.Store, sc)
	if err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = sc.ID
	h.mu.Unlock()

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": sc.ID,
		"counts":   counts,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := h.Tracker.Reset(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

func toScenarioDTO(sc scenario.Scenario) ScenarioDTO {
	return ScenarioDTO{ID: sc.ID, Name: sc.Name, Description: sc.Description, Category: sc.Category}
}
