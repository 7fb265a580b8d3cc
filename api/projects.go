package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/warp/crew-engine/calendar"
	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/report"
)

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.Store.GetProject(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProjectDTO(project))
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required", nil)
		return
	}

	project := domain.Project{
		ID:        domain.ProjectID(orNew(req.ID)),
		OrgID:     domain.OrgID(req.OrgID),
		Name:      req.Name,
		CreatedAt: h.now().UTC(),
	}
	if err := h.Store.SaveProject(r.Context(), project); err != nil {
		h.fail(w, r, "Failed to create project", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toProjectDTO(project))
}

// =============================================================================
// PHASE HANDLERS
// =============================================================================

// ListPhases returns the phases of a project, dated ones first.
func (h *Handler) ListPhases(w http.ResponseWriter, r *http.Request) {
	project, err := h.Store.GetProject(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}
	phases, err := h.Store.ListPhases(r.Context(), project.ID)
	if err != nil {
		h.fail(w, r, "Failed to list phases", err)
		return
	}
	dtos := make([]PhaseDTO, len(phases))
	for i, p := range phases {
		dtos[i] = toPhaseDTO(p)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

func (h *Handler) CreatePhase(w http.ResponseWriter, r *http.Request) {
	project, err := h.Store.GetProject(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}

	var req CreatePhaseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required", nil)
		return
	}
	status := domain.PhaseStatus(req.Status)
	if status == "" {
		status = domain.PhaseNotStarted
	}
	if !status.Valid() {
		writeError(w, r, http.StatusBadRequest, "Unknown phase status "+req.Status, nil)
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		writeError(w, r, http.StatusBadRequest, "progress must be between 0 and 100", nil)
		return
	}
	start, err := optionalDate(req.StartDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	if start != nil && end != nil {
		if err := (domain.Period{Start: *start, End: *end}).Validate(); err != nil {
			h.fail(w, r, "Invalid phase dates", err)
			return
		}
	}

	phase := domain.Phase{
		ID:        domain.PhaseID(orNew(req.ID)),
		ProjectID: project.ID,
		Name:      req.Name,
		Status:    status,
		StartDate: start,
		EndDate:   end,
		Progress:  req.Progress,
		Budget:    req.Budget,
	}
	if err := h.Store.SavePhase(r.Context(), phase); err != nil {
		h.fail(w, r, "Failed to create phase", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toPhaseDTO(phase))
}

// =============================================================================
// COST LINE HANDLERS
// =============================================================================

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	phase, ok := h.phase(w, r)
	if !ok {
		return
	}
	var req CreateMaterialRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity.IsNegative() || req.UnitCost.IsNegative() {
		writeError(w, r, http.StatusBadRequest, "quantity and unit_cost must not be negative", nil)
		return
	}
	status := domain.MaterialStatus(req.Status)
	switch status {
	case "":
		status = domain.MaterialPlanned
	case domain.MaterialPlanned, domain.MaterialOrdered, domain.MaterialDelivered, domain.MaterialUsed:
	default:
		writeError(w, r, http.StatusBadRequest, "Unknown material status "+req.Status, nil)
		return
	}

	line := domain.MaterialLine{
		ID:       orNew(req.ID),
		PhaseID:  phase.ID,
		Name:     req.Name,
		Unit:     req.Unit,
		Quantity: req.Quantity,
		UnitCost: req.UnitCost,
		Status:   status,
	}
	if err := h.Store.SaveMaterial(r.Context(), line); err != nil {
		h.fail(w, r, "Failed to save material", err)
		return
	}
	h.writePhaseCosts(w, r, http.StatusCreated, phase.ID)
}

func (h *Handler) CreateLabor(w http.ResponseWriter, r *http.Request) {
	phase, ok := h.phase(w, r)
	if !ok {
		return
	}
	var req CreateLaborRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	pricing := domain.PricingType(req.PricingType)
	switch pricing {
	case "":
		pricing = domain.PricingHourly
	case domain.PricingHourly, domain.PricingFixed:
	default:
		writeError(w, r, http.StatusBadRequest, "Unknown pricing type "+req.PricingType, nil)
		return
	}
	if req.HoursPlanned.IsNegative() || req.HoursActual.IsNegative() {
		h.fail(w, r, "Invalid hours", domain.ErrInvalidHours)
		return
	}
	if req.HourlyRate.IsNegative() || req.FixedPrice.IsNegative() {
		writeError(w, r, http.StatusBadRequest, "hourly_rate and fixed_price must not be negative", nil)
		return
	}
	day, err := domain.ParseDate(req.WorkDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid work_date format (use YYYY-MM-DD)", err)
		return
	}

	line := domain.LaborLine{
		ID:           orNew(req.ID),
		PhaseID:      phase.ID,
		WorkerID:     domain.WorkerID(req.WorkerID),
		WorkDate:     day,
		PricingType:  pricing,
		HoursPlanned: req.HoursPlanned,
		HoursActual:  req.HoursActual,
		HourlyRate:   req.HourlyRate,
		FixedPrice:   req.FixedPrice,
	}
	if err := h.Store.SaveLabor(r.Context(), line); err != nil {
		h.fail(w, r, "Failed to save labor", err)
		return
	}
	h.writePhaseCosts(w, r, http.StatusCreated, phase.ID)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	phase, ok := h.phase(w, r)
	if !ok {
		return
	}
	var req CreateExpenseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, r, http.StatusBadRequest, "amount must not be negative", nil)
		return
	}
	status := domain.ExpenseStatus(req.Status)
	switch status {
	case "":
		status = domain.ExpensePending
	case domain.ExpensePending, domain.ExpenseApproved, domain.ExpenseRejected, domain.ExpensePaid:
	default:
		writeError(w, r, http.StatusBadRequest, "Unknown expense status "+req.Status, nil)
		return
	}
	day, err := h.dateOrToday(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	line := domain.ExpenseLine{
		ID:          orNew(req.ID),
		PhaseID:     phase.ID,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        day,
		Status:      status,
	}
	if err := h.Store.SaveExpense(r.Context(), line); err != nil {
		h.fail(w, r, "Failed to save expense", err)
		return
	}
	h.writePhaseCosts(w, r, http.StatusCreated, phase.ID)
}

// =============================================================================
// COSTS & EXPORTS
// =============================================================================

// GetPhaseCosts returns the cost summary of one phase.
func (h *Handler) GetPhaseCosts(w http.ResponseWriter, r *http.Request) {
	h.writePhaseCosts(w, r, http.StatusOK, domain.PhaseID(chi.URLParam(r, "id")))
}

func (h *Handler) writePhaseCosts(w http.ResponseWriter, r *http.Request, status int, id domain.PhaseID) {
	sum, err := h.Costs.PhaseSummary(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to summarize phase costs", err)
		return
	}
	writeJSON(w, r, status, toPhaseCostDTO(sum))
}

// GetProjectCosts returns the per-phase summaries and the project rollup.
func (h *Handler) GetProjectCosts(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Costs.ProjectSummary(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "Failed to summarize project costs", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProjectCostDTO(sum))
}

func (h *Handler) GetProjectCostsWorkbook(w http.ResponseWriter, r *http.Request) {
	project, phases, sum, ok := h.projectCosts(w, r)
	if !ok {
		return
	}
	data, err := report.Costs(project, phases, sum)
	if err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}
	writeFile(w, report.ContentType, "costs-"+string(project.ID)+".xlsx", data)
}

// GetCalendar exports the dated phases of a project as an iCalendar file.
// 422 when no phase has both dates.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	project, phases, sum, ok := h.projectCosts(w, r)
	if !ok {
		return
	}

	opts := h.calendar
	opts.Name = project.Name
	opts.Now = h.now()
	ics, err := calendar.Format(phases, costs.ByPhase(sum.Phases), opts)
	if err != nil {
		h.fail(w, r, "Failed to export calendar", err)
		return
	}
	writeFile(w, calendar.ContentType, calendar.Filename(project.Name, h.today()), []byte(ics))
}

func (h *Handler) projectCosts(w http.ResponseWriter, r *http.Request) (domain.Project, []domain.Phase, costs.ProjectCostSummary, bool) {
	ctx := r.Context()
	project, err := h.Store.GetProject(ctx, projectParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return domain.Project{}, nil, costs.ProjectCostSummary{}, false
	}
	phases, err := h.Store.ListPhases(ctx, project.ID)
	if err != nil {
		h.fail(w, r, "Failed to list phases", err)
		return domain.Project{}, nil, costs.ProjectCostSummary{}, false
	}
	sum, err := h.Costs.ProjectSummary(ctx, project.ID)
	if err != nil {
		h.fail(w, r, "Failed to summarize project costs", err)
		return domain.Project{}, nil, costs.ProjectCostSummary{}, false
	}
	return project, phases, sum, true
}

func (h *Handler) phase(w http.ResponseWriter, r *http.Request) (domain.Phase, bool) {
	phase, err := h.Store.GetPhase(r.Context(), domain.PhaseID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get phase", err)
		return domain.Phase{}, false
	}
	return phase, true
}

func (h *Handler) dateOrToday(s string) (domain.Date, error) {
	if s == "" {
		return h.today(), nil
	}
	return domain.ParseDate(s)
}

func projectParam(r *http.Request) domain.ProjectID {
	return domain.ProjectID(chi.URLParam(r, "id"))
}
