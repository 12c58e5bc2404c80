package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/export"
	"github.com/dvloznov/balance-projection/internal/projection"
)

// BalancesHandler handles timeline, override, settings and coverage endpoints.
type BalancesHandler struct {
	svc      *projection.Service
	exporter *export.Exporter
	log      zerolog.Logger
}

// NewBalancesHandler creates a new balances handler. exporter may be nil
// when exports are not configured.
func NewBalancesHandler(svc *projection.Service, exporter *export.Exporter, log zerolog.Logger) *BalancesHandler {
	return &BalancesHandler{svc: svc, exporter: exporter, log: log}
}

type calculateRequest struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
	scenarioInput
}

// Calculate handles POST /api/accounts/{id}/balances/calculate
func (h *BalancesHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	enabled, err := req.resolve(r, h.svc)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	res, err := h.svc.CalculateDailyBalances(r.Context(), req.Start, req.End, r.PathValue("id"), enabled)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Recalculate handles POST /api/accounts/{id}/balances/recalculate
func (h *BalancesHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start civil.Date `json:"start"`
		End   civil.Date `json:"end"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.RecalculateBalancesFrom(r.Context(), req.Start, req.End, r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// ListBalances handles GET /api/accounts/{id}/balances?start=&end=
func (h *BalancesHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	rows, err := h.svc.ListDailyBalances(r.Context(), r.PathValue("id"), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"balances": rows,
		"count":    len(rows),
	})
}

// Project handles GET /api/accounts/{id}/projection
//
// Query: start, end, true_balance_date, latest_covered_date,
// decision_path_ids (comma separated) or scenario_set_id.
func (h *BalancesHandler) Project(w http.ResponseWriter, r *http.Request) {
	q, setID, err := h.projectionQuery(r)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	points, err := h.svc.ComputeBalancesOnTheFly(r.Context(), q)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bank_account_id": q.AccountID,
		"scenario_set_id": setID,
		"points":          points,
		"count":           len(points),
	})
}

// Export handles POST /api/accounts/{id}/exports with the same query
// parameters as Project.
func (h *BalancesHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil || !h.exporter.Enabled() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Exports are not configured")
		return
	}
	q, setID, err := h.projectionQuery(r)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	res, err := h.exporter.Export(r.Context(), export.Request{Query: q, ScenarioSetID: setID})
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, res)
}

func (h *BalancesHandler) projectionQuery(r *http.Request) (projection.OnTheFlyQuery, string, error) {
	start, end, err := queryRange(r)
	if err != nil {
		return projection.OnTheFlyQuery{}, "", err
	}
	trueDate, err := queryDate(r, "true_balance_date")
	if err != nil {
		return projection.OnTheFlyQuery{}, "", err
	}
	covered, err := queryDate(r, "latest_covered_date")
	if err != nil {
		return projection.OnTheFlyQuery{}, "", err
	}
	setID := r.URL.Query().Get("scenario_set_id")
	enabled, err := h.svc.ResolveEnabled(r.Context(), queryPathIDs(r), setID)
	if err != nil {
		return projection.OnTheFlyQuery{}, "", err
	}

	return projection.OnTheFlyQuery{
		Start:             start,
		End:               end,
		AccountID:         r.PathValue("id"),
		TrueBalanceDate:   trueDate,
		Enabled:           enabled,
		LatestCoveredDate: covered,
	}, setID, nil
}

// SetActualBalance handles PUT /api/accounts/{id}/actual-balances/{date}
func (h *BalancesHandler) SetActualBalance(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	var req struct {
		Amount *decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == nil {
		middleware.WriteServiceError(w, r, domain.Invalid("amount", "is required"))
		return
	}

	job, err := h.svc.SetActualBalance(r.Context(), r.PathValue("id"), date, *req.Amount)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recalculation": job})
}

// ClearActualBalance handles DELETE /api/accounts/{id}/actual-balances/{date}
func (h *BalancesHandler) ClearActualBalance(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	job, err := h.svc.ClearActualBalance(r.Context(), r.PathValue("id"), date)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recalculation": job})
}

// GetInitialBalance handles GET /api/initial-balance?bank_account_id=
func (h *BalancesHandler) GetInitialBalance(w http.ResponseWriter, r *http.Request) {
	var accountID *string
	if id := r.URL.Query().Get("bank_account_id"); id != "" {
		accountID = &id
	}

	ib, err := h.svc.GetInitialBalance(r.Context(), accountID)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ib)
}

// SetInitialBalance handles PUT /api/initial-balance
func (h *BalancesHandler) SetInitialBalance(w http.ResponseWriter, r *http.Request) {
	var in domain.InitialBalance
	if !decodeJSON(w, r, &in) {
		return
	}

	recalcs, err := h.svc.SetInitialBalance(r.Context(), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"initial_balance": in,
		"recalculations":  recalcs,
	})
}

// GetCoverage handles GET /api/accounts/{id}/coverage
func (h *BalancesHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	cov, err := h.svc.GetCoverage(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cov)
}

// RecordTransactions handles POST /api/accounts/{id}/transactions
func (h *BalancesHandler) RecordTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []domain.TransactionRecord `json:"transactions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.svc.RecordTransactions(r.Context(), r.PathValue("id"), req.Transactions)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]int{"recorded": n})
}
