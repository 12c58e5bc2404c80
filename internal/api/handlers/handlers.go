// Package handlers adapts the projection service to JSON over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/projection"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// maxBodyBytes caps request bodies; transaction uploads are the largest.
const maxBodyBytes = 8 << 20

// AccountsHandler handles bank account endpoints.
type AccountsHandler struct {
	svc *projection.Service
	log zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(svc *projection.Service, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{svc: svc, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.svc.CreateAccount(r.Context(), req.Name)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	h.log.Info().Str("bank_account_id", acct.ID).Msg("Account created")
	middleware.WriteJSON(w, http.StatusCreated, acct)
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, acct)
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, domain.Invalid(name, "must be a YYYY-MM-DD date")
	}
	return &d, nil
}

// queryRange parses the required start and end query parameters.
func queryRange(r *http.Request) (civil.Date, civil.Date, error) {
	start, err := queryDate(r, "start")
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	end, err := queryDate(r, "end")
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	if start == nil || end == nil {
		return civil.Date{}, civil.Date{}, domain.Invalid("start", "start and end are required")
	}
	return *start, *end, nil
}

// pathDate parses a YYYY-MM-DD path segment.
func pathDate(r *http.Request, name string) (civil.Date, error) {
	d, err := civil.ParseDate(r.PathValue(name))
	if err != nil {
		return civil.Date{}, domain.Invalid(name, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

// queryPathIDs reads decision_path_ids=a,b. An absent parameter returns nil
// (no restriction); a present but empty one enables nothing.
func queryPathIDs(r *http.Request) []string {
	q := r.URL.Query()
	if !q.Has("decision_path_ids") {
		return nil
	}
	ids := []string{}
	for _, id := range strings.Split(q.Get("decision_path_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// scenarioInput is the scenario part of a balance request body.
type scenarioInput struct {
	DecisionPathIDs *[]string `json:"decision_path_ids,omitempty"`
	ScenarioSetID   string    `json:"scenario_set_id,omitempty"`
}

func (s scenarioInput) resolve(r *http.Request, svc *projection.Service) (scenario.EnabledSet, error) {
	var ids []string
	if s.DecisionPathIDs != nil {
		ids = *s.DecisionPathIDs
		if ids == nil {
			ids = []string{}
		}
	}
	return svc.ResolveEnabled(r.Context(), ids, s.ScenarioSetID)
}
