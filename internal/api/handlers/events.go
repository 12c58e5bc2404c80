package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/projection"
	"github.com/dvloznov/balance-projection/internal/recurring"
)

// EventsHandler handles one-off event and recurring rule endpoints.
type EventsHandler struct {
	svc *projection.Service
	log zerolog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(svc *projection.Service, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, log: log}
}

// ListEvents handles GET /api/accounts/{id}/events?start=&end=
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	events, err := h.svc.ListEvents(r.Context(), r.PathValue("id"), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// CreateEvent handles POST /api/accounts/{id}/events
func (h *EventsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in domain.ProjectionEvent
	if !decodeJSON(w, r, &in) {
		return
	}
	in.BankAccountID = r.PathValue("id")

	res, err := h.svc.CreateEvent(r.Context(), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, res)
}

// GetEvent handles GET /api/events/{id}
func (h *EventsHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, e)
}

// UpdateEvent handles PUT /api/events/{id}
func (h *EventsHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in domain.ProjectionEvent
	if !decodeJSON(w, r, &in) {
		return
	}

	res, err := h.svc.UpdateEvent(r.Context(), r.PathValue("id"), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// DeleteEvent handles DELETE /api/events/{id}
func (h *EventsHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.DeleteEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recalculation": job})
}

// ListRules handles GET /api/accounts/{id}/rules
func (h *EventsHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule handles POST /api/accounts/{id}/rules
func (h *EventsHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var in domain.RecurringEventRule
	if !decodeJSON(w, r, &in) {
		return
	}
	in.BankAccountID = r.PathValue("id")

	res, err := h.svc.CreateRule(r.Context(), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	h.log.Info().
		Str("rule_id", res.Rule.ID).
		Int("events_created", res.EventsCreated).
		Msg("Recurring rule created")
	middleware.WriteJSON(w, http.StatusCreated, res)
}

// GetRule handles GET /api/rules/{id}
func (h *EventsHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/rules/{id}
func (h *EventsHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var in domain.RecurringEventRule
	if !decodeJSON(w, r, &in) {
		return
	}

	res, err := h.svc.UpdateRule(r.Context(), r.PathValue("id"), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// DeleteRule handles DELETE /api/rules/{id}
func (h *EventsHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.DeleteRule(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recalculation": job})
}

// ListLineage handles GET /api/rules/{id}/lineage
func (h *EventsHandler) ListLineage(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListLineage(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRevision handles POST /api/rules/{id}/revisions
func (h *EventsHandler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	var spec recurring.RevisionSpec
	if !decodeJSON(w, r, &spec) {
		return
	}

	res, err := h.svc.CreateRevisionForRecurringRule(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	h.log.Info().
		Str("base_rule_id", res.BaseRule.ID).
		Str("revision_id", res.Revision.ID).
		Int("events_deleted", res.EventsDeleted).
		Int("events_created", res.EventsCreated).
		Msg("Recurring rule revised")
	middleware.WriteJSON(w, http.StatusCreated, res)
}
