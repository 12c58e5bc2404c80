package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/export"
	"github.com/dvloznov/balance-projection/internal/projection"
)

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(svc *projection.Service, exporter *export.Exporter, log zerolog.Logger) *http.ServeMux {
	accounts := NewAccountsHandler(svc, log)
	events := NewEventsHandler(svc, log)
	scenarios := NewScenariosHandler(svc, log)
	balances := NewBalancesHandler(svc, exporter, log)
	jobsHandler := NewJobsHandler(svc, log)

	mux := http.NewServeMux()

	// Accounts endpoints
	mux.HandleFunc("GET /api/accounts", accounts.ListAccounts)
	mux.HandleFunc("POST /api/accounts", accounts.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", accounts.GetAccount)

	// Events and rules endpoints
	mux.HandleFunc("GET /api/accounts/{id}/events", events.ListEvents)
	mux.HandleFunc("POST /api/accounts/{id}/events", events.CreateEvent)
	mux.HandleFunc("GET /api/events/{id}", events.GetEvent)
	mux.HandleFunc("PUT /api/events/{id}", events.UpdateEvent)
	mux.HandleFunc("DELETE /api/events/{id}", events.DeleteEvent)
	mux.HandleFunc("GET /api/accounts/{id}/rules", events.ListRules)
	mux.HandleFunc("POST /api/accounts/{id}/rules", events.CreateRule)
	mux.HandleFunc("GET /api/rules/{id}", events.GetRule)
	mux.HandleFunc("PUT /api/rules/{id}", events.UpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", events.DeleteRule)
	mux.HandleFunc("GET /api/rules/{id}/lineage", events.ListLineage)
	mux.HandleFunc("POST /api/rules/{id}/revisions", events.CreateRevision)

	// Scenario endpoints
	mux.HandleFunc("GET /api/decision-paths", scenarios.ListDecisionPaths)
	mux.HandleFunc("POST /api/decision-paths", scenarios.CreateDecisionPath)
	mux.HandleFunc("GET /api/decision-paths/{id}", scenarios.GetDecisionPath)
	mux.HandleFunc("DELETE /api/decision-paths/{id}", scenarios.DeleteDecisionPath)
	mux.HandleFunc("GET /api/scenario-sets", scenarios.ListScenarioSets)
	mux.HandleFunc("POST /api/scenario-sets", scenarios.CreateScenarioSet)
	mux.HandleFunc("GET /api/scenario-sets/{id}", scenarios.GetScenarioSet)
	mux.HandleFunc("DELETE /api/scenario-sets/{id}", scenarios.DeleteScenarioSet)
	mux.HandleFunc("PUT /api/scenario-sets/{id}/paths", scenarios.UpdateScenarioPaths)
	mux.HandleFunc("POST /api/scenario-sets/{id}/default", scenarios.MakeDefault)

	// Balance endpoints
	mux.HandleFunc("POST /api/accounts/{id}/balances/calculate", balances.Calculate)
	mux.HandleFunc("POST /api/accounts/{id}/balances/recalculate", balances.Recalculate)
	mux.HandleFunc("GET /api/accounts/{id}/balances", balances.ListBalances)
	mux.HandleFunc("GET /api/accounts/{id}/projection", balances.Project)
	mux.HandleFunc("POST /api/accounts/{id}/exports", balances.Export)
	mux.HandleFunc("PUT /api/accounts/{id}/actual-balances/{date}", balances.SetActualBalance)
	mux.HandleFunc("DELETE /api/accounts/{id}/actual-balances/{date}", balances.ClearActualBalance)
	mux.HandleFunc("GET /api/initial-balance", balances.GetInitialBalance)
	mux.HandleFunc("PUT /api/initial-balance", balances.SetInitialBalance)
	mux.HandleFunc("GET /api/accounts/{id}/coverage", balances.GetCoverage)
	mux.HandleFunc("POST /api/accounts/{id}/transactions", balances.RecordTransactions)

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)
	mux.HandleFunc("POST /api/accounts/{id}/rebuild", jobsHandler.RebuildAccount)
	mux.HandleFunc("POST /api/rebuild", jobsHandler.RebuildAll)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
