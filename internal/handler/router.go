// Package handler exposes the step-driven import API over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/infra/observability"
	"github.com/bankimport/fints-firefly-go/internal/infra/session"
	"github.com/bankimport/fints-firefly-go/internal/service"
	"github.com/bankimport/fints-firefly-go/internal/workflow"
)

var tracer = otel.Tracer("handler")

const sessionCookie = "import_session"

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(importSvc *service.ImportService, authSvc *service.AuthService, sessions *session.Store, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", loginHandler(authSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))
			r.Get("/accounts", accountsHandler(importSvc, logger))
			r.Post("/import", importHandler(importSvc, sessions, logger))
			r.Delete("/import", cancelImportHandler(sessions, logger))
			r.Get("/stats", statsHandler(metrics))
		})
	})

	return r
}

// ============================================================
// Operational — /healthz, /readyz
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Auth — POST /v1/login
// ============================================================

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/login")
		defer span.End()

		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Login(ctx, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Accounts — GET /v1/accounts
// ============================================================

func accountsHandler(importSvc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		accounts, err := importSvc.Accounts(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
	}
}

// ============================================================
// Import — POST /v1/import
// ============================================================

// importRequest is one turn of the step-driven workflow. The client
// sends the same form fields on every turn plus the step to execute;
// the TAN response only appears on the resume turn.
type importRequest struct {
	Step              string `json:"step"`
	BankAccount       *int   `json:"bank_account,omitempty"`
	LedgerAccount     string `json:"ledger_account,omitempty"`
	DateFrom          string `json:"date_from,omitempty"`
	DateTo            string `json:"date_to,omitempty"`
	ChallengeResponse string `json:"challenge_response,omitempty"`
}

func importHandler(importSvc *service.ImportService, sessions *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/import")
		defer span.End()

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		step := workflow.Step(req.Step)
		if req.Step == "" {
			step = workflow.StepGetImportData
		}
		if !step.Valid() || step == workflow.StepDone {
			writeError(w, http.StatusBadRequest, "unknown step: "+req.Step)
			return
		}
		span.SetAttributes(attribute.String("import.step", string(step)))

		sessionID, snap := loadSession(r, sessions)

		in := service.ImportInput{
			AccountIndex:      req.BankAccount,
			LedgerAccountID:   req.LedgerAccount,
			DateFrom:          req.DateFrom,
			DateTo:            req.DateTo,
			ChallengeResponse: req.ChallengeResponse,
		}

		if step == workflow.StepSetup {
			// The setup turn lists accounts so the client can render the
			// import form; no session state is touched yet.
			accounts, err := importSvc.Accounts(ctx)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"accounts":  accounts,
				"next_step": workflow.StepGetImportData,
			})
			return
		}

		var (
			out *service.ImportOutcome
			err error
		)
		switch step {
		case workflow.StepGetImportData:
			out, err = importSvc.GetImportData(ctx, snap, in)
			// The format fallback asks for one immediate re-request; run
			// it within the same turn so the client never sees it.
			if err == nil && out.Retry {
				out, err = importSvc.GetImportData(ctx, snap, in)
			}
		case workflow.StepRunImport:
			out, err = importSvc.RunImport(ctx, snap)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if out.Done {
			sessions.Delete(sessionID)
		} else {
			sessions.Set(sessionID, snap)
		}
		setSessionCookie(w, sessionID)

		writeJSON(w, http.StatusOK, out)
	}
}

func cancelImportHandler(sessions *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			sessions.Delete(cookie.Value)
			logger.Info("import session cancelled", zap.String("session_id", cookie.Value))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadSession resolves the workflow snapshot for this request, creating
// a fresh session when none exists.
func loadSession(r *http.Request, sessions *session.Store) (string, *workflow.Snapshot) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if snap, ok := sessions.Get(cookie.Value); ok {
			return cookie.Value, snap
		}
	}
	return uuid.New().String(), &workflow.Snapshot{}
}

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(30 * time.Minute),
	})
}

// ============================================================
// Stats — GET /v1/stats
// ============================================================

func statsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
