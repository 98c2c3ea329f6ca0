package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gyandarshak/gyandarshak/internal/assessment"
	"github.com/gyandarshak/gyandarshak/internal/assistant"
	"github.com/gyandarshak/gyandarshak/internal/auth"
	authmw "github.com/gyandarshak/gyandarshak/internal/auth/middleware"
	"github.com/gyandarshak/gyandarshak/internal/catalog"
	"github.com/gyandarshak/gyandarshak/internal/identity"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
	"github.com/gyandarshak/gyandarshak/internal/sessions"
)

// Deps are the services behind the API. Google is nil when Google
// sign-in is disabled.
type Deps struct {
	DB          *sql.DB
	Tokens      *authmw.AuthService
	Users       *identity.Service
	Tests       *assessment.Service
	Sessions    *sessions.Service
	Catalog     *catalog.Service
	Assistant   assistant.Responder
	Google      *auth.Google
	LocalAuth   bool
	CORSOrigins []string
	Timeout     time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.Assistant == nil {
		d.Assistant = assistant.Keyword{}
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(d.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Gyandarshak API is running"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyHandler(d.DB))

	if d.LocalAuth {
		r.Post("/auth/register", RegisterHandler(d.Users))
		r.Post("/auth/login", LoginHandler(d.Users, d.Tokens))
	}
	if d.Google != nil {
		r.Get("/auth/google/login", d.Google.LoginHandler())
		r.Get("/auth/google/callback", d.Google.CallbackHandler())
	}

	r.Get("/students/ping", StudentsPingHandler)
	r.Get("/colleges", ListCollegesHandler(d.Catalog))
	r.Get("/exams", ListExamsHandler(d.Catalog))
	r.Get("/scholarships", ListScholarshipsHandler(d.Catalog))
	r.Post("/ai/ask", AskHandler(d.Assistant))

	// Protected API (JWT → role from DB → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Tokens), authmw.AttachRoleFromDB(d.DB))

		pr.With(rbac.Require("profile:view-own")).Get("/students/me", GetMeHandler(d.Users))
		pr.With(rbac.Require("profile:update-own")).Patch("/students/me", UpdateMeHandler(d.Users))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", ChangePasswordHandler(d.Users))

		pr.Route("/tests", func(tr chi.Router) {
			tr.With(rbac.Require("test:create")).Post("/", CreateTestHandler(d.Tests))
			tr.With(rbac.Require("test:list")).Get("/", ListTestsHandler(d.Tests))
			tr.With(rbac.Require("attempt:view-own")).Get("/my-attempts", MyAttemptsHandler(d.Tests))
			tr.With(rbac.Require("attempt:submit")).
				Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Tests))
			tr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
				Get("/attempts/{attemptID}/answers", AttemptAnswersHandler(d.Tests))
			tr.With(rbac.Require("test:view")).Get("/{testID}", GetTestHandler(d.Tests))
			tr.With(rbac.Require("attempt:create")).Post("/{testID}/start", StartAttemptHandler(d.Tests))
			tr.With(rbac.Require("attempt:view-all")).Get("/{testID}/attempts", TestAttemptsHandler(d.Tests))
		})

		pr.Route("/sessions", func(sr chi.Router) {
			sr.With(rbac.Require("session:create")).Post("/", CreateSessionHandler(d.Sessions))
			sr.With(rbac.Require("session:view-own")).Get("/mine", MySessionsHandler(d.Sessions))
			sr.With(rbac.Require("session:view-all")).Get("/", ListSessionsHandler(d.Sessions))
			sr.With(rbac.Require("session:update")).
				Post("/{requestID}/status", UpdateSessionStatusHandler(d.Sessions))
		})

		pr.With(rbac.Require("catalog:write")).Post("/colleges", CreateCollegeHandler(d.Catalog))
		pr.With(rbac.Require("catalog:write")).Delete("/colleges/{id}", deleteCollege(d.Catalog))
		pr.With(rbac.Require("catalog:write")).Post("/exams", CreateExamHandler(d.Catalog))
		pr.With(rbac.Require("catalog:write")).Delete("/exams/{id}", deleteExam(d.Catalog))
		pr.With(rbac.Require("catalog:write")).Post("/scholarships", CreateScholarshipHandler(d.Catalog))
		pr.With(rbac.Require("catalog:write")).Delete("/scholarships/{id}", deleteScholarship(d.Catalog))

		pr.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.RequireAdmin()).Get("/admin/events", EventsHandler(d.DB))
	})

	return r
}

func readyHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "database unavailable"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
