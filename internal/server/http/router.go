// Package httpserver exposes the auth and task services over a JSON HTTP API.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/service"
)

// RequestObserver records one completed HTTP request.
type RequestObserver interface {
	ObserveHTTP(route, method string, code int, d time.Duration)
}

// Deps collects everything the router serves.
type Deps struct {
	Auth    service.AuthService
	Tasks   service.TaskService
	Health  Pinger          // optional; /healthz reports ok when nil
	Metrics RequestObserver // optional
	Scrape  http.Handler    // optional /metrics handler
	Log     *zap.Logger

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// NewRouter builds the HTTP handler.
//
// Routes:
//
//	GET    /                 welcome message
//	GET    /healthz          database ping
//	GET    /metrics          Prometheus scrape (when configured)
//	POST   /auth/signup      create account, returns token
//	POST   /auth/login       authenticate, returns token
//	GET    /auth/me          current principal            (bearer)
//	PUT    /auth/calendar    store calendar credential    (bearer)
//	DELETE /auth/calendar    clear calendar credential    (bearer)
//	POST   /tasks            create task                  (bearer)
//	GET    /tasks            list own tasks               (bearer)
//	PUT    /tasks/{id}       partial update               (bearer)
//	DELETE /tasks/{id}       delete                       (bearer)
//
// Trailing slashes are ignored, so /tasks/ and /tasks are the same route.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(RequestID)
	r.Use(Logging(log))
	if d.Metrics != nil {
		r.Use(Metrics(d.Metrics))
	}
	r.Use(Recover(log))

	r.Get("/", welcome)
	r.Get("/healthz", healthz(d.Health))
	if d.Scrape != nil {
		r.Method(http.MethodGet, "/metrics", d.Scrape)
	}

	ah := &authHandler{svc: d.Auth, log: log}
	th := &taskHandler{svc: d.Tasks, log: log}

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		r.Post("/signup", ah.signup)
		r.Post("/login", ah.login)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(d.Auth, log))
			r.Get("/me", ah.me)
			r.Put("/calendar", ah.linkCalendar)
			r.Delete("/calendar", ah.unlinkCalendar)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		r.Use(BearerAuth(d.Auth, log))
		r.Post("/", th.create)
		r.Get("/", th.list)
		r.Put("/{id}", th.update)
		r.Delete("/{id}", th.delete)
	})

	return r
}

func welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to SyncDo API"})
}
