package http

import (
	"encoding/json"
	"net/http"

	"github.com/chihoangvnn/sunfoods-sub018/internal/auth"
	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"
	"github.com/chihoangvnn/sunfoods-sub018/internal/config"
	"github.com/chihoangvnn/sunfoods-sub018/internal/http/handler"
	mw "github.com/chihoangvnn/sunfoods-sub018/internal/http/middleware"
	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the engine components the boundary API exposes.
type Deps struct {
	Ledger  *membership.Ledger
	Catalog *membership.Catalog
	Members *membership.GormStore
	Jobs    *automation.Store
	History *automation.ExecutionLog
	Control *automation.ControlStore
	// EngineStats reports coordinator loop counters for the health endpoint.
	EngineStats func() map[string]any
}

func NewRouter(cfg config.Config, jwtSvc *auth.JWT, authH *handler.AuthHandler, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"status": "ok"}
		if deps.EngineStats != nil {
			body["engine"] = deps.EngineStats()
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	r.Post("/auth/register", authH.Register)
	r.Post("/auth/login", authH.Login)

	orderH := &handler.OrderHandler{Ledger: deps.Ledger}
	controlH := &handler.ControlHandler{Store: deps.Control}
	jobH := &handler.JobHandler{Store: deps.Jobs, History: deps.History}
	memberH := &handler.MembershipHandler{Catalog: deps.Catalog, Store: deps.Members}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		// Order-completion trigger from the order subsystem.
		r.Post("/orders/completed", orderH.Completed)

		r.Route("/automation", func(r chi.Router) {
			r.Get("/control", controlH.Get)
			r.Put("/control", controlH.Update)

			r.Get("/jobs", jobH.List)
			r.Post("/jobs/{id}/enable", jobH.SetEnabled(true))
			r.Post("/jobs/{id}/disable", jobH.SetEnabled(false))
			r.Get("/jobs/{id}/history", jobH.HistoryForJob)
		})

		r.Route("/membership", func(r chi.Router) {
			r.Get("/tiers", memberH.Tiers)
			r.Get("/customers/{id}", memberH.Customer)
		})
	})

	return r
}
