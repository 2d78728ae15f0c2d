package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"oscar-gateway/internal/auth"
	"oscar-gateway/internal/config"
	"oscar-gateway/internal/metrics"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies - все, что нужно обработчикам. Клиенты апстримов общие для
// всех запросов и не меняются после старта.
type Dependencies struct {
	Middleware service.UpstreamClient
	Inventory  service.UpstreamClient
	Mapping    service.UpstreamClient
	Sessions   *auth.SessionCodec
	Provider   *auth.Provider
	ACL        *auth.ACL
	Audit      *service.AuditService
	Searcher   *service.Searcher
}

// Server - прокси-слой консоли OSCAR перед middleware API.
type Server struct {
	cfg       *config.Config
	core      service.UpstreamClient
	inventory service.UpstreamClient
	mapping   service.UpstreamClient
	sessions  *auth.SessionCodec
	provider  *auth.Provider
	acl       *auth.ACL
	audit     *service.AuditService
	searcher  *service.Searcher
}

// New создает сервер. Конфигурация только читается.
func New(cfg *config.Config, deps Dependencies) *Server {
	audit := deps.Audit
	if audit == nil {
		audit = service.NewAuditService(nil)
	}
	return &Server{
		cfg:       cfg,
		core:      deps.Middleware,
		inventory: deps.Inventory,
		mapping:   deps.Mapping,
		sessions:  deps.Sessions,
		provider:  deps.Provider,
		acl:       deps.ACL,
		audit:     audit,
		searcher:  deps.Searcher,
	}
}

// Start запускает HTTP-сервер и останавливает его при отмене ctx.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting OSCAR gateway on %s", s.cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down OSCAR gateway...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Router создает роутер: /api для консоли, /healthz и /metrics для эксплуатации.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Handle("/healthz", methods{http.MethodGet: handleHealthz})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", s.mountAuth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.auditMiddleware)

			s.mountAlerts(r)
			s.mountRules(r)
			s.mountSuppressions(r)
			s.mountNotifiers(r)
			s.mountProbes(r)
			s.mountTasks(r)
			s.mountWorkflows(r)
			s.mountMappings(r)
			s.mountSLI(r)
			s.mountSecrets(r)
			s.mountUsers(r)
			s.mountInventory(r)
			s.mountEmbeds(r)
			s.mountSearch(r)
			s.mountAudit(r)
		})
	})
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
