/*
server.go - HTTP server wiring

PURPOSE:
  Builds the chi router, mounts the handler groups, and owns server
  lifecycle (serve, graceful shutdown). Routing only; behavior lives in
  handlers.go.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type Server struct {
	handler *Handler
	log     *logrus.Logger
	srv     *http.Server
}

func NewServer(h *Handler, port int, allowedOrigins []string) *Server {
	s := &Server{handler: h, log: h.Log}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/currency", h.SetCurrency)
			r.Post("/{id}/admin", h.SetAdmin)
			r.Post("/{id}/secondary", h.SetSecondaryBalance)
			r.Delete("/{id}", h.RemoveUser)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", h.CreateReport)
			r.Get("/", h.ListReports)
			r.Get("/export", h.ExportReports)
			r.Delete("/{id}", h.ReverseReport)
		})

		r.Route("/operations", func(r chi.Router) {
			r.Post("/", h.CreateOperation)
			r.Get("/", h.ListOperations)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Post("/{id}/collect", h.CollectCommission)
			r.Post("/{id}/amount", h.SetCommissionAmount)
		})

		r.Post("/charity/reset", h.ResetCharity)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/totals", h.Totals)
			r.Get("/interval", h.IntervalStats)
			r.Get("/charity", h.CharityAccrued)
		})

		r.Route("/partners", func(r chi.Router) {
			r.Post("/", h.CreatePartner)
			r.Get("/", h.ListPartners)
			r.Delete("/{id}", h.DeactivatePartner)
		})
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.srv.Handler }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.srv.Addr).Info("listening")
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
