package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shorttrack/shorttrack/internal/analytics"
	"github.com/shorttrack/shorttrack/internal/calendar"
	"github.com/shorttrack/shorttrack/internal/monitoring"
	"github.com/shorttrack/shorttrack/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analytics API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := initService(st)

		if cfg.Monitor.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, calendar.NewBusiness()),
				monitoring.NewAlerter(cfg.Monitor.WebhookURL, cfg.Monitor.MaxStaleDays),
				time.Duration(cfg.Monitor.CheckIntervalMins)*time.Minute,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, svc),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(st store.Store, svc *analytics.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(throttle(rate.NewLimiter(rate.Limit(50), 100)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/countries", func(w http.ResponseWriter, r *http.Request) {
			countries, err := st.ListCountries(r.Context())
			if err != nil {
				respondErr(w, err)
				return
			}
			respondJSON(w, http.StatusOK, countries)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/country/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
				if err != nil {
					respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid country id"})
					return
				}
				out, err := svc.CountryAnalytics(r.Context(), id)
				if err != nil {
					respondErr(w, err)
					return
				}
				respondJSON(w, http.StatusOK, out)
			})

			r.Get("/company/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
				if err != nil {
					respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
					return
				}
				out, err := svc.CompanyTimeline(r.Context(), id, r.URL.Query().Get("timeframe"))
				if err != nil {
					respondErr(w, err)
					return
				}
				respondJSON(w, http.StatusOK, out)
			})

			r.Get("/manager/{idOrSlug}", func(w http.ResponseWriter, r *http.Request) {
				out, err := svc.ManagerLedger(r.Context(), chi.URLParam(r, "idOrSlug"))
				if err != nil {
					respondErr(w, err)
					return
				}
				respondJSON(w, http.StatusOK, out)
			})

			r.Get("/global", func(w http.ResponseWriter, r *http.Request) {
				out, err := svc.GlobalRankings(r.Context(), r.URL.Query().Get("timeframe"))
				if err != nil {
					respondErr(w, err)
					return
				}
				respondJSON(w, http.StatusOK, out)
			})
		})
	})

	return r
}

func throttle(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
