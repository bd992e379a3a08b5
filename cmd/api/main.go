package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/loanledger/pkg/config"
	"github.com/mcclellann/loanledger/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/contracts", s.listContractsHandler).Methods("GET")
	router.HandleFunc("/contracts", s.createContractHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}", s.getContractHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}", s.updateContractHandler).Methods("PUT")
	router.HandleFunc("/contracts/{id}", s.deleteContractHandler).Methods("DELETE")

	router.HandleFunc("/contracts/{id}/status", s.statusHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}/projection", s.projectionHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}/transactions", s.transactionsHandler).Methods("GET")

	router.HandleFunc("/contracts/{id}/payments", s.paymentHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/amortizations", s.amortizationHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/renegotiations", s.renegotiationHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/historical-interest", s.historicalInterestHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/penalties", s.removeAllPenaltiesHandler).Methods("DELETE")
	router.HandleFunc("/contracts/{id}/penalties/{index:[0-9]+}", s.setPenaltyHandler).Methods("POST", "PUT")
	router.HandleFunc("/contracts/{id}/penalties/{index:[0-9]+}", s.removePenaltyHandler).Methods("DELETE")
	router.HandleFunc("/contracts/{id}/renewal-fees/{index:[0-9]+}", s.renewalFeeHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/overdue-config", s.overdueConfigHandler).Methods("PUT", "DELETE")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

// runPenaltyBatch applies overdue penalties on every tick until ctx is done.
func (s *Server) runPenaltyBatch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Info("running overdue penalty batch")
			s.ledger.ApplyOverduePenalties()
			s.logger.Info("overdue penalty batch complete")
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize SQLite store", "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go server.runPenaltyBatch(ctx, cfg.PenaltyInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
