package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/loanledger/pkg/ledger"
	"github.com/mcclellann/loanledger/pkg/operations"
	"github.com/mcclellann/loanledger/pkg/store"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // kept to close it on shutdown
	logger  *slog.Logger
}

func NewServer(s store.Storage, logger *slog.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		storage: s,
		logger:  logger,
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) createContractHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.ledger.CreateContract(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listContractsHandler(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.ledger.GetAllContracts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (s *Server) getContractHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	c, err := s.ledger.GetContract(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateContractHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	var req ledger.DetailsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.ledger.UpdateDetails(id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteContractHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteContract(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	st, err := s.ledger.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) projectionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	p, err := s.ledger.Projection(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) transactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	txs, err := s.ledger.Transactions(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	var req operations.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusCreated)(s.ledger.RegisterPayment(id, req))
}

func (s *Server) amortizationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusCreated)(s.ledger.RegisterAmortization(id, req.Amount))
}

func (s *Server) renegotiationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	var req operations.RenegotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusCreated)(s.ledger.RegisterRenegotiation(id, req))
}

func (s *Server) setPenaltyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	index, ok := installmentIndex(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodPut {
		s.respond(w, http.StatusOK)(s.ledger.EditPenalty(id, index, req.Amount))
		return
	}
	s.respond(w, http.StatusOK)(s.ledger.SetPenalty(id, index, req.Amount))
}

func (s *Server) removePenaltyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	index, ok := installmentIndex(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK)(s.ledger.RemovePenalty(id, index))
}

func (s *Server) removeAllPenaltiesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK)(s.ledger.RemoveAllPenalties(id))
}

func (s *Server) overdueConfigHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodDelete {
		s.respond(w, http.StatusOK)(s.ledger.SetOverdueConfig(id, nil))
		return
	}
	var cfg tags.OverdueConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusOK)(s.ledger.SetOverdueConfig(id, &cfg))
}

func (s *Server) renewalFeeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	index, ok := installmentIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		Fee decimal.Decimal `json:"fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusOK)(s.ledger.ApplyRenewalFee(id, index, req.Fee))
}

func (s *Server) historicalInterestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, http.StatusCreated)(s.ledger.RegisterHistoricalInterest(id, req.Amount))
}

// respond writes a mutation's updated contract, or its error.
func (s *Server) respond(w http.ResponseWriter, status int) func(any, error) {
	return func(v any, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, status, v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, operations.ErrPenaltyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidContract),
		errors.Is(err, operations.ErrInvalidAmount),
		errors.Is(err, operations.ErrInvalidIndex),
		errors.Is(err, operations.ErrInvalidPenalty),
		errors.Is(err, operations.ErrUnknownKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, operations.ErrContractPaid), errors.Is(err, operations.ErrNoOverdueConfig):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func contractID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func installmentIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "Invalid installment index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
