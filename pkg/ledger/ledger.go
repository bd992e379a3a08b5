package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loanledger/pkg/interest"
	"github.com/mcclellann/loanledger/pkg/metrics"
	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/operations"
	"github.com/mcclellann/loanledger/pkg/projector"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/store"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

var ErrInvalidContract = errors.New("invalid contract")

// Ledger reads contracts from storage, runs ledger operations on them and
// persists the result together with an audit transaction.
type Ledger struct {
	storage store.Storage
	ops     *operations.Operations
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		storage: s,
		ops:     operations.New(),
		logger:  logger,
		now:     time.Now,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// lock serializes read-modify-write cycles on one contract.
func (l *Ledger) lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// CreateContractRequest describes a new contract. Zero values take defaults:
// per-installment interest, monthly installments and a first due date one
// cadence step after the start date.
type CreateContractRequest struct {
	CustomerKey         string              `json:"customer_key"`
	PrincipalAmount     decimal.Decimal     `json:"principal_amount"`
	InterestRate        decimal.Decimal     `json:"interest_rate"`
	InterestMode        models.InterestMode `json:"interest_mode"`
	PaymentType         models.PaymentType  `json:"payment_type"`
	InstallmentCount    int                 `json:"installment_count"`
	InstallmentValue    decimal.Decimal     `json:"installment_value"`
	StartDate           time.Time           `json:"start_date"`
	FirstDueDate        time.Time           `json:"first_due_date"`
	StoredTotalInterest decimal.NullDecimal `json:"stored_total_interest"`
	SkipSaturday        bool                `json:"skip_saturday"`
	SkipSunday          bool                `json:"skip_sunday"`
	SkipHolidays        bool                `json:"skip_holidays"`
	Annotation          string              `json:"annotation"`
}

// CreateContract prices a new contract, generates its schedule and stores it.
func (l *Ledger) CreateContract(req CreateContractRequest) (*models.Contract, error) {
	if req.CustomerKey == "" {
		return nil, fmt.Errorf("%w: customer key is required", ErrInvalidContract)
	}
	if !req.PrincipalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidContract)
	}
	if req.InterestRate.IsNegative() || req.InstallmentValue.IsNegative() {
		return nil, fmt.Errorf("%w: rate and installment value must not be negative", ErrInvalidContract)
	}

	now := l.now()
	c := &models.Contract{
		ID:                  uuid.New(),
		CustomerKey:         req.CustomerKey,
		PrincipalAmount:     req.PrincipalAmount,
		InterestRate:        req.InterestRate,
		InterestMode:        req.InterestMode,
		PaymentType:         req.PaymentType,
		InstallmentCount:    req.InstallmentCount,
		InstallmentValue:    req.InstallmentValue,
		StartDate:           schedule.Day(req.StartDate),
		StoredTotalInterest: req.StoredTotalInterest,
		TotalPaid:           decimal.Zero,
		Annotation:          req.Annotation,
		Status:              models.ContractStatusActive,
		SkipSaturday:        req.SkipSaturday,
		SkipSunday:          req.SkipSunday,
		SkipHolidays:        req.SkipHolidays,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if c.InterestMode == "" {
		c.InterestMode = models.InterestModePerInstallment
	}
	if c.PaymentType == "" {
		c.PaymentType = models.PaymentTypeInstallment
	}
	if c.PaymentType == models.PaymentTypeSingle || c.InstallmentCount < 1 {
		c.InstallmentCount = 1
	}
	if c.StartDate.IsZero() {
		c.StartDate = schedule.Day(now)
	}

	cadence := schedule.CadenceFor(c.PaymentType)
	first := schedule.Day(req.FirstDueDate)
	if first.IsZero() {
		first = schedule.Next(c.StartDate, cadence)
	}
	c.InstallmentDueDates = schedule.Generate(first, c.InstallmentCount, cadence, schedule.OptionsFor(c))
	c.DueDate = c.InstallmentDueDates[len(c.InstallmentDueDates)-1]

	totalInterest := interest.ForContract(c)
	if !c.StoredTotalInterest.Valid {
		c.StoredTotalInterest = decimal.NewNullDecimal(totalInterest)
	}
	c.OutstandingBalance = c.PrincipalAmount.Add(totalInterest)

	if err := l.storage.CreateContract(c); err != nil {
		return nil, fmt.Errorf("failed to store contract: %w", err)
	}
	l.logger.Info("contract created",
		"contract_id", c.ID,
		"customer_key", c.CustomerKey,
		"principal", c.PrincipalAmount.StringFixed(2),
		"total_interest", totalInterest.StringFixed(2),
		"installments", c.InstallmentCount,
	)
	return c, nil
}

// GetContract retrieves a contract by its ID.
func (l *Ledger) GetContract(id uuid.UUID) (*models.Contract, error) {
	return l.storage.GetContract(id)
}

// GetAllContracts retrieves all contracts.
func (l *Ledger) GetAllContracts() ([]*models.Contract, error) {
	return l.storage.GetAllContracts()
}

// DetailsUpdate carries the descriptive fields to change. A nil field is left
// as it is; the annotation holds the payment history, so it is only replaced
// when sent.
type DetailsUpdate struct {
	CustomerKey *string `json:"customer_key"`
	Annotation  *string `json:"annotation"`
}

// UpdateDetails changes the descriptive fields of a contract. Money and
// schedule fields only change through ledger operations.
func (l *Ledger) UpdateDetails(id uuid.UUID, upd DetailsUpdate) (*models.Contract, error) {
	defer l.lock(id)()

	c, err := l.storage.GetContract(id)
	if err != nil {
		return nil, err
	}
	if upd.CustomerKey != nil && *upd.CustomerKey != "" {
		c.CustomerKey = *upd.CustomerKey
	}
	if upd.Annotation != nil {
		c.Annotation = *upd.Annotation
	}
	c.UpdatedAt = l.now()
	if err := l.storage.UpdateContract(c); err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	return c, nil
}

// DeleteContract deletes a contract and its history.
func (l *Ledger) DeleteContract(id uuid.UUID) error {
	defer l.lock(id)()
	return l.storage.DeleteContract(id)
}

// Status summarizes a contract as of now.
func (l *Ledger) Status(id uuid.UUID) (projector.LoanStatus, error) {
	c, err := l.storage.GetContract(id)
	if err != nil {
		return projector.LoanStatus{}, err
	}
	return projector.GetLoanStatus(c, l.now()), nil
}

// Projection derives the per-installment state of a contract as of now.
func (l *Ledger) Projection(id uuid.UUID) (projector.Projection, error) {
	c, err := l.storage.GetContract(id)
	if err != nil {
		return projector.Projection{}, err
	}
	return projector.Project(c, l.now()), nil
}

// Transactions lists the audit trail of a contract.
func (l *Ledger) Transactions(id uuid.UUID) ([]*models.Transaction, error) {
	if _, err := l.storage.GetContract(id); err != nil {
		return nil, err
	}
	return l.storage.GetTransactionsForContract(id)
}

func (l *Ledger) RegisterPayment(id uuid.UUID, req operations.PaymentRequest) (*models.Contract, error) {
	return l.mutate(id, "payment", func(c *models.Contract, today time.Time) (operations.Result, error) {
		return l.ops.RegisterPayment(c, req, today)
	})
}

func (l *Ledger) RegisterAmortization(id uuid.UUID, amount decimal.Decimal) (*models.Contract, error) {
	return l.mutate(id, "amortization", func(c *models.Contract, today time.Time) (operations.Result, error) {
		return l.ops.RegisterAmortization(c, amount, today)
	})
}

func (l *Ledger) RegisterRenegotiation(id uuid.UUID, req operations.RenegotiationRequest) (*models.Contract, error) {
	return l.mutate(id, "renegotiation", func(c *models.Contract, today time.Time) (operations.Result, error) {
		return l.ops.RegisterRenegotiation(c, req, today)
	})
}

// SetPenalty stores or replaces the penalty of one installment.
func (l *Ledger) SetPenalty(id uuid.UUID, index int, amount decimal.Decimal) (*models.Contract, error) {
	return l.mutate(id, "penalty", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.ApplyPenalty(c, index, amount)
	})
}

// EditPenalty changes an existing penalty; it fails when the installment has none.
func (l *Ledger) EditPenalty(id uuid.UUID, index int, amount decimal.Decimal) (*models.Contract, error) {
	return l.mutate(id, "penalty_edit", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.EditPenalty(c, index, amount)
	})
}

func (l *Ledger) RemovePenalty(id uuid.UUID, index int) (*models.Contract, error) {
	return l.mutate(id, "penalty_removal", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.RemovePenalty(c, index)
	})
}

func (l *Ledger) RemoveAllPenalties(id uuid.UUID) (*models.Contract, error) {
	return l.mutate(id, "penalty_removal", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.RemoveAllPenalties(c)
	})
}

// SetOverdueConfig stores the overdue rule, or clears it when cfg is nil.
func (l *Ledger) SetOverdueConfig(id uuid.UUID, cfg *tags.OverdueConfig) (*models.Contract, error) {
	return l.mutate(id, "overdue_config", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		if cfg == nil {
			return l.ops.ClearOverdueConfig(c)
		}
		return l.ops.SetOverdueConfig(c, *cfg)
	})
}

func (l *Ledger) ApplyRenewalFee(id uuid.UUID, index int, fee decimal.Decimal) (*models.Contract, error) {
	return l.mutate(id, "renewal_fee", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.ApplyRenewalFee(c, index, fee)
	})
}

func (l *Ledger) RegisterHistoricalInterest(id uuid.UUID, amount decimal.Decimal) (*models.Contract, error) {
	return l.mutate(id, "historical_interest", func(c *models.Contract, _ time.Time) (operations.Result, error) {
		return l.ops.RegisterHistoricalInterest(c, amount)
	})
}

// mutate runs one operation under the contract's lock and persists the
// result with its audit transaction.
func (l *Ledger) mutate(id uuid.UUID, name string, op func(*models.Contract, time.Time) (operations.Result, error)) (*models.Contract, error) {
	defer l.lock(id)()

	c, err := l.storage.GetContract(id)
	if err != nil {
		metrics.Mutations.WithLabelValues(name, "error").Inc()
		return nil, err
	}
	if err := l.apply(c, name, op); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Ledger) apply(c *models.Contract, name string, op func(*models.Contract, time.Time) (operations.Result, error)) error {
	now := l.now()
	r, err := op(c, now)
	if err != nil {
		metrics.Mutations.WithLabelValues(name, "rejected").Inc()
		return err
	}
	r.ApplyTo(c)
	c.UpdatedAt = now

	var tx *models.Transaction
	if r.Type != "" {
		tx = &models.Transaction{
			ID:              uuid.New(),
			ContractID:      c.ID,
			Amount:          r.Amount,
			PrincipalAmount: r.PrincipalAmount,
			InterestAmount:  r.InterestAmount,
			Type:            r.Type,
			Timestamp:       now,
		}
	}
	if err := l.storage.SaveMutation(c, tx); err != nil {
		metrics.Mutations.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	metrics.Mutations.WithLabelValues(name, "ok").Inc()
	if tx != nil {
		metrics.MovedAmount.WithLabelValues(string(tx.Type)).Add(tx.Amount.Abs().InexactFloat64())
	}
	l.logger.Info("contract updated",
		"contract_id", c.ID,
		"operation", name,
		"amount", r.Amount.StringFixed(2),
		"balance", c.OutstandingBalance.StringFixed(2),
		"total_paid", c.TotalPaid.StringFixed(2),
		"status", c.Status,
	)
	return nil
}

// ApplyOverduePenalties runs the overdue penalty rule over every active
// contract that has one. Contracts without a rule are skipped and a failure
// on one contract does not stop the others.
func (l *Ledger) ApplyOverduePenalties() {
	metrics.PenaltyBatchRuns.Inc()

	contracts, err := l.storage.GetActiveContracts()
	if err != nil {
		l.logger.Error("listing active contracts for overdue penalties", "error", err)
		return
	}

	for _, listed := range contracts {
		if !tags.Has(listed.Annotation, tags.KindOverdueConfig) {
			metrics.PenaltyBatchContracts.WithLabelValues("skipped").Inc()
			continue
		}
		_, err := l.mutate(listed.ID, "overdue_penalties", func(c *models.Contract, today time.Time) (operations.Result, error) {
			return l.ops.ApplyOverduePenalties(c, today)
		})
		switch {
		case errors.Is(err, operations.ErrNoOverdueConfig), errors.Is(err, operations.ErrContractPaid):
			metrics.PenaltyBatchContracts.WithLabelValues("skipped").Inc()
		case err != nil:
			metrics.PenaltyBatchContracts.WithLabelValues("failed").Inc()
			l.logger.Error("applying overdue penalties", "contract_id", listed.ID, "error", err)
		default:
			metrics.PenaltyBatchContracts.WithLabelValues("applied").Inc()
		}
	}
}
