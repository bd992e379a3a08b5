package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mutations counts ledger mutations by operation and outcome.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanledger_mutations_total",
			Help: "Contract mutations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	// MovedAmount sums the money recorded by mutations, by transaction type.
	MovedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanledger_moved_amount_total",
			Help: "Absolute amount recorded in audit transactions",
		},
		[]string{"type"},
	)

	PenaltyBatchRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loanledger_penalty_batch_runs_total",
			Help: "Overdue penalty batch runs",
		},
	)

	// PenaltyBatchContracts counts contracts touched by the overdue penalty batch.
	PenaltyBatchContracts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanledger_penalty_batch_contracts_total",
			Help: "Contracts processed by the overdue penalty batch",
		},
		[]string{"result"},
	)
)
