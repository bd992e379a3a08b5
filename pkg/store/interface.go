package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/loanledger/pkg/models"
)

// ErrNotFound is returned when a contract does not exist.
var ErrNotFound = errors.New("contract not found")

// Storage defines the interface for database operations related to contracts and transactions.
type Storage interface {
	CreateContract(contract *models.Contract) error
	GetContract(id uuid.UUID) (*models.Contract, error)
	UpdateContract(contract *models.Contract) error
	DeleteContract(id uuid.UUID) error
	GetAllContracts() ([]*models.Contract, error)
	GetActiveContracts() ([]*models.Contract, error)

	// SaveMutation persists the contract and, when tx is not nil, its audit
	// transaction atomically.
	SaveMutation(contract *models.Contract, tx *models.Transaction) error

	CreateTransaction(transaction *models.Transaction) error
	GetTransactionsForContract(contractID uuid.UUID) ([]*models.Transaction, error)

	Close() error
}
