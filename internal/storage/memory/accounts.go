package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// AccountStore keeps balances in a map guarded by a single mutex, which
// makes every operation linearizable.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*models.Account),
	}
}

func (s *AccountStore) EnsureAccount(ctx context.Context, accountID string, initial models.Amount) (models.Account, error) {
	acct, _, err := s.ensure(accountID, initial)
	return acct, err
}

// ensure also reports whether the account was created by this call.
func (s *AccountStore) ensure(accountID string, initial models.Amount) (models.Account, bool, error) {
	if accountID == "" {
		return models.Account{}, false, models.ErrInvalidAccount
	}
	if initial < 0 {
		return models.Account{}, false, fmt.Errorf("%w: initial balance %s is negative", models.ErrInvalidAmount, initial)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[accountID]; ok {
		return *existing, false, nil
	}
	acct := &models.Account{
		ID:        accountID,
		Balance:   initial,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[accountID] = acct
	return *acct, true, nil
}

func (s *AccountStore) GetBalance(ctx context.Context, accountID string) (models.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	return acct.Balance, nil
}

func (s *AccountStore) Credit(ctx context.Context, accountID string, amount models.Amount) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	if acct.Balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: credit of %s overflows balance of %s", models.ErrInvalidAmount, amount, accountID)
	}
	acct.Balance += amount
	return nil
}

func (s *AccountStore) Debit(ctx context.Context, accountID string, amount models.Amount) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	if acct.Balance < amount {
		return fmt.Errorf("%w: %s holds %s, needs %s", models.ErrInsufficientFunds, accountID, acct.Balance, amount)
	}
	acct.Balance -= amount
	return nil
}

// ListAccounts returns copies sorted by id.
func (s *AccountStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// adjust applies a signed delta without validation. Only used to undo
// changes that were validated when first applied.
func (s *AccountStore) adjust(accountID string, delta models.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[accountID]; ok {
		acct.Balance += delta
	}
}

func (s *AccountStore) remove(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, accountID)
}

func (s *AccountStore) replace(accounts []models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[string]*models.Account, len(accounts))
	for _, a := range accounts {
		acct := a
		s.accounts[a.ID] = &acct
	}
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
