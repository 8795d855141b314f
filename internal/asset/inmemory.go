package asset

import (
	"context"
	"sync"
)

// NewInMemory creates a concurrency-safe in-memory asset ledger. The vault's
// own account is identified by vaultAccount; Transfer debits it and
// TransferFrom credits it. Useful for unit tests and local runs without a
// real asset backend.
func NewInMemory(vaultAccount string) *InMemoryLedger {
	return &InMemoryLedger{
		vault:    vaultAccount,
		balances: make(map[string]int64),
	}
}

// InMemoryLedger implements Ledger over a plain balance map.
type InMemoryLedger struct {
	mu       sync.RWMutex
	vault    string
	balances map[string]int64
}

// Credit seeds an account balance. Test/bootstrap helper, not part of the
// Ledger contract.
func (l *InMemoryLedger) Credit(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

func (l *InMemoryLedger) Transfer(_ context.Context, to string, amount int64) (bool, error) {
	if amount < 0 {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[l.vault] < amount {
		return false, nil
	}

	l.balances[l.vault] -= amount
	l.balances[to] += amount
	return true, nil
}

func (l *InMemoryLedger) TransferFrom(_ context.Context, from, to string, amount int64) (bool, error) {
	if amount < 0 {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return false, nil
	}

	l.balances[from] -= amount
	l.balances[to] += amount
	return true, nil
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, account string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance, exists := l.balances[account]
	if !exists {
		return 0, ErrUnknownAccount
	}
	return balance, nil
}
