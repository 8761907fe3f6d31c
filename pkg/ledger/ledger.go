// Package ledger tracks account balances of the fungible reward credit.
//
// Two mutators exist: Mint (reward issuance) and Transfer (collateral
// movement). Both are atomic: a failing call leaves every balance untouched.
// The conservation invariant is that the sum of all balances, including the
// custody account, always equals the cumulative amount minted since genesis.
package ledger

import (
	"errors"
	"sync"

	"github.com/optoutdao/engine/pkg/credit"
)

var (
	// ErrInvalidAmount is returned when a mutator is called with a zero or
	// negative amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrInsufficientBalance is returned when a transfer would overdraw the
	// source account.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// CustodyAccount holds collateral transferred in by staking and registration
// operations. Slashed collateral accumulates here until swept.
const CustodyAccount = "custody"

// Ledger is the in-memory account ledger.
type Ledger struct {
	mu          sync.RWMutex
	balances    map[string]credit.Amount
	totalIssued credit.Amount
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]credit.Amount),
	}
}

// Mint increases account's balance and the total-issued counter by amount.
func (l *Ledger) Mint(account string, amount credit.Amount) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] += amount
	l.totalIssued += amount
	return nil
}

// Transfer atomically debits from and credits to. No partial debit or credit
// is ever observable.
func (l *Ledger) Transfer(from, to string, amount credit.Amount) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// BalanceOf returns the balance of account, 0 for unknown accounts.
func (l *Ledger) BalanceOf(account string) credit.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// TotalIssued returns the cumulative amount minted since genesis.
func (l *Ledger) TotalIssued() credit.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalIssued
}

// CustodyBalance returns the balance of the custody account.
func (l *Ledger) CustodyBalance() credit.Amount {
	return l.BalanceOf(CustodyAccount)
}

// SumBalances returns the sum of every balance on the ledger, custody
// included. Conservation holds when this equals TotalIssued.
func (l *Ledger) SumBalances() credit.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum credit.Amount
	for _, b := range l.balances {
		sum += b
	}
	return sum
}
