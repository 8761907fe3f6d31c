// Package stakes records which users have posted collateral to be eligible
// for removal tasks, and which processors they trust to run them.
//
// A stake is created once per user; there is no top-up and no exit path in
// the current design. Processor selections are validated against the
// processor registry's eligibility rule at stake time.
package stakes

import (
	"errors"
	"sync"
	"time"

	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/ledger"
)

var (
	// ErrInsufficientStake is returned when the offered amount is below the
	// user staking minimum.
	ErrInsufficientStake = errors.New("stakes: stake below minimum")
	// ErrNoProcessorsSelected is returned for an empty selection list.
	ErrNoProcessorsSelected = errors.New("stakes: no processors selected")
	// ErrTooManyProcessors is returned when the selection exceeds the cap.
	ErrTooManyProcessors = errors.New("stakes: too many processors selected")
	// ErrDuplicateProcessor is returned when the selection repeats an id.
	ErrDuplicateProcessor = errors.New("stakes: duplicate processor selected")
	// ErrIneligibleProcessor is returned when a selected processor fails the
	// eligibility rule.
	ErrIneligibleProcessor = errors.New("stakes: selected processor not eligible")
	// ErrAlreadyStaking is returned when the user already has an active stake.
	ErrAlreadyStaking = errors.New("stakes: already staking")
	// ErrNotStaking is returned when no stake record exists for the user.
	ErrNotStaking = errors.New("stakes: user is not staking")
)

// Eligibility is the slice of the processor registry this package needs.
type Eligibility interface {
	IsEligible(id string) bool
}

// UserStake records a user's collateral and trusted processor selection.
type UserStake struct {
	User       string        `json:"user"`
	Staking    bool          `json:"staking"`
	Staked     credit.Amount `json:"staked"`
	Processors []string      `json:"processors"`
	StakedAt   time.Time     `json:"staked_at"`
}

// Registry owns all user stake records.
type Registry struct {
	mu          sync.RWMutex
	ledger      *ledger.Ledger
	eligibility Eligibility
	minStake    credit.Amount
	maxSelected int
	stakes      map[string]*UserStake
	clock       func() time.Time
}

// NewRegistry creates an empty user stake registry.
func NewRegistry(l *ledger.Ledger, e Eligibility, minStake credit.Amount, maxSelected int) *Registry {
	return &Registry{
		ledger:      l,
		eligibility: e,
		minStake:    minStake,
		maxSelected: maxSelected,
		stakes:      make(map[string]*UserStake),
		clock:       time.Now,
	}
}

// WithClock overrides the clock for testing.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// StakeForRemoval posts the user's collateral into custody and records the
// trusted processor selection. All validation happens before any mutation.
func (r *Registry) StakeForRemoval(user string, amount credit.Amount, selected []string) error {
	if amount < r.minStake {
		return ErrInsufficientStake
	}
	if len(selected) == 0 {
		return ErrNoProcessorsSelected
	}
	if len(selected) > r.maxSelected {
		return ErrTooManyProcessors
	}
	seen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		if _, dup := seen[id]; dup {
			return ErrDuplicateProcessor
		}
		seen[id] = struct{}{}
		if !r.eligibility.IsEligible(id) {
			return ErrIneligibleProcessor
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stakes[user]; ok && s.Staking {
		return ErrAlreadyStaking
	}
	if err := r.ledger.Transfer(user, ledger.CustodyAccount, amount); err != nil {
		return err
	}
	r.stakes[user] = &UserStake{
		User:       user,
		Staking:    true,
		Staked:     amount,
		Processors: append([]string(nil), selected...),
		StakedAt:   r.clock(),
	}
	return nil
}

// IsStaking reports whether user has an active stake record.
func (r *Registry) IsStaking(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stakes[user]
	return ok && s.Staking
}

// SelectedProcessorsOf returns the user's selection in the order it was
// recorded.
func (r *Registry) SelectedProcessorsOf(user string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stakes[user]
	if !ok || !s.Staking {
		return nil, ErrNotStaking
	}
	return append([]string(nil), s.Processors...), nil
}

// StakeOf returns a copy of the user's stake record.
func (r *Registry) StakeOf(user string) (UserStake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stakes[user]
	if !ok {
		return UserStake{}, ErrNotStaking
	}
	out := *s
	out.Processors = append([]string(nil), s.Processors...)
	return out, nil
}
