// Package processors is the staking and slashing registry for removal
// service providers.
//
// A processor registers once, posting collateral that moves into ledger
// custody. Slashing is terminal: it truncates the stake, zeroes reputation,
// and permanently revokes eligibility. Every downstream eligibility decision
// goes through IsEligible so the rule stays in one place.
package processors

import (
	"errors"
	"sync"
	"time"

	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/ledger"
)

var (
	// ErrInsufficientStake is returned when the offered stake is below the
	// registration minimum.
	ErrInsufficientStake = errors.New("processors: stake below minimum")
	// ErrAlreadyRegistered is returned on re-registration of a known id.
	ErrAlreadyRegistered = errors.New("processors: already registered")
	// ErrNotRegistered is returned for an unknown processor id.
	ErrNotRegistered = errors.New("processors: not registered")
)

// InitialReputation is the score assigned at registration.
const InitialReputation = 100

// Processor is a staked removal service provider.
type Processor struct {
	ID             string        `json:"id"`
	Staked         credit.Amount `json:"staked"`
	Active         bool          `json:"active"`
	Slashed        bool          `json:"slashed"`
	CompletedTasks uint64        `json:"completed_tasks"`
	Reputation     int           `json:"reputation"`
	Description    string        `json:"description"`
	RegisteredAt   time.Time     `json:"registered_at"`
}

// SlashRecord captures the outcome of a slash for event emission.
type SlashRecord struct {
	ProcessorID    string
	Reason         string
	SlashedAmount  credit.Amount
	RemainingStake credit.Amount
}

// Registry owns all processor records and their collateral accounting.
type Registry struct {
	mu           sync.RWMutex
	ledger       *ledger.Ledger
	minStake     credit.Amount
	slashPercent int
	processors   map[string]*Processor
	clock        func() time.Time
}

// NewRegistry creates an empty processor registry. minStake is the
// registration floor; slashPercent is the share of stake forfeited on a
// slash, in whole percent.
func NewRegistry(l *ledger.Ledger, minStake credit.Amount, slashPercent int) *Registry {
	return &Registry{
		ledger:       l,
		minStake:     minStake,
		slashPercent: slashPercent,
		processors:   make(map[string]*Processor),
		clock:        time.Now,
	}
}

// WithClock overrides the clock for testing.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// Register creates a record for id and moves stake from the caller's ledger
// balance into custody. The caller account is the processor id itself.
func (r *Registry) Register(id string, stake credit.Amount, description string) error {
	if stake < r.minStake {
		return ErrInsufficientStake
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.processors[id]; ok {
		return ErrAlreadyRegistered
	}
	// Validation and custody transfer happen under the same lock so the
	// record only exists once the collateral is held.
	if err := r.ledger.Transfer(id, ledger.CustodyAccount, stake); err != nil {
		return err
	}
	r.processors[id] = &Processor{
		ID:           id,
		Staked:       stake,
		Active:       true,
		Reputation:   InitialReputation,
		Description:  description,
		RegisteredAt: r.clock(),
	}
	return nil
}

// Slash applies the terminal penalty to id: the configured percentage of its
// stake is forfeited (integer division, truncating), reputation drops to 0,
// and the processor is deactivated for good. Forfeited collateral stays in
// custody until an administrative sweep.
// Owner authorization is enforced by the coordinating engine.
func (r *Registry) Slash(id, reason string) (SlashRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processors[id]
	if !ok {
		return SlashRecord{}, ErrNotRegistered
	}
	slashed := p.Staked.Percent(r.slashPercent)
	p.Staked -= slashed
	p.Reputation = 0
	p.Slashed = true
	p.Active = false
	return SlashRecord{
		ProcessorID:    id,
		Reason:         reason,
		SlashedAmount:  slashed,
		RemainingStake: p.Staked,
	}, nil
}

// IsEligible reports whether id is registered, active, and not slashed.
func (r *Registry) IsEligible(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[id]
	return ok && p.Active && !p.Slashed
}

// IsSlashed reports whether id is registered and has been slashed.
func (r *Registry) IsSlashed(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[id]
	return ok && p.Slashed
}

// IncrementCompleted bumps the processor's completed-task counter.
func (r *Registry) IncrementCompleted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.processors[id]
	if !ok {
		return ErrNotRegistered
	}
	p.CompletedTasks++
	return nil
}

// Get returns a copy of the processor record.
func (r *Registry) Get(id string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[id]
	if !ok {
		return Processor{}, ErrNotRegistered
	}
	return *p, nil
}

// Count returns the number of processors ever registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processors)
}
