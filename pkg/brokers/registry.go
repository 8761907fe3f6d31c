// Package brokers is the catalog of submittable data-broker entries.
//
// Records are created on submission, verified one-way by the registry owner,
// and never destroyed. Submitters are paid a fixed reward at submission time.
package brokers

import (
	"errors"
	"sync"
	"time"

	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/ledger"
)

var (
	// ErrEmptyField is returned when a submission is missing its name or
	// website.
	ErrEmptyField = errors.New("brokers: name and website must not be empty")
	// ErrNotFound is returned for an unknown broker id.
	ErrNotFound = errors.New("brokers: broker not found")
	// ErrAlreadyVerified is returned when verifying an already-verified broker.
	ErrAlreadyVerified = errors.New("brokers: broker already verified")
)

// Broker is a directory entry with removal instructions.
type Broker struct {
	ID            uint64        `json:"id"`
	Name          string        `json:"name"`
	Website       string        `json:"website"`
	Instructions  string        `json:"instructions"`
	Submitter     string        `json:"submitter"`
	Verified      bool          `json:"verified"`
	TotalRemovals uint64        `json:"total_removals"`
	CreatedAt     time.Time     `json:"created_at"`
	Reward        credit.Amount `json:"reward"`
}

// Registry owns all broker records. Ids are monotonic, starting at 1.
type Registry struct {
	mu      sync.RWMutex
	ledger  *ledger.Ledger
	reward  credit.Amount
	brokers map[uint64]*Broker
	active  []uint64
	nextID  uint64
	clock   func() time.Time
}

// NewRegistry creates an empty broker registry. reward is minted to the
// submitter on every accepted submission.
func NewRegistry(l *ledger.Ledger, reward credit.Amount) *Registry {
	return &Registry{
		ledger:  l,
		reward:  reward,
		brokers: make(map[uint64]*Broker),
		nextID:  1,
		clock:   time.Now,
	}
}

// WithClock overrides the clock for testing.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// Submit stores a new unverified broker, credits the submitter the submission
// reward, and returns the new id.
func (r *Registry) Submit(name, website, instructions, submitter string) (uint64, error) {
	if name == "" || website == "" {
		return 0, ErrEmptyField
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.brokers[id] = &Broker{
		ID:           id,
		Name:         name,
		Website:      website,
		Instructions: instructions,
		Submitter:    submitter,
		CreatedAt:    r.clock(),
		Reward:       r.reward,
	}
	r.active = append(r.active, id)

	if err := r.ledger.Mint(submitter, r.reward); err != nil {
		// The reward is a positive configured constant; a mint failure here
		// means misconfiguration, so undo the record rather than keep a
		// half-applied submission.
		delete(r.brokers, id)
		r.active = r.active[:len(r.active)-1]
		r.nextID--
		return 0, err
	}
	return id, nil
}

// Verify marks a broker verified. The transition is one-way.
// Owner authorization is enforced by the coordinating engine.
func (r *Registry) Verify(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.brokers[id]
	if !ok {
		return ErrNotFound
	}
	if b.Verified {
		return ErrAlreadyVerified
	}
	b.Verified = true
	return nil
}

// IsVerified reports whether the broker exists and has been verified.
func (r *Registry) IsVerified(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brokers[id]
	return ok && b.Verified
}

// IncrementRemovals bumps the broker's completed-removal counter.
func (r *Registry) IncrementRemovals(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brokers[id]
	if !ok {
		return ErrNotFound
	}
	b.TotalRemovals++
	return nil
}

// Get returns a copy of the broker record.
func (r *Registry) Get(id uint64) (Broker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brokers[id]
	if !ok {
		return Broker{}, ErrNotFound
	}
	return *b, nil
}

// ListActive returns copies of all brokers on the active index, in
// submission order.
func (r *Registry) ListActive() []Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Broker, 0, len(r.active))
	for _, id := range r.active {
		out = append(out, *r.brokers[id])
	}
	return out
}

// Count returns the number of brokers ever submitted.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.brokers)
}
