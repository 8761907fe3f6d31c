// Package tasks runs the removal task lifecycle: Requested → Completed.
//
// A task binds a verified broker, a staked user, and exactly one of the
// user's selected processors. Completion happens at most once, by the bound
// processor, and pays the processing reward. The package reads the broker,
// processor, and stake registries during validation but never mutates them
// outside of the counters a completion owns.
package tasks

import (
	"errors"
	"sync"
	"time"

	"github.com/optoutdao/engine/pkg/brokers"
	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/ledger"
	"github.com/optoutdao/engine/pkg/processors"
	"github.com/optoutdao/engine/pkg/stakes"
)

var (
	// ErrBrokerNotVerified is returned when requesting removal against an
	// unverified or unknown broker.
	ErrBrokerNotVerified = errors.New("tasks: broker not verified")
	// ErrUserNotStaked is returned when the requesting user has no active
	// stake.
	ErrUserNotStaked = errors.New("tasks: user not staked")
	// ErrNoEligibleProcessor is returned when none of the user's selected
	// processors is still eligible at request time.
	ErrNoEligibleProcessor = errors.New("tasks: no eligible processor in selection")
	// ErrInvalidTaskID is returned for an unknown task id.
	ErrInvalidTaskID = errors.New("tasks: invalid task id")
	// ErrNotAssignedProcessor is returned when a processor other than the
	// bound one attempts completion.
	ErrNotAssignedProcessor = errors.New("tasks: caller is not the assigned processor")
	// ErrProcessorSlashed is returned when the bound processor was slashed
	// after assignment. The task stays put; slashing does not reassign.
	ErrProcessorSlashed = errors.New("tasks: assigned processor has been slashed")
	// ErrAlreadyCompleted is returned on a second completion attempt.
	ErrAlreadyCompleted = errors.New("tasks: task already completed")
)

// Task is a removal request bound to exactly one processor.
type Task struct {
	ID          uint64    `json:"id"`
	BrokerID    uint64    `json:"broker_id"`
	User        string    `json:"user"`
	Processor   string    `json:"processor"`
	Completed   bool      `json:"completed"`
	Verified    bool      `json:"verified"`
	RequestedAt time.Time `json:"requested_at"`
	CompletedAt time.Time `json:"completed_at"`
	Evidence    string    `json:"evidence"`
}

// Engine creates, assigns, and resolves removal tasks.
type Engine struct {
	mu         sync.RWMutex
	ledger     *ledger.Ledger
	brokers    *brokers.Registry
	processors *processors.Registry
	stakes     *stakes.Registry
	reward     credit.Amount
	tasks      map[uint64]*Task
	nextID     uint64
	completed  uint64
	clock      func() time.Time
}

// NewEngine creates a task engine over the given registries. reward is
// minted to the processor on every completed removal.
func NewEngine(l *ledger.Ledger, b *brokers.Registry, p *processors.Registry, s *stakes.Registry, reward credit.Amount) *Engine {
	return &Engine{
		ledger:     l,
		brokers:    b,
		processors: p,
		stakes:     s,
		reward:     reward,
		tasks:      make(map[uint64]*Task),
		nextID:     1,
		clock:      time.Now,
	}
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// RequestRemoval opens a task for user against brokerID and binds it to the
// first of the user's selected processors that is still eligible, in
// selection order.
func (e *Engine) RequestRemoval(user string, brokerID uint64) (uint64, error) {
	if !e.brokers.IsVerified(brokerID) {
		return 0, ErrBrokerNotVerified
	}
	selected, err := e.stakes.SelectedProcessorsOf(user)
	if err != nil {
		return 0, ErrUserNotStaked
	}

	assigned := ""
	for _, id := range selected {
		if e.processors.IsEligible(id) {
			assigned = id
			break
		}
	}
	if assigned == "" {
		return 0, ErrNoEligibleProcessor
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.tasks[id] = &Task{
		ID:          id,
		BrokerID:    brokerID,
		User:        user,
		Processor:   assigned,
		RequestedAt: e.clock(),
	}
	return id, nil
}

// CompleteRemoval resolves the task. Only the bound processor may complete,
// exactly once, and only while it remains unslashed. On success the task is
// stamped and sealed, both counters advance, and the processing reward is
// minted to the processor.
func (e *Engine) CompleteRemoval(processor string, taskID uint64, evidence string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return ErrInvalidTaskID
	}
	if t.Processor != processor {
		return ErrNotAssignedProcessor
	}
	if e.processors.IsSlashed(t.Processor) {
		return ErrProcessorSlashed
	}
	if t.Completed {
		return ErrAlreadyCompleted
	}

	if err := e.processors.IncrementCompleted(t.Processor); err != nil {
		return err
	}
	if err := e.brokers.IncrementRemovals(t.BrokerID); err != nil {
		return err
	}
	if err := e.ledger.Mint(t.Processor, e.reward); err != nil {
		return err
	}

	t.Completed = true
	t.Verified = true
	t.CompletedAt = e.clock()
	t.Evidence = evidence
	e.completed++
	return nil
}

// Get returns a copy of the task record.
func (e *Engine) Get(id uint64) (Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tasks[id]
	if !ok {
		return Task{}, ErrInvalidTaskID
	}
	return *t, nil
}

// CompletedCount returns the number of tasks resolved so far.
func (e *Engine) CompletedCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.completed
}

// Count returns the number of tasks ever requested.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tasks)
}
