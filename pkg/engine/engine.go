// Package engine is the coordinating module over the ledger and the broker,
// processor, and user-stake registries, plus the task lifecycle.
//
// Every mutating command is serialized by a single mutex so that validation
// and mutation form one atomic unit; a processor cannot be slashed between an
// eligibility check and the assignment that depended on it. Commands either
// fully apply or are provably no-ops. Each success appends one domain event
// to the hash-chained journal. A privileged pause toggle rejects all
// mutations with ErrHalted while leaving queries available.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/optoutdao/engine/pkg/brokers"
	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/events"
	"github.com/optoutdao/engine/pkg/ledger"
	"github.com/optoutdao/engine/pkg/processors"
	"github.com/optoutdao/engine/pkg/stakes"
	"github.com/optoutdao/engine/pkg/tasks"
)

// Recorder receives one observation per executed command.
type Recorder interface {
	RecordCommand(name string, err error, elapsed time.Duration)
}

// Archiver receives every appended journal entry, e.g. for durable storage.
type Archiver interface {
	Archive(entry events.Entry) error
}

// Stats are the aggregate counters exposed on the query surface.
type Stats struct {
	TotalBrokers        int           `json:"total_brokers"`
	TotalProcessors     int           `json:"total_processors"`
	TotalTasksCompleted uint64        `json:"total_tasks_completed"`
	CustodyBalance      credit.Amount `json:"custody_balance"`
	TotalIssued         credit.Amount `json:"total_issued"`
}

// Engine owns all registries and serializes every mutation.
type Engine struct {
	mu     sync.Mutex
	owner  string
	params Params
	paused bool

	ledger     *ledger.Ledger
	brokers    *brokers.Registry
	processors *processors.Registry
	stakes     *stakes.Registry
	tasks      *tasks.Engine
	journal    *events.Journal

	logger   *slog.Logger
	recorder Recorder
	archiver Archiver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l.With("component", "engine") }
}

// WithRecorder sets the command observer.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithArchiver sets the journal archive sink.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithClock overrides the clock of every registry for testing.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.brokers.WithClock(clock)
		e.processors.WithClock(clock)
		e.stakes.WithClock(clock)
		e.tasks.WithClock(clock)
		e.journal.WithClock(clock)
	}
}

// New creates an engine with a fresh ledger and empty registries. owner is
// the only identity allowed to run privileged commands.
func New(owner string, params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	l := ledger.New()
	b := brokers.NewRegistry(l, params.BrokerSubmissionReward)
	p := processors.NewRegistry(l, params.MinProcessorStake, params.SlashPercentage)
	s := stakes.NewRegistry(l, p, params.MinUserStake, params.MaxSelectedProcessors)

	e := &Engine{
		owner:      owner,
		params:     params,
		ledger:     l,
		brokers:    b,
		processors: p,
		stakes:     s,
		tasks:      tasks.NewEngine(l, b, p, s, params.RemovalProcessingReward),
		journal:    events.NewJournal(),
		logger:     slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the engine's economic parameters.
func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) requireOwner(caller string) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

// command serializes fn under the engine mutex, enforcing the pause toggle,
// classifying the failure, and feeding the recorder.
func (e *Engine) command(name, caller string, fn func() error) error {
	start := time.Now()
	e.mu.Lock()
	var err error
	if e.paused {
		err = ErrHalted
	} else {
		err = fn()
	}
	e.mu.Unlock()

	err = Classify(err)
	if e.recorder != nil {
		e.recorder.RecordCommand(name, err, time.Since(start))
	}
	if err != nil {
		e.logger.Warn("command rejected", "command", name, "caller", caller, "error", err)
	} else {
		e.logger.Info("command applied", "command", name, "caller", caller)
	}
	return err
}

// emit appends a domain event. Called with the engine mutex held, after the
// mutation it describes has fully applied.
func (e *Engine) emit(t events.Type, actor string, data map[string]any) {
	entry, err := e.journal.Append(t, actor, data)
	if err != nil {
		e.logger.Error("journal append failed", "event", t, "error", err)
		return
	}
	if e.archiver != nil {
		if err := e.archiver.Archive(entry); err != nil {
			e.logger.Error("journal archive failed", "sequence", entry.Sequence, "error", err)
		}
	}
}

// --- Command surface -------------------------------------------------------

// SubmitBroker catalogs a new data broker and pays the submission reward.
func (e *Engine) SubmitBroker(caller, name, website, instructions string) (uint64, error) {
	var id uint64
	err := e.command("submit_broker", caller, func() error {
		var err error
		id, err = e.brokers.Submit(name, website, instructions, caller)
		if err != nil {
			return err
		}
		e.emit(events.BrokerSubmitted, caller, map[string]any{
			"broker_id": id,
			"name":      name,
			"reward":    int64(e.params.BrokerSubmissionReward),
		})
		return nil
	})
	return id, err
}

// VerifyBroker marks a broker verified. Privileged.
func (e *Engine) VerifyBroker(caller string, brokerID uint64) error {
	return e.command("verify_broker", caller, func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.brokers.Verify(brokerID); err != nil {
			return err
		}
		e.emit(events.BrokerVerified, caller, map[string]any{"broker_id": brokerID})
		return nil
	})
}

// RegisterProcessor stakes the caller as a removal processor.
func (e *Engine) RegisterProcessor(caller string, stake credit.Amount, description string) error {
	return e.command("register_processor", caller, func() error {
		if err := e.processors.Register(caller, stake, description); err != nil {
			return err
		}
		e.emit(events.ProcessorRegistered, caller, map[string]any{
			"processor": caller,
			"stake":     int64(stake),
		})
		return nil
	})
}

// SlashProcessor applies the terminal slashing penalty. Privileged.
func (e *Engine) SlashProcessor(caller, processorID, reason string) error {
	return e.command("slash_processor", caller, func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		rec, err := e.processors.Slash(processorID, reason)
		if err != nil {
			return err
		}
		e.emit(events.ProcessorSlashed, caller, map[string]any{
			"processor":       processorID,
			"reason":          reason,
			"slashed_amount":  int64(rec.SlashedAmount),
			"remaining_stake": int64(rec.RemainingStake),
		})
		return nil
	})
}

// StakeForRemoval posts the caller's removal stake and trusted processors.
func (e *Engine) StakeForRemoval(caller string, amount credit.Amount, selected []string) error {
	return e.command("stake_for_removal", caller, func() error {
		if err := e.stakes.StakeForRemoval(caller, amount, selected); err != nil {
			return err
		}
		e.emit(events.UserStaked, caller, map[string]any{
			"user":       caller,
			"amount":     int64(amount),
			"processors": selected,
		})
		return nil
	})
}

// RequestRemoval opens a removal task for the caller against a broker.
func (e *Engine) RequestRemoval(caller string, brokerID uint64) (uint64, error) {
	var id uint64
	err := e.command("request_removal", caller, func() error {
		var err error
		id, err = e.tasks.RequestRemoval(caller, brokerID)
		if err != nil {
			return err
		}
		t, err := e.tasks.Get(id)
		if err != nil {
			return err
		}
		e.emit(events.RemovalRequested, caller, map[string]any{
			"task_id":   id,
			"broker_id": brokerID,
			"processor": t.Processor,
		})
		return nil
	})
	return id, err
}

// CompleteRemoval resolves a task as its bound processor and pays the
// processing reward.
func (e *Engine) CompleteRemoval(caller string, taskID uint64, evidence string) error {
	return e.command("complete_removal", caller, func() error {
		if err := e.tasks.CompleteRemoval(caller, taskID, evidence); err != nil {
			return err
		}
		e.emit(events.RemovalCompleted, caller, map[string]any{
			"task_id":   taskID,
			"processor": caller,
			"reward":    int64(e.params.RemovalProcessingReward),
		})
		return nil
	})
}

// MintCredit issues new credit to an account. Privileged; the on-ramp for
// participants who need balance before staking.
func (e *Engine) MintCredit(caller, account string, amount credit.Amount) error {
	return e.command("mint_credit", caller, func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.ledger.Mint(account, amount); err != nil {
			return err
		}
		e.emit(events.CreditMinted, caller, map[string]any{
			"account": account,
			"amount":  int64(amount),
		})
		return nil
	})
}

// TransferCredit moves credit from the caller to another account.
func (e *Engine) TransferCredit(caller, to string, amount credit.Amount) error {
	return e.command("transfer_credit", caller, func() error {
		if err := e.ledger.Transfer(caller, to, amount); err != nil {
			return err
		}
		e.emit(events.CreditTransferred, caller, map[string]any{
			"from":   caller,
			"to":     to,
			"amount": int64(amount),
		})
		return nil
	})
}

// Pause rejects all subsequent mutating commands until Resume. Privileged.
// Pause and Resume bypass the halted check so a paused engine can be resumed.
func (e *Engine) Pause(caller string) error {
	start := time.Now()
	e.mu.Lock()
	err := e.requireOwner(caller)
	if err == nil && !e.paused {
		e.paused = true
		e.emit(events.EnginePaused, caller, map[string]any{})
	}
	e.mu.Unlock()

	err = Classify(err)
	if e.recorder != nil {
		e.recorder.RecordCommand("pause", err, time.Since(start))
	}
	return err
}

// Resume lifts the pause toggle. Privileged.
func (e *Engine) Resume(caller string) error {
	start := time.Now()
	e.mu.Lock()
	err := e.requireOwner(caller)
	if err == nil && e.paused {
		e.paused = false
		e.emit(events.EngineResumed, caller, map[string]any{})
	}
	e.mu.Unlock()

	err = Classify(err)
	if e.recorder != nil {
		e.recorder.RecordCommand("resume", err, time.Since(start))
	}
	return err
}

// --- Query surface ---------------------------------------------------------

// BalanceOf returns the credit balance of account, 0 for unknown accounts.
func (e *Engine) BalanceOf(account string) credit.Amount {
	return e.ledger.BalanceOf(account)
}

// GetBroker returns the broker record.
func (e *Engine) GetBroker(id uint64) (brokers.Broker, error) {
	b, err := e.brokers.Get(id)
	return b, Classify(err)
}

// ListActiveBrokers returns all brokers on the active index.
func (e *Engine) ListActiveBrokers() []brokers.Broker {
	return e.brokers.ListActive()
}

// GetProcessor returns the processor record.
func (e *Engine) GetProcessor(id string) (processors.Processor, error) {
	p, err := e.processors.Get(id)
	return p, Classify(err)
}

// GetUserStake returns the user's stake record.
func (e *Engine) GetUserStake(user string) (stakes.UserStake, error) {
	s, err := e.stakes.StakeOf(user)
	return s, Classify(err)
}

// GetTask returns the task record.
func (e *Engine) GetTask(id uint64) (tasks.Task, error) {
	t, err := e.tasks.Get(id)
	return t, Classify(err)
}

// Stats returns the aggregate counters.
func (e *Engine) Stats() Stats {
	return Stats{
		TotalBrokers:        e.brokers.Count(),
		TotalProcessors:     e.processors.Count(),
		TotalTasksCompleted: e.tasks.CompletedCount(),
		CustodyBalance:      e.ledger.CustodyBalance(),
		TotalIssued:         e.ledger.TotalIssued(),
	}
}

// Events returns a snapshot of the domain event journal.
func (e *Engine) Events() []events.Entry {
	return e.journal.Entries()
}

// VerifyJournal recomputes the journal's hash chain.
func (e *Engine) VerifyJournal() (bool, string) {
	return e.journal.Verify()
}

// Conserved reports whether the sum of all balances equals the total minted.
func (e *Engine) Conserved() bool {
	return e.ledger.SumBalances() == e.ledger.TotalIssued()
}
