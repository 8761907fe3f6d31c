// Package events is the append-only journal of domain events.
//
// Every successful state change in the engine appends exactly one entry.
// Entries are hash-chained to their predecessor over a canonical JSON form
// (RFC 8785 / JCS), so the journal is tamper-evident and two engines fed the
// same commands produce byte-identical chains.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// Type identifies a domain event.
type Type string

const (
	BrokerSubmitted     Type = "BROKER_SUBMITTED"
	BrokerVerified      Type = "BROKER_VERIFIED"
	ProcessorRegistered Type = "PROCESSOR_REGISTERED"
	ProcessorSlashed    Type = "PROCESSOR_SLASHED"
	UserStaked          Type = "USER_STAKED"
	RemovalRequested    Type = "REMOVAL_REQUESTED"
	RemovalCompleted    Type = "REMOVAL_COMPLETED"
	CreditMinted        Type = "CREDIT_MINTED"
	CreditTransferred   Type = "CREDIT_TRANSFERRED"
	EnginePaused        Type = "ENGINE_PAUSED"
	EngineResumed       Type = "ENGINE_RESUMED"
)

// Entry is an immutable, hash-chained journal entry.
type Entry struct {
	Sequence    uint64         `json:"sequence"`
	Type        Type           `json:"type"`
	Actor       string         `json:"actor,omitempty"`
	ContentHash string         `json:"content_hash"`
	PrevHash    string         `json:"prev_hash"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data"`
}

// Journal is an append-only, hash-chained event log.
type Journal struct {
	mu       sync.RWMutex
	entries  []Entry
	headHash string
	clock    func() time.Time
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{
		headHash: "genesis",
		clock:    time.Now,
	}
}

// WithClock overrides the clock for testing.
func (j *Journal) WithClock(clock func() time.Time) *Journal {
	j.clock = clock
	return j
}

func contentHash(seq uint64, t Type, data map[string]any, prev string) (string, error) {
	hashInput := struct {
		Seq  uint64         `json:"seq"`
		Type Type           `json:"type"`
		Data map[string]any `json:"data"`
		Prev string         `json:"prev"`
	}{seq, t, data, prev}

	raw, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize entry: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Append adds an event to the journal and returns its entry.
func (j *Journal) Append(t Type, actor string, data map[string]any) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := uint64(len(j.entries)) + 1
	hash, err := contentHash(seq, t, data, j.headHash)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Sequence:    seq,
		Type:        t,
		Actor:       actor,
		ContentHash: hash,
		PrevHash:    j.headHash,
		Timestamp:   j.clock(),
		Data:        data,
	}
	j.entries = append(j.entries, entry)
	j.headHash = hash
	return entry, nil
}

// Get retrieves an entry by sequence number.
func (j *Journal) Get(seq uint64) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if seq == 0 || seq > uint64(len(j.entries)) {
		return Entry{}, fmt.Errorf("events: entry %d not found", seq)
	}
	return j.entries[seq-1], nil
}

// Entries returns a snapshot of the whole journal.
func (j *Journal) Entries() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Entry(nil), j.entries...)
}

// Head returns the current head hash.
func (j *Journal) Head() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.headHash
}

// Length returns the number of entries.
func (j *Journal) Length() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Verify walks the chain and recomputes every hash.
func (j *Journal) Verify() (bool, string) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	prev := "genesis"
	for i, entry := range j.entries {
		if entry.PrevHash != prev {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prev, entry.PrevHash)
		}
		computed, err := contentHash(entry.Sequence, entry.Type, entry.Data, entry.PrevHash)
		if err != nil {
			return false, fmt.Sprintf("failed to hash entry %d", i+1)
		}
		if computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prev = entry.ContentHash
	}
	return true, "chain verified"
}
