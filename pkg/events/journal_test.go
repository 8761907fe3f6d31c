package events

import (
	"testing"
)

func TestJournalAppend(t *testing.T) {
	j := NewJournal()
	entry, err := j.Append(BrokerSubmitted, "u1", map[string]any{"broker_id": 1})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Sequence != 1 {
		t.Fatalf("expected seq 1, got %d", entry.Sequence)
	}
	if j.Length() != 1 {
		t.Fatalf("expected length 1, got %d", j.Length())
	}
}

func TestJournalChainIntegrity(t *testing.T) {
	j := NewJournal()
	j.Append(BrokerSubmitted, "u1", map[string]any{"broker_id": 1})
	j.Append(BrokerVerified, "owner", map[string]any{"broker_id": 1})
	j.Append(ProcessorRegistered, "p1", map[string]any{"stake": 100000})

	ok, reason := j.Verify()
	if !ok {
		t.Fatalf("expected valid chain, got: %s", reason)
	}
}

func TestJournalHashChaining(t *testing.T) {
	j := NewJournal()
	j.Append(UserStaked, "u1", map[string]any{"amount": 10000})
	j.Append(RemovalRequested, "u1", map[string]any{"task_id": 1})

	e1, _ := j.Get(1)
	e2, _ := j.Get(2)
	if e2.PrevHash != e1.ContentHash {
		t.Fatal("second entry prev_hash should match first content_hash")
	}
}

func TestJournalHead(t *testing.T) {
	j := NewJournal()
	if j.Head() != "genesis" {
		t.Fatal("expected genesis head")
	}
	j.Append(RemovalCompleted, "p1", map[string]any{"task_id": 1})
	if j.Head() == "genesis" {
		t.Fatal("head should change after append")
	}
}

func TestJournalGetNotFound(t *testing.T) {
	j := NewJournal()
	if _, err := j.Get(7); err == nil {
		t.Fatal("expected error for missing entry")
	}
}

func TestJournalDeterministicHash(t *testing.T) {
	j1 := NewJournal()
	j1.Append(ProcessorSlashed, "owner", map[string]any{"processor": "p1", "slashed": 50000})
	j2 := NewJournal()
	j2.Append(ProcessorSlashed, "owner", map[string]any{"processor": "p1", "slashed": 50000})

	e1, _ := j1.Get(1)
	e2, _ := j2.Get(1)
	if e1.ContentHash != e2.ContentHash {
		t.Fatal("same input should produce same hash")
	}
}

func TestJournalDetectsTampering(t *testing.T) {
	j := NewJournal()
	j.Append(BrokerSubmitted, "u1", map[string]any{"broker_id": 1})
	j.Append(BrokerVerified, "owner", map[string]any{"broker_id": 1})

	j.entries[0].Data["broker_id"] = 2
	if ok, _ := j.Verify(); ok {
		t.Fatal("tampered entry should fail verification")
	}
}
