package journal

import (
	"sort"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/google/uuid"
)

type Outcome string

const (
	// OutcomeSigned means the signer produced a result and a callback was issued.
	OutcomeSigned Outcome = "signed"
	// OutcomeFailed means the signer reported an error and an error callback was issued.
	OutcomeFailed Outcome = "failed"
	// OutcomeDropped means the request declared no callback, so the result was discarded.
	OutcomeDropped Outcome = "dropped"
)

// Entry is a single dispatched request and what became of it.
type Entry struct {
	ID        string            `json:"id"`
	RequestID string            `json:"requestId,omitempty"`
	Kind      types.CommandKind `json:"kind"`
	Outcome   Outcome           `json:"outcome"`
	Account   string            `json:"account,omitempty"`
	Error     string            `json:"error,omitempty"`
	Callback  string            `json:"callback,omitempty"`
	Delivered bool              `json:"delivered"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEntry creates an entry with a fresh ID stamped with the current time.
func NewEntry(kind types.CommandKind, requestID string, outcome Outcome) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Kind:      kind,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Entry) Copy() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// SortEntries orders entries by timestamp, breaking ties by ID.
func SortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
