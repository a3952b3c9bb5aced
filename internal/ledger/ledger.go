package ledger

import "sync"

// Info is the ledger header an invocation observes.
type Info struct {
	Sequence  uint32
	Timestamp uint64
}

// Ledger holds the current ledger header. Sequence and timestamp only move
// forward through Close; Set exists for setting up scenarios.
type Ledger struct {
	mu   sync.RWMutex
	info Info
}

func NewLedger(info Info) *Ledger {
	return &Ledger{info: info}
}

func (l *Ledger) Info() Info {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.info
}

func (l *Ledger) Set(info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = info
}

// Close seals the current ledger and opens the next one, secs seconds later.
// Both counters wrap rather than overflow.
func (l *Ledger) Close(secs uint64) Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info.Sequence++
	l.info.Timestamp += secs
	return l.info
}
