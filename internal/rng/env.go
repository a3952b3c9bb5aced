package rng

// NonceKey is the reserved storage key holding the call nonce.
// Contract logic must not write to it.
const NonceKey = "SOROBANRND"

// Ledger is the ledger state visible to an invocation.
type Ledger struct {
	Sequence  uint32
	Timestamp uint64
}

// KeyValueStore is the contract-scoped persistent store.
type KeyValueStore interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (uint32, bool, error)
	// Update atomically replaces the value under key with fn(current, found).
	// No other Update on the same key may interleave between the read and the write.
	Update(key string, fn func(cur uint32, found bool) uint32) error
}

// Env is the execution context a generator is initialized from.
type Env interface {
	// ContractID returns the identifier of the running contract, at least IdentityLen bytes.
	ContractID() []byte
	Ledger() Ledger
	Storage() KeyValueStore
}
