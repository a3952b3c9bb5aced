// Package rng derives a deterministic pseudo-random generator from a
// contract's execution context.
//
// The seed is a function of the contract identity, the ledger sequence and
// timestamp, a nonce persisted in contract storage and an optional salt.
// Every initialization consumes one nonce, so two initializations on the
// same contract never share a seed unless their salts compensate exactly.
// The generator is not cryptographically secure: anyone who can read the
// ledger and the contract storage can predict its output.
package rng

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNonceStore wraps failures to read or advance the stored nonce.
var ErrNonceStore = errors.New("nonce store")

// DrawError is returned by the fallible draw when the underlying source fails.
type DrawError struct {
	Err error
}

func (e *DrawError) Error() string { return "draw failed: " + e.Err.Error() }

func (e *DrawError) Unwrap() error { return e.Err }

// Generator is a seeded generator bound to one invocation. It is not safe
// for concurrent use and must not be kept across invocations.
type Generator struct {
	src  Source
	seed uint64
}

type options struct {
	algorithm Algorithm
	logger    zerolog.Logger
}

// Option configures initialization.
type Option func(*options)

// WithAlgorithm selects the bit-generation algorithm. Defaults to PCG.
func WithAlgorithm(a Algorithm) Option {
	return func(o *options) {
		if a != nil {
			o.algorithm = a
		}
	}
}

// WithLogger sets the logger used to trace seed derivation.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Init is InitWithSalt with a zero salt.
func Init(env Env, opts ...Option) (*Generator, error) {
	return InitWithSalt(env, 0, opts...)
}

// InitWithSalt consumes one nonce from env's storage and returns a generator
// seeded from the contract identity, the ledger state, that nonce and salt.
// The salt does not spare the nonce: salted and unsalted initializations
// advance the same counter.
func InitWithSalt(env Env, salt uint32, opts ...Option) (*Generator, error) {
	o := options{algorithm: PCG, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	// identity is checked first so a malformed context leaves storage untouched
	identity, err := identityComponent(env.ContractID())
	if err != nil {
		return nil, err
	}
	nonce, err := consumeNonce(env.Storage())
	if err != nil {
		return nil, err
	}
	l := env.Ledger()
	seed := mix(identity, timeComponent(l.Timestamp, l.Sequence), nonce, salt)

	o.logger.Debug().
		Uint32("sequence", l.Sequence).
		Uint64("timestamp", l.Timestamp).
		Uint32("nonce", nonce).
		Uint32("salt", salt).
		Uint64("seed", seed).
		Msg("generator seeded")

	return &Generator{src: o.algorithm(seed), seed: seed}, nil
}

// consumeNonce returns the current nonce (1 when absent) and stores its successor.
func consumeNonce(store KeyValueStore) (uint32, error) {
	var nonce uint32
	err := store.Update(NonceKey, func(cur uint32, found bool) uint32 {
		if !found {
			cur = 1
		}
		nonce = cur
		return cur + 1
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNonceStore, err)
	}
	return nonce, nil
}

// Seed returns the value the generator was seeded with.
func (g *Generator) Seed() uint64 { return g.seed }

// NextU32 returns the next 32 random bits.
func (g *Generator) NextU32() uint32 { return g.src.Uint32() }

// NextU64 returns the next 64 random bits.
func (g *Generator) NextU64() uint64 { return g.src.Uint64() }

// FillBytes fills all of dst.
func (g *Generator) FillBytes(dst []byte) { g.src.FillBytes(dst) }

// TryFillBytes fills all of dst or returns a *DrawError carrying the source's failure.
func (g *Generator) TryFillBytes(dst []byte) error {
	err := g.src.TryFillBytes(dst)
	if err == nil {
		return nil
	}
	var de *DrawError
	if errors.As(err, &de) {
		return err
	}
	return &DrawError{Err: err}
}

// Uint64 makes Generator a math/rand/v2 Source, so range draws such as
// rand.New(g).IntN(6) are layered on top without extra seeding.
func (g *Generator) Uint64() uint64 { return g.src.Uint64() }

// Read implements io.Reader over TryFillBytes.
func (g *Generator) Read(p []byte) (int, error) {
	if err := g.TryFillBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
