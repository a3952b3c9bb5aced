// Package sim invokes contracts on a ledger host one call at a time.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xtding233/contract-rng/internal/contract"
	"github.com/xtding233/contract-rng/internal/ledger"
	"github.com/xtding233/contract-rng/internal/rng"
)

// MaxDraws bounds a single raw draw request.
const MaxDraws = 1024

var ErrTooManyDraws = fmt.Errorf("draw count must be in 1..%d", MaxDraws)

// Options configure a Simulator.
type Options struct {
	Algorithm rng.Algorithm
	GachaPity int // 0 disables hard pity
	GachaSoft *contract.SoftPityConfig
	CloseSecs uint64
	Logger    zerolog.Logger
}

// Simulator serializes invocations: one contract call runs to completion
// before the next one starts, matching a host that orders calls into a
// contract's storage.
type Simulator struct {
	mu        sync.Mutex
	host      *ledger.Host
	opts      []rng.Option
	dice      *contract.Dice
	gacha     *contract.Gacha
	closeSecs uint64
	log       zerolog.Logger
}

func New(host *ledger.Host, o Options) (*Simulator, error) {
	opts := []rng.Option{rng.WithAlgorithm(o.Algorithm), rng.WithLogger(o.Logger)}
	g, err := contract.NewGacha(o.GachaPity, o.GachaSoft, opts...)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		host:      host,
		opts:      opts,
		dice:      contract.NewDice(opts...),
		gacha:     g,
		closeSecs: o.CloseSecs,
		log:       o.Logger.With().Str("component", "sim").Logger(),
	}, nil
}

func (s *Simulator) Host() *ledger.Host { return s.host }

func (s *Simulator) invoke(name string, fn func(c *ledger.Contract) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.host.Contract(name)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		s.log.Warn().Err(err).Str("contract", name).Msg("invocation failed")
		return err
	}
	return nil
}

// Roll rolls a die with the given number of sides on contract name.
func (s *Simulator) Roll(name string, sides uint32) (uint32, error) {
	face, _, err := s.RollWithNonce(name, sides)
	return face, err
}

// RollWithNonce rolls like Roll and also returns the nonce the next
// initialization on name will use, read within the same invocation.
func (s *Simulator) RollWithNonce(name string, sides uint32) (face, nonce uint32, err error) {
	err = s.invoke(name, func(c *ledger.Contract) error {
		var err error
		if face, err = s.dice.Roll(c, sides); err != nil {
			return err
		}
		nonce, err = storedNonce(c)
		return err
	})
	return face, nonce, err
}

// Draw returns n raw 64-bit draws from one generator initialized with salt.
func (s *Simulator) Draw(name string, salt uint32, n int) ([]uint64, error) {
	if n < 1 || n > MaxDraws {
		return nil, ErrTooManyDraws
	}
	out := make([]uint64, n)
	err := s.invoke(name, func(c *ledger.Contract) error {
		gen, err := rng.InitWithSalt(c, salt, s.opts...)
		if err != nil {
			return err
		}
		for i := range out {
			out[i] = gen.NextU64()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Simulator) Gacha(name string, p float64) (contract.Outcome, error) {
	var out contract.Outcome
	err := s.invoke(name, func(c *ledger.Contract) error {
		var err error
		out, err = s.gacha.Draw(c, p)
		return err
	})
	return out, err
}

func (s *Simulator) TenGacha(name string, p float64) ([]contract.Outcome, error) {
	var outs []contract.Outcome
	err := s.invoke(name, func(c *ledger.Contract) error {
		var err error
		outs, err = s.gacha.TenDraw(c, p)
		return err
	})
	return outs, err
}

// Nonce returns the nonce the next initialization on name will use.
func (s *Simulator) Nonce(name string) (uint32, error) {
	var nonce uint32
	err := s.invoke(name, func(c *ledger.Contract) error {
		var err error
		nonce, err = storedNonce(c)
		return err
	})
	return nonce, err
}

func storedNonce(c *ledger.Contract) (uint32, error) {
	v, found, err := c.Storage().Get(rng.NonceKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	return v, nil
}

// CloseLedger advances the ledger; secs 0 uses the configured step.
func (s *Simulator) CloseLedger(secs uint64) ledger.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if secs == 0 {
		secs = s.closeSecs
	}
	info := s.host.Ledger().Close(secs)
	s.log.Info().Uint32("sequence", info.Sequence).Uint64("timestamp", info.Timestamp).Msg("ledger closed")
	return info
}

// IsClientError reports whether err comes from bad caller input rather than
// the host.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTooManyDraws) ||
		errors.Is(err, ledger.ErrUnknownContract) ||
		errors.Is(err, contract.ErrInvalidSides) ||
		errors.Is(err, contract.ErrInvalidProb)
}
