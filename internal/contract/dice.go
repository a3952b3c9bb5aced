// Package contract holds example contracts that draw their randomness from
// an rng.Generator initialized per invocation.
package contract

import (
	"errors"
	"math/rand/v2"

	"github.com/xtding233/contract-rng/internal/rng"
)

// DefaultSides is the die used when a caller does not pick one.
const DefaultSides = 6

var ErrInvalidSides = errors.New("invalid sides; must be > 0")

// Dice rolls a fair die.
type Dice struct {
	opts []rng.Option
}

func NewDice(opts ...rng.Option) *Dice {
	return &Dice{opts: opts}
}

// Roll returns a face in [0, sides). A roll consumes one nonce.
func (d *Dice) Roll(env rng.Env, sides uint32) (uint32, error) {
	if sides == 0 {
		return 0, ErrInvalidSides
	}
	gen, err := rng.Init(env, d.opts...)
	if err != nil {
		return 0, err
	}
	return rand.New(gen).Uint32N(sides), nil
}
