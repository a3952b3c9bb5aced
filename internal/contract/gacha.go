package contract

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/xtding233/contract-rng/internal/rng"
)

// GachaPityKey stores the draws since the last hit.
const GachaPityKey = "GACHAPITY"

var (
	ErrInvalidProb    = errors.New("invalid probability p; must be 0..1")
	ErrSoftPityConfig = errors.New("invalid soft pity config")
)

// Easing specifies how the probability ramps up as we approach pity.
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseOutQuad    Easing = "easeOutQuad"
	EaseInOutCubic Easing = "easeInOutCubic"
)

// SoftPityConfig ramps the hit probability before hard pity.
// Example: pity 90, StartAt 74, TargetProb 0.5: draws #74..#89 ramp from p to 0.5.
type SoftPityConfig struct {
	StartAt    int     // draws since last hit at which the ramp begins
	TargetProb float64 // probability at draw (pity-1), in (0,1)
	Easing     Easing
}

// Outcome reports one draw.
type Outcome struct {
	Hit   bool
	Pity  bool // hit forced by hard pity
	Count int  // draws since last hit after this draw
}

// Gacha is a pity-based draw contract. Its pity counter lives in contract
// storage, so it carries across invocations the same way the nonce does.
type Gacha struct {
	pity int // 0 disables hard pity
	soft *SoftPityConfig
	opts []rng.Option
}

// NewGacha validates the pity rules. soft may be nil for hard pity only.
func NewGacha(pity int, soft *SoftPityConfig, opts ...rng.Option) (*Gacha, error) {
	if pity < 0 {
		return nil, ErrSoftPityConfig
	}
	if soft != nil {
		c := *soft
		if err := c.normalize(pity); err != nil {
			return nil, err
		}
		soft = &c
	}
	return &Gacha{pity: pity, soft: soft, opts: opts}, nil
}

func (c *SoftPityConfig) normalize(pity int) error {
	if pity <= 1 {
		return ErrSoftPityConfig
	}
	if c.TargetProb <= 0 || c.TargetProb >= 1 {
		return ErrSoftPityConfig
	}
	if c.StartAt < 0 {
		c.StartAt = 0
	}
	// ramp ends at pity-1 and needs at least one step
	if c.StartAt >= pity-1 {
		return ErrSoftPityConfig
	}
	switch c.Easing {
	case "":
		c.Easing = EaseLinear
	case EaseLinear, EaseOutQuad, EaseInOutCubic:
	default:
		return ErrSoftPityConfig
	}
	return nil
}

func (g *Gacha) Pity() int { return g.pity }

// Draw performs one draw with base probability pBase.
func (g *Gacha) Draw(env rng.Env, pBase float64) (Outcome, error) {
	outs, err := g.draws(env, pBase, 1)
	if err != nil {
		return Outcome{}, err
	}
	return outs[0], nil
}

// TenDraw performs ten draws from a single generator.
func (g *Gacha) TenDraw(env rng.Env, pBase float64) ([]Outcome, error) {
	return g.draws(env, pBase, 10)
}

func (g *Gacha) draws(env rng.Env, pBase float64, n int) ([]Outcome, error) {
	if err := validateProb(pBase); err != nil {
		return nil, err
	}
	gen, err := rng.Init(env, g.opts...)
	if err != nil {
		return nil, err
	}
	r := rand.New(gen)
	outs := make([]Outcome, 0, n)
	err = env.Storage().Update(GachaPityKey, func(count uint32, _ bool) uint32 {
		c := int(count)
		for i := 0; i < n; i++ {
			out := g.step(c, pBase, r)
			outs = append(outs, out)
			c = out.Count
		}
		return uint32(c)
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// step applies one draw to a counter: hard pity first, then the soft ramp.
func (g *Gacha) step(count int, pBase float64, r *rand.Rand) Outcome {
	if g.pity > 0 && count+1 >= g.pity {
		return Outcome{Hit: true, Pity: true}
	}
	if roll(g.effectiveProb(count, pBase), r) {
		return Outcome{Hit: true}
	}
	return Outcome{Count: count + 1}
}

// effectiveProb interpolates from pBase toward TargetProb between StartAt and pity-1.
func (g *Gacha) effectiveProb(count int, pBase float64) float64 {
	if g.soft == nil || count < g.soft.StartAt {
		return pBase
	}
	end := g.pity - 1
	length := float64(end - g.soft.StartAt)
	if length <= 0 {
		return pBase
	}
	t := math.Min(1, math.Max(0, float64(count-g.soft.StartAt)/length))
	switch g.soft.Easing {
	case EaseOutQuad:
		t = 1 - (1-t)*(1-t)
	case EaseInOutCubic:
		if t < 0.5 {
			t = 4 * t * t * t
		} else {
			t = 1 - math.Pow(-2*t+2, 3)/2
		}
	}
	p := pBase + (g.soft.TargetProb-pBase)*t
	// stays below 1 so only hard pity guarantees a hit
	return math.Min(math.Max(p, 0), 0.999999999999)
}

func roll(p float64, r *rand.Rand) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return ErrInvalidProb
	}
	return nil
}
