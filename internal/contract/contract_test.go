package contract

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/contract-rng/internal/ledger"
	"github.com/xtding233/contract-rng/internal/rng"
)

func deploy(t *testing.T, name string) *ledger.Contract {
	t.Helper()
	h := ledger.NewHost(ledger.NewMemoryBackend(), ledger.NewLedger(ledger.Info{Sequence: 42, Timestamp: 1_700_000_000}), zerolog.Nop())
	c, err := h.Deploy(name)
	require.NoError(t, err)
	return c
}

func nonceOf(t *testing.T, env rng.Env) uint32 {
	t.Helper()
	v, _, err := env.Storage().Get(rng.NonceKey)
	require.NoError(t, err)
	return v
}

func TestDiceRoll(t *testing.T) {
	c := deploy(t, "dice")
	d := NewDice()

	seen := make(map[uint32]int)
	for i := 0; i < 600; i++ {
		face, err := d.Roll(c, DefaultSides)
		require.NoError(t, err)
		require.Less(t, face, uint32(DefaultSides))
		seen[face]++
	}
	require.Len(t, seen, DefaultSides)
	require.Equal(t, uint32(601), nonceOf(t, c))

	_, err := d.Roll(c, 0)
	require.ErrorIs(t, err, ErrInvalidSides)
	require.Equal(t, uint32(601), nonceOf(t, c))
}

func TestDiceReplays(t *testing.T) {
	a, b := deploy(t, "dice"), deploy(t, "dice")
	for _, d := range []*Dice{NewDice(), NewDice(rng.WithAlgorithm(rng.Xoshiro))} {
		for i := 0; i < 20; i++ {
			fa, err := d.Roll(a, 20)
			require.NoError(t, err)
			fb, err := d.Roll(b, 20)
			require.NoError(t, err)
			require.Equal(t, fa, fb)
		}
	}
}

func TestGachaDrawBounds(t *testing.T) {
	c := deploy(t, "gacha")
	g, err := NewGacha(0, nil)
	require.NoError(t, err)

	out, err := g.Draw(c, 0)
	require.NoError(t, err)
	require.False(t, out.Hit, "p=0 should never hit")

	out, err = g.Draw(c, 1)
	require.NoError(t, err)
	require.True(t, out.Hit, "p=1 should always hit")

	for _, p := range []float64{-0.1, 1.1, math.NaN(), math.Inf(1)} {
		_, err := g.Draw(c, p)
		require.ErrorIs(t, err, ErrInvalidProb)
	}
}

func TestGachaStatApprox(t *testing.T) {
	c := deploy(t, "gacha")
	g, err := NewGacha(0, nil)
	require.NoError(t, err)

	const p = 0.3
	const n = 2000 // ten-draws
	hit := 0
	for i := 0; i < n; i++ {
		outs, err := g.TenDraw(c, p)
		require.NoError(t, err)
		require.Len(t, outs, 10)
		for _, o := range outs {
			if o.Hit {
				hit++
			}
		}
	}
	freq := float64(hit) / float64(n*10)
	require.InDelta(t, p, freq, 0.015)
	require.Equal(t, uint32(1+n), nonceOf(t, c))
}

func TestGachaHardPity(t *testing.T) {
	c := deploy(t, "gacha")
	g, err := NewGacha(10, nil)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		out, err := g.Draw(c, 0)
		require.NoError(t, err)
		require.Falsef(t, out.Hit, "should not hit before pity, i=%d", i)
		require.Equal(t, i+1, out.Count)
	}
	out, err := g.Draw(c, 0)
	require.NoError(t, err)
	require.True(t, out.Hit, "expected pity hit at 10th draw")
	require.True(t, out.Pity)
	require.Zero(t, out.Count)

	count, found, err := c.Storage().Get(GachaPityKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Zero(t, count)
}

func TestGachaPityCarriesAcrossTenDraws(t *testing.T) {
	c := deploy(t, "gacha")
	g, err := NewGacha(15, nil)
	require.NoError(t, err)

	first, err := g.TenDraw(c, 0)
	require.NoError(t, err)
	require.Equal(t, 10, first[9].Count)

	second, err := g.TenDraw(c, 0)
	require.NoError(t, err)
	require.True(t, second[4].Pity)
	require.Equal(t, 5, second[9].Count)
}

func TestSoftPityConfig(t *testing.T) {
	bad := []struct {
		pity int
		soft SoftPityConfig
	}{
		{pity: 1, soft: SoftPityConfig{StartAt: 0, TargetProb: 0.5}},
		{pity: 90, soft: SoftPityConfig{StartAt: 74, TargetProb: 0}},
		{pity: 90, soft: SoftPityConfig{StartAt: 74, TargetProb: 1}},
		{pity: 90, soft: SoftPityConfig{StartAt: 89, TargetProb: 0.5}},
		{pity: 90, soft: SoftPityConfig{StartAt: 74, TargetProb: 0.5, Easing: "bounce"}},
	}
	for _, tc := range bad {
		_, err := NewGacha(tc.pity, &tc.soft)
		require.ErrorIs(t, err, ErrSoftPityConfig)
	}
	_, err := NewGacha(-1, nil)
	require.ErrorIs(t, err, ErrSoftPityConfig)

	soft := &SoftPityConfig{StartAt: -3, TargetProb: 0.5}
	g, err := NewGacha(90, soft)
	require.NoError(t, err)
	require.Equal(t, -3, soft.StartAt, "caller config must not be mutated")
	require.Equal(t, 0, g.soft.StartAt)
	require.Equal(t, EaseLinear, g.soft.Easing)
}

func TestEffectiveProbRamp(t *testing.T) {
	const base = 0.006
	for _, e := range []Easing{EaseLinear, EaseOutQuad, EaseInOutCubic} {
		g, err := NewGacha(90, &SoftPityConfig{StartAt: 74, TargetProb: 0.5, Easing: e})
		require.NoError(t, err)

		require.Equal(t, base, g.effectiveProb(0, base))
		require.Equal(t, base, g.effectiveProb(73, base))
		require.InDelta(t, base, g.effectiveProb(74, base), 1e-12)
		require.InDelta(t, 0.5, g.effectiveProb(89, base), 1e-12)

		prev := 0.0
		for c := 74; c <= 89; c++ {
			p := g.effectiveProb(c, base)
			require.GreaterOrEqual(t, p, prev, "ramp must not decrease (%s)", e)
			prev = p
		}
	}

	g, err := NewGacha(90, &SoftPityConfig{StartAt: 74, TargetProb: 0.5})
	require.NoError(t, err)
	require.InDelta(t, base+(0.5-base)*0.4, g.effectiveProb(80, base), 1e-12)
}
