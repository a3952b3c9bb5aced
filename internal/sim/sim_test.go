package sim

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/contract-rng/internal/contract"
	"github.com/xtding233/contract-rng/internal/ledger"
	"github.com/xtding233/contract-rng/internal/rng"
)

func newSim(t *testing.T) *Simulator {
	t.Helper()
	h := ledger.NewHost(ledger.NewMemoryBackend(), ledger.NewLedger(ledger.Info{Sequence: 1, Timestamp: 1_700_000_000}), zerolog.Nop())
	for _, name := range []string{"dice", "gacha"} {
		_, err := h.Deploy(name)
		require.NoError(t, err)
	}
	s, err := New(h, Options{Algorithm: rng.PCG, GachaPity: 90, CloseSecs: 5, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s
}

func TestRollAndNonce(t *testing.T) {
	s := newSim(t)

	n, err := s.Nonce("dice")
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)

	face, err := s.Roll("dice", 6)
	require.NoError(t, err)
	require.Less(t, face, uint32(6))

	n, err = s.Nonce("dice")
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)

	// other contracts keep their own nonce
	n, err = s.Nonce("gacha")
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)

	_, err = s.Roll("missing", 6)
	require.ErrorIs(t, err, ledger.ErrUnknownContract)
	require.True(t, IsClientError(err))
}

func TestDrawMatchesDirectInit(t *testing.T) {
	s := newSim(t)
	c, err := s.Host().Contract("dice")
	require.NoError(t, err)

	seed, err := rng.DeriveSeed(rng.SeedInputs{
		ContractID: c.ContractID(),
		Timestamp:  1_700_000_000,
		Sequence:   1,
		Nonce:      1,
		Salt:       7,
	})
	require.NoError(t, err)

	got, err := s.Draw("dice", 7, 4)
	require.NoError(t, err)
	ref := rng.PCG(seed)
	for _, v := range got {
		require.Equal(t, ref.Uint64(), v)
	}

	_, err = s.Draw("dice", 0, 0)
	require.ErrorIs(t, err, ErrTooManyDraws)
	_, err = s.Draw("dice", 0, MaxDraws+1)
	require.ErrorIs(t, err, ErrTooManyDraws)
}

func TestCloseLedger(t *testing.T) {
	s := newSim(t)

	info := s.CloseLedger(0)
	require.Equal(t, ledger.Info{Sequence: 2, Timestamp: 1_700_000_005}, info)
	info = s.CloseLedger(60)
	require.Equal(t, ledger.Info{Sequence: 3, Timestamp: 1_700_000_065}, info)
}

func TestGacha(t *testing.T) {
	s := newSim(t)

	out, err := s.Gacha("gacha", 1)
	require.NoError(t, err)
	require.True(t, out.Hit)

	outs, err := s.TenGacha("gacha", 0)
	require.NoError(t, err)
	require.Len(t, outs, 10)
	require.Equal(t, 10, outs[9].Count)

	_, err = s.Gacha("gacha", 2)
	require.ErrorIs(t, err, contract.ErrInvalidProb)
	require.True(t, IsClientError(err))
}

func TestConcurrentInvocationsNeverShareNonce(t *testing.T) {
	s := newSim(t)
	const callers, per = 8, 25

	var wg sync.WaitGroup
	errs := make(chan error, callers*per)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				_, err := s.Roll("dice", 6)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := s.Nonce("dice")
	require.NoError(t, err)
	require.Equal(t, uint32(1+callers*per), n)
}

func TestRollWithNonceReportsOwnInvocation(t *testing.T) {
	s := newSim(t)
	const callers, per = 8, 25

	type result struct {
		nonce uint32
		err   error
	}
	var wg sync.WaitGroup
	results := make(chan result, callers*per)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				_, nonce, err := s.RollWithNonce("dice", 6)
				results <- result{nonce, err}
			}
		}()
	}
	wg.Wait()
	close(results)

	// each roll must see the nonce its own initialization left behind
	seen := make(map[uint32]bool)
	for r := range results {
		require.NoError(t, r.err)
		require.False(t, seen[r.nonce], "nonce %d reported twice", r.nonce)
		seen[r.nonce] = true
	}
	for n := uint32(2); n <= 1+callers*per; n++ {
		require.True(t, seen[n], "nonce %d never reported", n)
	}
}
