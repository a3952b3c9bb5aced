package ledger

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/xtding233/contract-rng/internal/rng"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	lvl, err := NewLevelBackendInMemory()
	require.NoError(t, err)
	disk, err := OpenLevelBackend(t.TempDir())
	require.NoError(t, err)
	bs := map[string]Backend{
		"memory":       NewMemoryBackend(),
		"level-memory": lvl,
		"level-disk":   disk,
	}
	t.Cleanup(func() {
		for _, b := range bs {
			_ = b.Close()
		}
	})
	return bs
}

func TestBackendUpdate(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := ContractIDFor("counter")

			_, found, err := b.Get(id, "k")
			require.NoError(t, err)
			require.False(t, found)

			err = b.Update(id, "k", func(cur uint32, found bool) uint32 {
				require.False(t, found)
				return math.MaxUint32
			})
			require.NoError(t, err)

			v, found, err := b.Get(id, "k")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, uint32(math.MaxUint32), v)

			// other contracts do not see the key
			_, found, err = b.Get(ContractIDFor("other"), "k")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, b.Reset(id))
			_, found, err = b.Get(id, "k")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestBackendUpdateIsAtomic(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := ContractIDFor("race")
			const workers, per = 8, 50

			var wg sync.WaitGroup
			errs := make(chan error, workers*per)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < per; i++ {
						errs <- b.Update(id, "n", func(cur uint32, _ bool) uint32 { return cur + 1 })
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			v, _, err := b.Get(id, "n")
			require.NoError(t, err)
			require.Equal(t, uint32(workers*per), v)
		})
	}
}

var errDiskFull = errors.New("disk full")

// faultyStorage fails table file creation while full is set.
type faultyStorage struct {
	storage.Storage
	full atomic.Bool
}

func (s *faultyStorage) Create(fd storage.FileDesc) (storage.Writer, error) {
	if fd.Type == storage.TypeTable && s.full.Load() {
		return nil, errDiskFull
	}
	return s.Storage.Create(fd)
}

func TestLevelUpdateRecoversFromFailedCommit(t *testing.T) {
	stor := &faultyStorage{Storage: storage.NewMemStorage()}
	b, err := openLevelStorage(stor)
	require.NoError(t, err)
	defer b.Close()
	id := ContractIDFor("dice")

	stor.full.Store(true)
	err = b.Update(id, rng.NonceKey, func(uint32, bool) uint32 { return 7 })
	require.ErrorIs(t, err, errDiskFull)
	stor.full.Store(false)

	done := make(chan error, 1)
	go func() {
		done <- b.Update(id, rng.NonceKey, func(uint32, bool) uint32 { return 8 })
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("update blocked after a failed commit")
	}
	v, found, err := b.Get(id, rng.NonceKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(8), v)
}

func TestLedgerClose(t *testing.T) {
	l := NewLedger(Info{Sequence: math.MaxUint32, Timestamp: 100})
	got := l.Close(5)
	require.Equal(t, Info{Sequence: 0, Timestamp: 105}, got)
	require.Equal(t, got, l.Info())

	l.Set(Info{Sequence: 9, Timestamp: 9})
	require.Equal(t, Info{Sequence: 9, Timestamp: 9}, l.Info())
}

func TestDeployResetsStorage(t *testing.T) {
	h := NewHost(NewMemoryBackend(), NewLedger(Info{Sequence: 3, Timestamp: 33}), zerolog.Nop())

	c, err := h.Deploy("dice")
	require.NoError(t, err)
	require.Len(t, c.ContractID(), rng.IdentityLen)
	require.Equal(t, rng.Ledger{Sequence: 3, Timestamp: 33}, c.Ledger())

	for i := 0; i < 3; i++ {
		_, err := rng.Init(c)
		require.NoError(t, err)
	}
	nonce, found, err := c.Storage().Get(rng.NonceKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(4), nonce)

	same := h.Attach("dice")
	require.Same(t, c, same)
	nonce, _, err = same.Storage().Get(rng.NonceKey)
	require.NoError(t, err)
	require.Equal(t, uint32(4), nonce)

	_, err = h.Deploy("dice")
	require.NoError(t, err)
	_, found, err = c.Storage().Get(rng.NonceKey)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNoncePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	info := Info{Sequence: 10, Timestamp: 1000}

	b, err := OpenLevelBackend(dir)
	require.NoError(t, err)
	h := NewHost(b, NewLedger(info), zerolog.Nop())
	first, err := rng.Init(h.Attach("lottery"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	b, err = OpenLevelBackend(dir)
	require.NoError(t, err)
	h = NewHost(b, NewLedger(info), zerolog.Nop())
	defer h.Close()
	c := h.Attach("lottery")
	second, err := rng.Init(c)
	require.NoError(t, err)
	require.NotEqual(t, first.Seed(), second.Seed())

	nonce, _, err := c.Storage().Get(rng.NonceKey)
	require.NoError(t, err)
	require.Equal(t, uint32(3), nonce)
}

func TestUnknownContract(t *testing.T) {
	h := NewHost(NewMemoryBackend(), NewLedger(Info{}), zerolog.Nop())
	_, err := h.Contract("nope")
	require.ErrorIs(t, err, ErrUnknownContract)

	h.Attach("yes")
	c, err := h.Contract("yes")
	require.NoError(t, err)
	require.Equal(t, "yes", c.Name())
	require.Equal(t, ContractIDFor("yes"), c.ID())
}
