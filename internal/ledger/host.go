// Package ledger is an in-process host for contracts: it assigns contract
// identifiers, keeps the ledger header and scopes persistent storage per
// contract.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/xtding233/contract-rng/internal/rng"
)

var ErrUnknownContract = errors.New("unknown contract")

// Host runs contracts against one ledger and one storage backend.
type Host struct {
	backend Backend
	ledger  *Ledger
	log     zerolog.Logger

	mu        sync.RWMutex
	contracts map[string]*Contract
}

func NewHost(backend Backend, l *Ledger, logger zerolog.Logger) *Host {
	return &Host{
		backend:   backend,
		ledger:    l,
		log:       logger.With().Str("component", "host").Logger(),
		contracts: make(map[string]*Contract),
	}
}

// ContractIDFor is the identifier a contract named name is deployed under.
func ContractIDFor(name string) ContractID {
	return ContractID(sha3.Sum256([]byte(name)))
}

// Deploy installs name with empty storage, wiping whatever an earlier
// deployment left behind.
func (h *Host) Deploy(name string) (*Contract, error) {
	c := h.register(name)
	if err := h.backend.Reset(c.id); err != nil {
		return nil, fmt.Errorf("reset storage of %s: %w", name, err)
	}
	h.log.Info().Str("contract", name).Str("id", c.id.Hex()).Msg("contract deployed")
	return c, nil
}

// Attach makes an already deployed contract callable, keeping its storage.
func (h *Host) Attach(name string) *Contract {
	c := h.register(name)
	h.log.Debug().Str("contract", name).Str("id", c.id.Hex()).Msg("contract attached")
	return c
}

func (h *Host) register(name string) *Contract {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.contracts[name]; ok {
		return c
	}
	c := &Contract{name: name, id: ContractIDFor(name), host: h}
	h.contracts[name] = c
	return c
}

func (h *Host) Contract(name string) (*Contract, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.contracts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
	return c, nil
}

func (h *Host) Ledger() *Ledger { return h.ledger }

func (h *Host) Close() error { return h.backend.Close() }

// Contract is a deployed contract; it is the rng.Env of its invocations.
type Contract struct {
	name string
	id   ContractID
	host *Host
}

var _ rng.Env = (*Contract)(nil)

func (c *Contract) Name() string   { return c.name }
func (c *Contract) ID() ContractID { return c.id }

func (c *Contract) ContractID() []byte { return c.id.Bytes() }

func (c *Contract) Ledger() rng.Ledger {
	info := c.host.ledger.Info()
	return rng.Ledger{Sequence: info.Sequence, Timestamp: info.Timestamp}
}

func (c *Contract) Storage() rng.KeyValueStore {
	return contractStore{backend: c.host.backend, id: c.id}
}

type contractStore struct {
	backend Backend
	id      ContractID
}

func (s contractStore) Get(key string) (uint32, bool, error) {
	return s.backend.Get(s.id, key)
}

func (s contractStore) Update(key string, fn func(uint32, bool) uint32) error {
	return s.backend.Update(s.id, key, fn)
}
