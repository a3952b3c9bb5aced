package rng

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// IdentityLen is the minimum contract identifier length.
const IdentityLen = 32

var ErrMalformedIdentity = errors.New("malformed contract identity; need at least 32 bytes")

// SeedInputs holds everything a seed is derived from.
type SeedInputs struct {
	ContractID []byte
	Timestamp  uint64
	Sequence   uint32
	Nonce      uint32
	Salt       uint32
}

// DeriveSeed computes the generator seed. It is a pure function of its inputs
// and never touches storage.
func DeriveSeed(in SeedInputs) (uint64, error) {
	id, err := identityComponent(in.ContractID)
	if err != nil {
		return 0, err
	}
	return mix(id, timeComponent(in.Timestamp, in.Sequence), in.Nonce, in.Salt), nil
}

// identityComponent folds the first and last 8-byte windows of the identifier.
func identityComponent(id []byte) (uint64, error) {
	if len(id) < IdentityLen {
		return 0, fmt.Errorf("%w: got %d", ErrMalformedIdentity, len(id))
	}
	return binary.BigEndian.Uint64(id[0:8]) + binary.BigEndian.Uint64(id[24:32]), nil
}

func timeComponent(timestamp uint64, sequence uint32) uint64 {
	return timestamp * uint64(sequence)
}

// mix relies on Go's wrapping unsigned arithmetic; nothing here can overflow-trap.
func mix(identity, time uint64, nonce, salt uint32) uint64 {
	return (identity+time)*uint64(nonce) + uint64(salt)
}
