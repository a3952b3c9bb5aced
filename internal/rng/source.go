package rng

import (
	"encoding/binary"
	"math/bits"
	"math/rand/v2"
)

// Source is the bit-generation algorithm behind a Generator.
type Source interface {
	Uint32() uint32
	Uint64() uint64
	FillBytes(dst []byte)
	TryFillBytes(dst []byte) error
}

// Algorithm builds a Source from a 64-bit seed using the algorithm's own
// seed expansion. Equal seeds must yield equal output.
type Algorithm func(seed uint64) Source

// PCG is the default algorithm: math/rand/v2's PCG-DXSM seeded with (seed, 0).
func PCG(seed uint64) Source {
	return &pcgSource{p: rand.NewPCG(seed, 0)}
}

type pcgSource struct{ p *rand.PCG }

func (s *pcgSource) Uint64() uint64 { return s.p.Uint64() }

func (s *pcgSource) Uint32() uint32 { return uint32(s.p.Uint64() >> 32) }

func (s *pcgSource) FillBytes(dst []byte) { fillUint64(dst, s.p.Uint64) }

func (s *pcgSource) TryFillBytes(dst []byte) error {
	s.FillBytes(dst)
	return nil
}

// Xoshiro is xoshiro256++ with its state expanded from the seed by SplitMix64.
func Xoshiro(seed uint64) Source {
	var x xoshiro
	for i := range x.s {
		seed += 0x9e3779b97f4a7c15
		x.s[i] = splitmix(seed)
	}
	return &x
}

type xoshiro struct{ s [4]uint64 }

func splitmix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (x *xoshiro) Uint64() uint64 {
	s := &x.s
	result := bits.RotateLeft64(s[0]+s[3], 23) + s[0]
	t := s[1] << 17
	s[2] ^= s[0]
	s[3] ^= s[1]
	s[1] ^= s[2]
	s[0] ^= s[3]
	s[2] ^= t
	s[3] = bits.RotateLeft64(s[3], 45)
	return result
}

// Uint32 takes the high half, the low bits of ++ output being the weaker ones.
func (x *xoshiro) Uint32() uint32 { return uint32(x.Uint64() >> 32) }

func (x *xoshiro) FillBytes(dst []byte) { fillUint64(dst, x.Uint64) }

func (x *xoshiro) TryFillBytes(dst []byte) error {
	x.FillBytes(dst)
	return nil
}

// fillUint64 writes little-endian words; a short tail takes the low bytes of one more word.
func fillUint64(dst []byte, next func() uint64) {
	for len(dst) >= 8 {
		binary.LittleEndian.PutUint64(dst, next())
		dst = dst[8:]
	}
	if len(dst) > 0 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], next())
		copy(dst, buf[:])
	}
}
