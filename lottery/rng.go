// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lottery

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/bits"
)

// SeedBytes is the size of a published draw seed.
const SeedBytes = 32

var (
	ErrInvalidRange = errors.New("invalid range: min must be less than or equal to max")
	ErrRangeTooWide = errors.New("range exceeds 56 bits")
	ErrInvalidSeed  = errors.New("seed must be 64 hex characters")
)

// Source draws uniform integers from a byte stream: crypto/rand for live
// draws, or a deterministic stream derived from a published seed so that
// anyone holding the seed can replay the draw.
type Source struct {
	r io.Reader
}

// NewSource returns a Source backed by the operating system CSPRNG.
func NewSource() *Source {
	return &Source{r: rand.Reader}
}

// NewSeededSource returns a Source whose entire output is derived from the
// given hex seed via an HMAC-SHA256 counter stream. Same seed, same stream.
func NewSeededSource(seedHex string) (*Source, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != SeedBytes {
		return nil, ErrInvalidSeed
	}
	return &Source{r: &drbg{key: seed}}, nil
}

// drbg is a deterministic byte stream of HMAC-SHA256(seed, counter) blocks.
type drbg struct {
	key     []byte
	counter uint64
	buf     []byte
}

func (d *drbg) Read(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		if len(d.buf) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], d.counter)
			d.counter++
			mac := hmac.New(sha256.New, d.key)
			mac.Write(ctr[:])
			d.buf = mac.Sum(nil)
		}
		c := copy(p, d.buf)
		d.buf = d.buf[c:]
		p = p[c:]
		n += c
	}
	return n, nil
}

// UniformInt returns an integer uniformly distributed in [min, max]
// inclusive. Raw draws use the smallest byte width that covers the range
// and are rejected when they fall in the biased tail above the largest
// multiple of the range, so no value is favored by the modulo.
func (s *Source) UniformInt(min, max int) (int, error) {
	if min > max {
		return 0, ErrInvalidRange
	}
	if min == max {
		return min, nil
	}

	width := uint64(max-min) + 1
	nbytes := (bits.Len64(width-1) + 7) / 8
	if nbytes >= 8 {
		return 0, ErrRangeTooWide
	}

	maxRepresentable := uint64(1) << (uint(nbytes) * 8)
	limit := maxRepresentable - maxRepresentable%width

	buf := make([]byte, nbytes)
	for {
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return 0, fmt.Errorf("failed to read random bytes: %w", err)
		}
		var v uint64
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		if v >= limit {
			continue
		}
		return min + int(v%width), nil
	}
}

// RandomSeedHex generates a fresh 32-byte draw seed from the operating
// system CSPRNG. Published with every draw as its provenance.
func RandomSeedHex() (string, error) {
	b := make([]byte, SeedBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var ballModulus = big.NewInt(1_000_000)

// BallNumber derives a voter's 6-digit display number: SHA256(userID) mod
// 1e6. Not a secret, and cross-user collisions are acceptable; it exists so
// a voter can spot their ticket in a published draw.
func BallNumber(userID string) int {
	sum := sha256.Sum256([]byte(userID))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, ballModulus).Int64())
}
