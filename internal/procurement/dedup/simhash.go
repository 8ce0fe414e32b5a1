package dedup

import (
	"encoding/binary"
	"errors"
	"hash"
	"math/bits"

	"github.com/Caia-Tech/caia-harvester/internal/procurement/quality"
	"github.com/go-crypt/x/blake2b"
)

// ErrFingerprintUnavailable is returned by fingerprinters that cannot hash.
var ErrFingerprintUnavailable = errors.New("fingerprinting unavailable")

// Fingerprinter reduces a document to a 64-bit locality-sensitive hash.
type Fingerprinter interface {
	Fingerprint(text string) (uint64, error)
}

// SimHasher computes frequency-weighted SimHash over lowercase word tokens,
// hashing each token with BLAKE2b-64.
type SimHasher struct{}

func (SimHasher) Fingerprint(text string) (uint64, error) {
	tokens := quality.Tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	h, err := blake2b.New(8, nil)
	if err != nil {
		return 0, err
	}

	var weights [64]int
	for tok, n := range counts {
		v := tokenHash(h, tok)
		for i := 0; i < 64; i++ {
			if v&(1<<uint(i)) != 0 {
				weights[i] += n
			} else {
				weights[i] -= n
			}
		}
	}

	var fingerprint uint64
	for i, w := range weights {
		if w > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint, nil
}

func tokenHash(h hash.Hash, token string) uint64 {
	h.Reset()
	h.Write([]byte(token))
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// Unavailable is the fingerprinter used when near-duplicate detection is
// switched off. The filter treats every document as unique.
type Unavailable struct{}

func (Unavailable) Fingerprint(string) (uint64, error) {
	return 0, ErrFingerprintUnavailable
}

// HammingDistance counts differing bits.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
