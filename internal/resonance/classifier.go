package resonance

import "errors"

// NumClasses is the number of resonance classes a byte can map to.
const NumClasses = 96

// ErrClassifierUnavailable signals that the external classifier could
// not classify a byte. The core never retries; retry policy belongs to
// the classifier's own client.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Classifier maps byte values to resonance classes. Implementations
// must be total, pure, and deterministic: the same byte always yields
// the same class, and the class is always in [0, NumClasses).
//
// The classifier is an external collaborator. The core calls it but
// does not re-derive its algebra; in particular the core verifies,
// rather than assumes, that the index-weighted histogram sum agrees
// with the raw byte-sum checksum for the concrete classifier in use.
type Classifier interface {
	// Classify returns the class of a single byte.
	Classify(b byte) (uint8, error)

	// Histogram tallies Classify over every byte of data.
	Histogram(data []byte) ([NumClasses]uint32, error)
}

// WeightedSum reduces a histogram to its conservation invariant: the
// sum of class_index * count over all classes, modulo 96.
func WeightedSum(hist [NumClasses]uint32) uint8 {
	sum := 0
	for i, n := range hist {
		sum = (sum + i*int(n%96)) % 96
	}
	return uint8(sum)
}

// Mod96 is the reference classifier: class(b) = b mod 96. Under this
// mapping the index-weighted histogram sum provably equals the byte sum
// modulo 96, which is the contract the projection layer checks.
type Mod96 struct{}

// Classify returns b mod 96. It never fails.
func (Mod96) Classify(b byte) (uint8, error) {
	return b % NumClasses, nil
}

// Histogram tallies the mod-96 class of every byte in data.
func (Mod96) Histogram(data []byte) ([NumClasses]uint32, error) {
	var hist [NumClasses]uint32
	for _, b := range data {
		hist[b%NumClasses]++
	}
	return hist, nil
}
