// Package witness produces opaque proof tokens bound to a payload
// state. Witnessing is advisory: tokens give the embedding application
// an auditable checkpoint, but conservation correctness never depends
// on them, and a witness failure must not halt reconstruction.
package witness

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"github.com/zeebo/blake3"
)

// ErrWitnessUnavailable signals that the witness service could not
// produce or check a token. Callers treat it as an external collaborator
// failure and continue without the checkpoint.
var ErrWitnessUnavailable = errors.New("witness service unavailable")

// DigestSize is the size of a witness digest in bytes.
const DigestSize = 32

// Token is an opaque proof bound to one payload state. Seq is the
// explicit sequence counter supplied by the embedding application; the
// core keeps no hidden witness state of its own.
type Token struct {
	Seq    uint64           `cbor:"seq" json:"seq"`
	Digest [DigestSize]byte `cbor:"digest" json:"digest"`
}

// Service generates and checks witness tokens. Implementations are
// opaque to the core.
type Service interface {
	// Generate binds a token to the payload under the given sequence
	// number.
	Generate(seq uint64, payload []byte) (Token, error)

	// Check reports whether the token matches the payload.
	Check(tok Token, payload []byte) (bool, error)
}

// domainKey is the fixed 32-byte BLAKE3 key separating witness digests
// from any other use of the hash. The bytes are the ASCII domain name,
// zero-padded; changing them invalidates all existing tokens.
var domainKey = [32]byte{
	'h', 'o', 'l', 'o', 'g', 'r', 'a', 'm', '.', 'w', 'i', 't', 'n', 'e', 's', 's',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Blake3 is the default witness service: a keyed BLAKE3 digest over the
// sequence number followed by the payload.
type Blake3 struct{}

// Generate computes the keyed digest of seq and payload.
func (Blake3) Generate(seq uint64, payload []byte) (Token, error) {
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		return Token{}, errors.Join(ErrWitnessUnavailable, err)
	}
	var seqBytes [8]byte
	binary.LittleEndian.PutUint64(seqBytes[:], seq)
	h.Write(seqBytes[:])
	h.Write(payload)

	tok := Token{Seq: seq}
	copy(tok.Digest[:], h.Sum(nil))
	return tok, nil
}

// Check recomputes the digest for the token's sequence number and
// compares in constant time.
func (b Blake3) Check(tok Token, payload []byte) (bool, error) {
	want, err := b.Generate(tok.Seq, payload)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want.Digest[:], tok.Digest[:]) == 1, nil
}
