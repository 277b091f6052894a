package lattice

import "fmt"

// Checksum sums all byte values in data as unsigned integers and
// reduces the total modulo 96. It is a pure, total function: any
// slice, including nil, has a checksum.
func Checksum(data []byte) uint8 {
	sum := 0
	for _, b := range data {
		sum += int(b)
		// Keep the accumulator small; overflow is impossible for
		// 12,288-byte inputs but callers may pass longer slices.
		if sum >= 1<<30 {
			sum %= Modulus
		}
	}
	return uint8(sum % Modulus)
}

// Result classifies the outcome of a conservation check. It is a value,
// not an error: a violated check is a legitimate answer, and callers
// decide whether it is fatal.
type Result struct {
	Conserved bool  // whether the check passed
	BeforeSum uint8 // checksum of the "before" snapshot
	AfterSum  uint8 // checksum of the "after" snapshot
}

// Verify checks absolute conservation of two snapshots: both must
// independently reduce to zero. The snapshots need not be equal.
func Verify(before, after []byte) Result {
	b, a := Checksum(before), Checksum(after)
	return Result{
		Conserved: b == 0 && a == 0,
		BeforeSum: b,
		AfterSum:  a,
	}
}

// VerifyDelta checks relative conservation: the two snapshots must have
// the same checksum, whatever its value. Use this when a transformation
// is expected to preserve the invariant rather than establish it.
func VerifyDelta(before, after []byte) Result {
	b, a := Checksum(before), Checksum(after)
	return Result{
		Conserved: b == a,
		BeforeSum: b,
		AfterSum:  a,
	}
}

// ConservationError reports a conservation mismatch discovered while
// building or reassembling a representation. Want is the invariant the
// source demands, Got is what the representation actually sums to.
type ConservationError struct {
	Want uint8
	Got  uint8
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("conservation mismatch: want checksum %d, got %d", e.Want, e.Got)
}
