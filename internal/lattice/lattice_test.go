package lattice

import (
	"bytes"
	"errors"
	"testing"
)

// patternBuffer returns the canonical conserved test pattern:
// byte[i] = i mod 96. The pattern repeats exactly 128 times across the
// buffer, so every residue appears 128 times and the sum reduces to 0.
func patternBuffer(t *testing.T) *Buffer {
	t.Helper()
	data := make([]byte, BufferSize)
	for i := range data {
		data[i] = byte(i % Modulus)
	}
	buf, err := NewBuffer(data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func TestNewBuffer(t *testing.T) {
	t.Run("accepts exactly 12288 bytes", func(t *testing.T) {
		buf, err := NewBuffer(make([]byte, BufferSize))
		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		if got := len(buf.Bytes()); got != BufferSize {
			t.Errorf("Expected %d bytes, got %d", BufferSize, got)
		}
	})

	t.Run("rejects wrong sizes", func(t *testing.T) {
		for _, size := range []int{0, 1, BufferSize - 1, BufferSize + 1, 2 * BufferSize} {
			if _, err := NewBuffer(make([]byte, size)); err == nil {
				t.Errorf("Expected error for size %d", size)
			}
		}
	})

	t.Run("copies its input", func(t *testing.T) {
		data := make([]byte, BufferSize)
		buf, err := NewBuffer(data)
		if err != nil {
			t.Fatalf("NewBuffer: %v", err)
		}
		data[0] = 0xFF
		if buf.At(0, 0) != 0 {
			t.Error("Buffer aliased the caller's slice")
		}
	})
}

func TestPageView(t *testing.T) {
	buf := patternBuffer(t)

	t.Run("page returns the right slice", func(t *testing.T) {
		page := buf.Page(1)
		if len(page) != PageSize {
			t.Fatalf("Expected %d bytes, got %d", PageSize, len(page))
		}
		// Page 1 starts at linear index 256; 256 mod 96 == 64.
		if page[0] != 64 {
			t.Errorf("Expected first byte 64, got %d", page[0])
		}
	})

	t.Run("index and locate are inverses", func(t *testing.T) {
		for _, i := range []int{0, 1, 255, 256, 6144, BufferSize - 1} {
			page, offset := Locate(i)
			if got := Index(page, offset); got != i {
				t.Errorf("Index(Locate(%d)) = %d", i, got)
			}
		}
	})

	t.Run("at matches bytes", func(t *testing.T) {
		raw := buf.Bytes()
		for _, i := range []int{0, 100, 4095, BufferSize - 1} {
			page, offset := Locate(i)
			if buf.At(page, offset) != raw[i] {
				t.Errorf("At(%d,%d) != Bytes()[%d]", page, offset, i)
			}
		}
	})
}

func TestChecksum(t *testing.T) {
	t.Run("zero buffer is conserved", func(t *testing.T) {
		// Concrete scenario: 12,288 zero bytes sum to 0.
		if got := Checksum(Zero().Bytes()); got != 0 {
			t.Errorf("Expected checksum 0, got %d", got)
		}
	})

	t.Run("repeating residue pattern is conserved", func(t *testing.T) {
		// 128 * sum(0..95) = 128 * 4560 = 583680; 583680 mod 96 == 0.
		if got := Checksum(patternBuffer(t).Bytes()); got != 0 {
			t.Errorf("Expected checksum 0, got %d", got)
		}
	})

	t.Run("single byte", func(t *testing.T) {
		tests := []struct {
			b    byte
			want uint8
		}{
			{0, 0},
			{1, 1},
			{95, 95},
			{96, 0},
			{97, 1},
			{255, 63},
		}
		for _, tt := range tests {
			if got := Checksum([]byte{tt.b}); got != tt.want {
				t.Errorf("Checksum([%d]) = %d, want %d", tt.b, got, tt.want)
			}
		}
	})

	t.Run("empty and nil are zero", func(t *testing.T) {
		if Checksum(nil) != 0 || Checksum([]byte{}) != 0 {
			t.Error("Expected zero checksum for empty input")
		}
	})

	t.Run("idempotent on immutable input", func(t *testing.T) {
		data := patternBuffer(t).Bytes()
		first := Checksum(data)
		second := Checksum(data)
		if first != second {
			t.Errorf("Checksum not idempotent: %d then %d", first, second)
		}
	})
}

func TestVerify(t *testing.T) {
	conserved := patternBuffer(t).Bytes()
	violated := append([]byte(nil), conserved...)
	violated[0] = 1 // shift the sum off zero

	t.Run("both conserved", func(t *testing.T) {
		res := Verify(conserved, Zero().Bytes())
		if !res.Conserved {
			t.Errorf("Expected conserved, got %+v", res)
		}
	})

	t.Run("violation reports both sums", func(t *testing.T) {
		res := Verify(conserved, violated)
		if res.Conserved {
			t.Error("Expected violation")
		}
		if res.BeforeSum != 0 || res.AfterSum != 1 {
			t.Errorf("Expected sums (0,1), got (%d,%d)", res.BeforeSum, res.AfterSum)
		}
	})

	t.Run("delta variant accepts equal nonzero sums", func(t *testing.T) {
		a := []byte{5}
		b := []byte{1, 4}
		res := VerifyDelta(a, b)
		if !res.Conserved {
			t.Errorf("Expected delta conservation, got %+v", res)
		}
		if res.BeforeSum != 5 || res.AfterSum != 5 {
			t.Errorf("Expected sums (5,5), got (%d,%d)", res.BeforeSum, res.AfterSum)
		}
	})
}

func TestRegion(t *testing.T) {
	t.Run("valid page aligned region", func(t *testing.T) {
		r, err := NewRegion(0, 6144)
		if err != nil {
			t.Fatalf("NewRegion: %v", err)
		}
		if r.Size() != 6144 || r.Pages() != 24 || r.FirstPage() != 0 {
			t.Errorf("Unexpected geometry: %+v", r)
		}
	})

	t.Run("rejects unaligned boundaries", func(t *testing.T) {
		// Concrete scenario: region (10, 266) is not page-aligned.
		tests := []struct {
			start, end uint32
		}{
			{10, 266},
			{0, 100},
			{256, 300},
		}
		for _, tt := range tests {
			_, err := NewRegion(tt.start, tt.end)
			if err == nil {
				t.Errorf("Expected error for [%d,%d)", tt.start, tt.end)
				continue
			}
			if !errors.Is(err, ErrUnalignedRegion) {
				t.Errorf("Expected ErrUnalignedRegion for [%d,%d), got %v", tt.start, tt.end, err)
			}
		}
	})

	t.Run("rejects empty and out of bounds", func(t *testing.T) {
		tests := []struct {
			start, end uint32
		}{
			{0, 0},
			{512, 512},
			{512, 256},
			{0, BufferSize + PageSize},
		}
		for _, tt := range tests {
			if _, err := NewRegion(tt.start, tt.end); err == nil {
				t.Errorf("Expected error for [%d,%d)", tt.start, tt.end)
			}
		}
	})

	t.Run("overlap detection", func(t *testing.T) {
		a := Region{Start: 0, End: 512}
		b := Region{Start: 512, End: 1024}
		c := Region{Start: 256, End: 768}
		if a.Overlaps(b) {
			t.Error("Adjacent regions should not overlap")
		}
		if !a.Overlaps(c) || !b.Overlaps(c) {
			t.Error("Expected overlap with straddling region")
		}
	})

	t.Run("partition tiles the buffer", func(t *testing.T) {
		for _, n := range []int{1, 2, 4, 6, 48} {
			regions, err := Partition(n)
			if err != nil {
				t.Fatalf("Partition(%d): %v", n, err)
			}
			if len(regions) != n {
				t.Fatalf("Expected %d regions, got %d", n, len(regions))
			}
			var covered uint32
			for _, r := range regions {
				if r.Validate() != nil {
					t.Errorf("Invalid partition region %s", r)
				}
				covered += r.Size()
			}
			if covered != BufferSize {
				t.Errorf("Partition(%d) covers %d bytes", n, covered)
			}
		}
	})

	t.Run("partition rejects non-divisors", func(t *testing.T) {
		for _, n := range []int{0, -1, 5, 7, 96} {
			if _, err := Partition(n); err == nil {
				t.Errorf("Expected error for Partition(%d)", n)
			}
		}
	})
}

func TestBufferRoundTrip(t *testing.T) {
	original := patternBuffer(t).Bytes()
	buf, err := NewBuffer(original)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), original) {
		t.Error("Bytes() does not match construction input")
	}
}
