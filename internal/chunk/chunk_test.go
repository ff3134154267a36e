package chunk

import (
	"testing"
)

const mib = 1024 * 1024

func TestCount(t *testing.T) {
	size := int64(3*mib + mib/2)
	tests := []struct {
		name   string
		length int64
		want   int
	}{
		{"empty file", 0, 1},
		{"one byte", 1, 1},
		{"exactly one chunk", size, 1},
		{"one byte over", size + 1, 2},
		{"ten MiB", 10 * mib, 3},
		{"exact multiple", 3 * size, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.length, size); got != tt.want {
				t.Errorf("Count(%d) = %d, want %d", tt.length, got, tt.want)
			}
		})
	}
}

func TestSplit_TenMiB(t *testing.T) {
	size := int64(3*mib + mib/2)
	ranges := Split(10*mib, size)

	if len(ranges) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(ranges))
	}
	wantLens := []int64{size, size, 3 * mib}
	for i, r := range ranges {
		if r.Index != i {
			t.Errorf("chunk %d has index %d", i, r.Index)
		}
		if r.Len() != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, r.Len(), wantLens[i])
		}
	}
}

func TestSplit_CoversFile(t *testing.T) {
	for _, length := range []int64{0, 1, 7, 100, 1000, 4096, 4097} {
		for _, size := range []int64{1, 3, 64, 1000} {
			ranges := Split(length, size)
			if len(ranges) != Count(length, size) {
				t.Fatalf("len(Split(%d,%d)) = %d, want %d", length, size, len(ranges), Count(length, size))
			}
			var next int64
			for _, r := range ranges {
				if r.Start != next {
					t.Fatalf("Split(%d,%d): gap or overlap at chunk %d (start %d, expected %d)", length, size, r.Index, r.Start, next)
				}
				if r.Len() > size {
					t.Fatalf("Split(%d,%d): chunk %d too large (%d)", length, size, r.Index, r.Len())
				}
				next = r.End
			}
			if next != length {
				t.Fatalf("Split(%d,%d) ends at %d", length, size, next)
			}
		}
	}
}

func TestSplit_NonPositiveSize(t *testing.T) {
	for _, size := range []int64{0, -1} {
		ranges := Split(100, size)
		if len(ranges) != 1 || ranges[0].Start != 0 || ranges[0].End != 100 {
			t.Errorf("Split(100, %d) = %v, want one chunk covering the file", size, ranges)
		}
	}
	if got := Count(0, 0); got != 1 {
		t.Errorf("Count(0, 0) = %d, want 1", got)
	}
}

func TestSlice(t *testing.T) {
	data := []byte("abcdefghij")
	got := string(Slice(data, At(1, int64(len(data)), 4)))
	if got != "efgh" {
		t.Errorf("Slice = %q, want %q", got, "efgh")
	}
	got = string(Slice(data, At(2, int64(len(data)), 4)))
	if got != "ij" {
		t.Errorf("Slice = %q, want %q", got, "ij")
	}
}
