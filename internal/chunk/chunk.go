// Package chunk computes the fixed-size byte ranges a file is sent in.
package chunk

// Range is a half-open byte range [Start, End)
type Range struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of bytes in the range
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Count returns ceil(length/size). An empty file still occupies one (empty)
// chunk, and a non-positive size means the whole file is one chunk.
func Count(length, size int64) int {
	if length <= 0 || size <= 0 {
		return 1
	}
	return int((length + size - 1) / size)
}

// At returns the byte range of chunk i
func At(i int, length, size int64) Range {
	if size <= 0 {
		size = max(length, 1)
	}
	start := int64(i) * size
	end := min(start+size, length)
	if start > length {
		start = length
	}
	return Range{Index: i, Start: start, End: end}
}

// Split returns every chunk range of a file in order
func Split(length, size int64) []Range {
	n := Count(length, size)
	ranges := make([]Range, n)
	for i := range n {
		ranges[i] = At(i, length, size)
	}
	return ranges
}

// Slice returns the bytes of r within data without copying
func Slice(data []byte, r Range) []byte {
	return data[r.Start:r.End]
}
