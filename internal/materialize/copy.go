package materialize

import (
	"github.com/robert-malhotra/go-chunkio/internal/layout"
)

// rowMajorStrides returns the element strides of a row-major array.
func rowMajorStrides(shape []uint64) []uint64 {
	strides := make([]uint64, len(shape))
	if len(shape) == 0 {
		return strides
	}
	strides[len(shape)-1] = 1
	for d := len(shape) - 2; d >= 0; d-- {
		strides[d] = strides[d+1] * shape[d+1]
	}
	return strides
}

// span returns the first and last chunk-local flat element touched by t.
func span(t layout.Transfer, srcStrides []uint64) (first, last uint64) {
	for d, r := range t.Src {
		first += r.Start * srcStrides[d]
		last += r.Last() * srcStrides[d]
	}
	return first, last
}

// copyTransfer copies the elements of t from a row-major chunk buffer into
// dst. src holds the chunk starting at flat element base.
func copyTransfer(dst, src []byte, t layout.Transfer, srcStrides []uint64, base uint64, elemSize int) {
	copyRecursive(dst, src, &t, srcStrides, base, uint64(elemSize), 0, t.DstOffset, 0)
}

func copyRecursive(dst, src []byte, t *layout.Transfer, srcStrides []uint64, base, es, srcIdx, dstIdx uint64, dim int) {
	r := t.Src[dim]
	srcStep := r.Stride * srcStrides[dim]
	dstStep := t.DstStrides[dim]
	s := srcIdx + r.Start*srcStrides[dim]
	d := dstIdx

	if dim < len(t.Src)-1 {
		for i := uint64(0); i < r.Count; i++ {
			copyRecursive(dst, src, t, srcStrides, base, es, s, d, dim+1)
			s += srcStep
			d += dstStep
		}
		return
	}

	// Innermost dimension.
	if srcStep == 1 && dstStep == 1 {
		n := r.Count * es
		copy(dst[d*es:d*es+n], src[(s-base)*es:(s-base)*es+n])
		return
	}
	for i := uint64(0); i < r.Count; i++ {
		copy(dst[d*es:(d+1)*es], src[(s-base)*es:(s-base+1)*es])
		s += srcStep
		d += dstStep
	}
}

// fillTransfer writes fill into every output element covered by t.
func fillTransfer(dst, fill []byte, t layout.Transfer) {
	fillRecursive(dst, fill, &t, uint64(len(fill)), t.DstOffset, 0)
}

func fillRecursive(dst, fill []byte, t *layout.Transfer, es, dstIdx uint64, dim int) {
	d := dstIdx
	step := t.DstStrides[dim]
	for i := uint64(0); i < t.Src[dim].Count; i++ {
		if dim < len(t.Src)-1 {
			fillRecursive(dst, fill, t, es, d, dim+1)
		} else {
			copy(dst[d*es:(d+1)*es], fill)
		}
		d += step
	}
}
