package column

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Zero-copy conversions between typed slices and bytes. Sections are
// written in host byte order, which is little-endian on every platform the
// archive is produced and consumed on.

func encodeSlice[T Numeric](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func decodeSlice[T Numeric](b []byte) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b)%size != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "%d bytes is not a multiple of %d", len(b), size)
	}
	n := len(b) / size
	s := make([]T, n)
	if n > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(b)), b)
	}
	return s, nil
}
