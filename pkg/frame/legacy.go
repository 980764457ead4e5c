package frame

import (
	"github.com/ssargent/primefusion/pkg/fusion"
)

// SplitFixed splits an unframed beacon whose last fusion.Size bytes are the
// trailer.
func SplitFixed(raw []byte) (body, trailer []byte, err error) {
	if len(raw) < fusion.Size {
		return nil, nil, ErrMissingTrailer
	}
	n := len(raw) - fusion.Size
	return raw[:n], raw[n:], nil
}

// ScanTrailer locates the trailer of an unframed, possibly zero-padded
// beacon by the last magic byte that still leaves room for a full trailer.
// Bytes after the trailer are ignored.
//
// This is ambiguous: a magic-valued byte inside the trailer or the padding
// region wins over the real start. Only use it for buffers that predate
// framing.
func ScanTrailer(raw []byte) (body, trailer []byte, err error) {
	for i := len(raw) - fusion.Size; i >= 0; i-- {
		if raw[i] == fusion.Magic {
			return raw[:i], raw[i : i+fusion.Size], nil
		}
	}
	return nil, nil, ErrMissingTrailer
}
