// Package frame delimits a beacon (header, payload and optional trailer)
// with explicit lengths so that consumers never have to search for the
// trailer magic byte.
//
// Layout, big-endian:
//
//	[Version(1)][Flags(1)][HeaderLen(2)][PayloadLen(4)][Header][Payload][Trailer(10)?]
//
// The trailer is present iff FlagHasTrailer is set.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ssargent/primefusion/pkg/fusion"
)

const (
	FixedHeaderLen = 8
	Version        = 0x01

	FlagHasTrailer uint8 = 0x01

	knownFlags = FlagHasTrailer
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrLengthMismatch     = errors.New("frame: declared lengths do not match buffer")
	ErrHeaderTooLarge     = errors.New("frame: header too large")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrMissingTrailer     = errors.New("frame: trailer not found")
	ErrUnknownFlags       = errors.New("frame: unknown flag bits")
)

// Frame is one delimited beacon.
type Frame struct {
	Header  []byte
	Payload []byte
	Trailer *fusion.Trailer
}

// Authenticated returns header||payload, the bytes the trailer MAC covers.
func (f Frame) Authenticated() []byte {
	out := make([]byte, 0, len(f.Header)+len(f.Payload))
	out = append(out, f.Header...)
	return append(out, f.Payload...)
}

// Size returns the encoded length of f.
func (f Frame) Size() int {
	n := FixedHeaderLen + len(f.Header) + len(f.Payload)
	if f.Trailer != nil {
		n += fusion.Size
	}
	return n
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxHeaderBytes  uint64
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes:  1<<16 - 1,
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

func (l Limits) check(headerLen, payloadLen uint64) error {
	if headerLen > l.MaxHeaderBytes || headerLen > 1<<16-1 {
		return ErrHeaderTooLarge
	}
	if payloadLen > l.MaxPayloadBytes || payloadLen > 1<<32-1 {
		return ErrPayloadTooLarge
	}
	return nil
}

// Encode serializes f into a single buffer using DefaultLimits.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(f.Size())
	if err := WriteFrame(&buf, f, DefaultLimits()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses exactly one frame occupying all of b.
func Decode(b []byte) (Frame, error) {
	r := bytes.NewReader(b)
	f, err := ReadFrame(r, DefaultLimits())
	if err != nil {
		return Frame{}, err
	}
	if r.Len() != 0 {
		return Frame{}, fmt.Errorf("%w: %d trailing bytes", ErrLengthMismatch, r.Len())
	}
	return f, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	headerLen := uint64(len(f.Header))
	payloadLen := uint64(len(f.Payload))
	if err := limits.check(headerLen, payloadLen); err != nil {
		return err
	}

	var flags uint8
	if f.Trailer != nil {
		flags |= FlagHasTrailer
	}

	fixed := make([]byte, FixedHeaderLen)
	fixed[0] = Version
	fixed[1] = flags
	binary.BigEndian.PutUint16(fixed[2:4], uint16(headerLen))
	binary.BigEndian.PutUint32(fixed[4:8], uint32(payloadLen))

	if _, err := w.Write(fixed); err != nil {
		return err
	}
	if headerLen > 0 {
		if _, err := w.Write(f.Header); err != nil {
			return err
		}
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	if f.Trailer != nil {
		if _, err := w.Write(f.Trailer[:]); err != nil {
			return err
		}
	}
	return nil
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	if fixed[0] != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, fixed[0])
	}
	flags := fixed[1]
	if flags&^knownFlags != 0 {
		return Frame{}, fmt.Errorf("%w: 0x%02x", ErrUnknownFlags, flags)
	}
	headerLen := uint64(binary.BigEndian.Uint16(fixed[2:4]))
	payloadLen := uint64(binary.BigEndian.Uint32(fixed[4:8]))
	if err := limits.check(headerLen, payloadLen); err != nil {
		return Frame{}, err
	}

	f := Frame{}
	if headerLen > 0 {
		f.Header = make([]byte, headerLen)
		if _, err := io.ReadFull(r, f.Header); err != nil {
			return Frame{}, fmt.Errorf("%w: header: %v", ErrLengthMismatch, err)
		}
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, fmt.Errorf("%w: payload: %v", ErrLengthMismatch, err)
		}
	}
	if flags&FlagHasTrailer != 0 {
		var t fusion.Trailer
		if _, err := io.ReadFull(r, t[:]); err != nil {
			return Frame{}, fmt.Errorf("%w: trailer: %v", ErrLengthMismatch, err)
		}
		f.Trailer = &t
	}
	return f, nil
}
