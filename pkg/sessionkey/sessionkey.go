// Package sessionkey supplies the session keys the trailer codec consumes.
//
// The codec never owns key material. Producers and consumers agree on a
// Source: either one static key, or keys derived per time window from a
// shared master secret so that each MAC8 key is only valid briefly.
package sessionkey

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// EpochModulus is the wrap-around of the trailer epoch field.
const EpochModulus = 256

// DefaultKeyLength is the length of derived session keys.
const DefaultKeyLength = 16

var (
	ErrEmptyKey     = errors.New("sessionkey: empty key material")
	ErrInvalidEpoch = errors.New("sessionkey: epoch out of range")
	ErrWindow       = errors.New("sessionkey: window must be a positive whole number of seconds")
)

// Source hands out keys for encoding and decoding trailers.
type Source interface {
	// EncodeKey returns the trailer epoch for now and the key to sign with.
	EncodeKey(now time.Time) (epoch int, key []byte, err error)
	// DecodeKey returns the key a trailer carrying epoch was signed with,
	// assuming it was produced close to now.
	DecodeKey(now time.Time, epoch int) ([]byte, error)
}

// Epoch returns the trailer epoch for t: whole seconds modulo 256, in [0,256)
// for times before 1970 as well.
func Epoch(t time.Time) int {
	return int((t.Unix()%EpochModulus + EpochModulus) % EpochModulus)
}

// ResolveEpoch returns the second nearest to now whose epoch equals epoch.
// Clock skew up to ±127 seconds resolves to the producing second.
func ResolveEpoch(now time.Time, epoch int) (time.Time, error) {
	if epoch < 0 || epoch >= EpochModulus {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidEpoch, epoch)
	}
	sec := now.Unix()
	delta := (int64(epoch) - sec%EpochModulus + EpochModulus) % EpochModulus
	if delta > EpochModulus/2 {
		delta -= EpochModulus
	}
	return time.Unix(sec+delta, 0), nil
}

// Static uses one key for every epoch.
type Static struct {
	key []byte
}

// NewStatic returns a Source that always yields key.
func NewStatic(key []byte) (*Static, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Static{key: k}, nil
}

func (s *Static) EncodeKey(now time.Time) (int, []byte, error) {
	return Epoch(now), s.Key(), nil
}

func (s *Static) DecodeKey(_ time.Time, epoch int) ([]byte, error) {
	if epoch < 0 || epoch >= EpochModulus {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEpoch, epoch)
	}
	return s.Key(), nil
}

// Key returns a copy of the static key; callers may zero it.
func (s *Static) Key() []byte {
	return append([]byte(nil), s.key...)
}

// Derived expands a master secret into one key per window with HKDF-SHA256.
type Derived struct {
	master []byte
	window time.Duration
	length int
}

// NewDerived returns a Source deriving a fresh key every window. The window
// must be a whole number of seconds so that the trailer epoch identifies it.
func NewDerived(master []byte, window time.Duration) (*Derived, error) {
	if len(master) == 0 {
		return nil, ErrEmptyKey
	}
	if window < time.Second || window%time.Second != 0 {
		return nil, fmt.Errorf("%w: %s", ErrWindow, window)
	}
	m := make([]byte, len(master))
	copy(m, master)
	return &Derived{master: m, window: window, length: DefaultKeyLength}, nil
}

// KeyAt returns the key of the window containing t.
func (d *Derived) KeyAt(t time.Time) ([]byte, error) {
	return d.keyForWindow(d.windowIndex(t.Unix()))
}

func (d *Derived) EncodeKey(now time.Time) (int, []byte, error) {
	key, err := d.KeyAt(now)
	if err != nil {
		return 0, nil, err
	}
	return Epoch(now), key, nil
}

func (d *Derived) DecodeKey(now time.Time, epoch int) ([]byte, error) {
	produced, err := ResolveEpoch(now, epoch)
	if err != nil {
		return nil, err
	}
	return d.KeyAt(produced)
}

func (d *Derived) windowIndex(unix int64) uint64 {
	secs := int64(d.window / time.Second)
	idx := unix / secs
	if unix < 0 && unix%secs != 0 {
		idx--
	}
	return uint64(idx)
}

func (d *Derived) keyForWindow(idx uint64) ([]byte, error) {
	info := make([]byte, 0, len(hkdfInfo)+8)
	info = append(info, hkdfInfo...)
	info = binary.BigEndian.AppendUint64(info, idx)

	key := make([]byte, d.length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, d.master, nil, info), key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return key, nil
}

const hkdfInfo = "primefusion/session/v1"
