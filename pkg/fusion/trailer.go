package fusion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Trailer layout constants.
const (
	Size  = 10
	Magic = 0xCF

	MaxEpoch  = 1<<8 - 1
	MaxRootID = 1<<16 - 1
	MaxTipID  = 1<<12 - 1

	offMagic    = 0
	offEpoch    = 1
	offRootID   = 2
	offTips     = 4
	offMAC      = 7
	offReserved = 8
	offCRC      = 9
)

// Fields are the values carried by a trailer.
type Fields struct {
	Epoch  int    // seconds modulo 256
	RootID int    // short ID of the previous root
	Tips   [2]int // two short tip IDs, order matters
}

// Trailer is an encoded 10-byte trailer.
type Trailer [Size]byte

// Bytes returns a copy of the trailer bytes.
func (t Trailer) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, t[:])
	return b
}

// String returns the trailer as lowercase hex.
func (t Trailer) String() string {
	return hex.EncodeToString(t[:])
}

// MAC8 returns the authentication tag byte.
func (t Trailer) MAC8() byte { return t[offMAC] }

// CRC8 returns the checksum byte.
func (t Trailer) CRC8() byte { return t[offCRC] }

// TrailerCodec encodes and decodes trailers
type TrailerCodec struct {
	// StrictTips rejects tip IDs outside [0, 4096) with ErrRange instead of
	// masking them to their low 12 bits.
	StrictTips bool
}

var defaultCodec = &TrailerCodec{}

// NewTrailerCodec creates a codec with the permissive tip masking used on the wire today
func NewTrailerCodec() *TrailerCodec {
	return &TrailerCodec{}
}

// Encode builds the trailer for f, authenticating headerAndPayload with sessionKey.
func Encode(f Fields, sessionKey, headerAndPayload []byte) (Trailer, error) {
	return defaultCodec.Encode(f, sessionKey, headerAndPayload)
}

// Decode validates trailer against sessionKey and headerAndPayload and returns its fields.
func Decode(trailer, sessionKey, headerAndPayload []byte) (Fields, error) {
	return defaultCodec.Decode(trailer, sessionKey, headerAndPayload)
}

// Inspect runs the structural and checksum checks of Decode without the MAC
// check. The result is unauthenticated.
func Inspect(trailer []byte) (Fields, error) {
	return defaultCodec.Inspect(trailer)
}

// Encode builds the trailer for f.
func (c *TrailerCodec) Encode(f Fields, sessionKey, headerAndPayload []byte) (Trailer, error) {
	var t Trailer
	if f.Epoch < 0 || f.Epoch > MaxEpoch || f.RootID < 0 || f.RootID > MaxRootID {
		return t, fmt.Errorf("%w: epoch=%d root_id=%d", ErrRange, f.Epoch, f.RootID)
	}
	if c.StrictTips {
		for i, tip := range f.Tips {
			if tip < 0 || tip > MaxTipID {
				return t, fmt.Errorf("%w: tip[%d]=%d exceeds 12 bits", ErrRange, i, tip)
			}
		}
	}

	packed := packTips(f.Tips)
	t[offMagic] = Magic
	t[offEpoch] = byte(f.Epoch)
	t[offRootID] = byte(f.RootID >> 8)
	t[offRootID+1] = byte(f.RootID)
	t[offTips] = byte(packed >> 16)
	t[offTips+1] = byte(packed >> 8)
	t[offTips+2] = byte(packed)
	t[offMAC] = ComputeMAC8(sessionKey, headerAndPayload)
	t[offReserved] = 0
	t[offCRC] = ChecksumCRC8(t[:offCRC])

	return t, nil
}

// Decode validates trailer and returns its fields.
func (c *TrailerCodec) Decode(trailer, sessionKey, headerAndPayload []byte) (Fields, error) {
	f, err := c.Inspect(trailer)
	if err != nil {
		return Fields{}, err
	}

	want := ComputeMAC8(sessionKey, headerAndPayload)
	if !hmac.Equal(trailer[offMAC:offMAC+1], []byte{want}) {
		return Fields{}, fmt.Errorf("%w: MAC mismatch", ErrAuthentication)
	}

	return f, nil
}

// Inspect checks length, magic and CRC and unpacks the fields.
func (c *TrailerCodec) Inspect(trailer []byte) (Fields, error) {
	if len(trailer) != Size {
		return Fields{}, fmt.Errorf("%w: wrong length %d, want %d", ErrFormat, len(trailer), Size)
	}
	if trailer[offMagic] != Magic {
		return Fields{}, fmt.Errorf("%w: bad magic 0x%02X", ErrFormat, trailer[offMagic])
	}
	if got := ChecksumCRC8(trailer[:offCRC]); got != trailer[offCRC] {
		return Fields{}, fmt.Errorf("%w: CRC mismatch: 0x%02X != 0x%02X", ErrIntegrity, trailer[offCRC], got)
	}

	packed := uint32(trailer[offTips])<<16 | uint32(trailer[offTips+1])<<8 | uint32(trailer[offTips+2])
	return Fields{
		Epoch:  int(trailer[offEpoch]),
		RootID: int(trailer[offRootID])<<8 | int(trailer[offRootID+1]),
		Tips:   unpackTips(packed),
	}, nil
}

// ComputeMAC8 returns the first byte of HMAC-SHA256(key, data).
func ComputeMAC8(key, data []byte) byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)[0]
}

func packTips(tips [2]int) uint32 {
	return uint32(tips[0]&MaxTipID)<<12 | uint32(tips[1]&MaxTipID)
}

func unpackTips(packed uint32) [2]int {
	return [2]int{int(packed >> 12 & MaxTipID), int(packed & MaxTipID)}
}
