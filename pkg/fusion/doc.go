// Package fusion implements the Prime-Fusion trailer codec.
//
// A trailer is a fixed 10-byte suffix that tags and authenticates a
// variable-length message. It is appended by the producer after the header
// and payload bytes and validated once by the consumer.
//
// # Trailer Format
//
// All multi-byte fields are big-endian:
//
//	[Magic(1)][Epoch(1)][RootID(2)][Tips(3)][MAC8(1)][Reserved(1)][CRC8(1)]
//
// Fields:
//   - Magic: always 0xCF
//   - Epoch: seconds modulo 256
//   - RootID: 16-bit short ID of the previous root
//   - Tips: two 12-bit tip IDs packed as (tip0<<12)|tip1
//   - MAC8: first byte of HMAC-SHA256(sessionKey, headerAndPayload)
//   - Reserved: written as zero, covered by the CRC, ignored on decode
//   - CRC8: CRC-8 (polynomial 0x1D, MSB first, init 0) over the first 9 bytes
//
// The MAC covers the header and payload the caller supplies, never the
// trailer itself. The codec does not frame the trailer inside a larger
// buffer; see package frame for that.
//
// # Usage
//
//	trailer, err := fusion.Encode(fusion.Fields{
//	    Epoch:  int(time.Now().Unix() % 256),
//	    RootID: 0xCAFE,
//	    Tips:   [2]int{0x123, 0x456},
//	}, sessionKey, headerAndPayload)
//	if err != nil {
//	    return err
//	}
//
//	fields, err := fusion.Decode(trailer.Bytes(), sessionKey, headerAndPayload)
//	if errors.Is(err, fusion.ErrAuthentication) {
//	    // wrong key, tampered header/payload
//	}
//
// # Error Handling
//
// Decode checks, in order: length and magic (ErrFormat), checksum
// (ErrIntegrity), then the MAC (ErrAuthentication). Structural failures are
// reported before any cryptographic work is done. Encode reports
// out-of-range epoch or root ID values with ErrRange.
//
// Tip IDs wider than 12 bits are masked by default, matching deployed
// producers. Use a TrailerCodec with StrictTips set to reject them instead.
//
// # Threat Model
//
// MAC8 is a single byte. A forger succeeds with probability 1/256 per
// attempt, so the tag is only a short-lived anti-tamper check for keys that
// rotate every epoch window (see package sessionkey). It is not a general
// purpose authentication guarantee.
//
// # Thread Safety
//
// The codec holds no mutable state. Encode, Decode and Inspect are safe for
// concurrent use.
package fusion
