// Package beacon assembles header, payload and Prime-Fusion trailer into a
// framed beacon and opens such beacons on the receiving side.
package beacon

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ssargent/primefusion/pkg/frame"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// headers are compact JSON with sorted keys so the MAC input is stable.
var headerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrMissingSessionKey = errors.New("beacon: fusion requested without a session key")
	ErrInvalidHeader     = errors.New("beacon: invalid header")
)

// FusionParams are the trailer inputs for one beacon.
type FusionParams struct {
	Epoch      int
	RootID     int
	Tips       [2]int
	SessionKey []byte
}

// ParamsFromSource fills the epoch and key for now from src.
func ParamsFromSource(src sessionkey.Source, now time.Time, rootID int, tips [2]int) (*FusionParams, error) {
	epoch, key, err := src.EncodeKey(now)
	if err != nil {
		return nil, err
	}
	return &FusionParams{Epoch: epoch, RootID: rootID, Tips: tips, SessionKey: key}, nil
}

// TagsKey is the header key Build stores Builder.Tags under. A header that
// already carries it cannot be combined with Builder.Tags.
const TagsKey = "tags"

// Builder describes one beacon. Without Fusion the beacon carries no trailer.
type Builder struct {
	Payload []byte
	Header  map[string]any
	// Tags are carried in the header, so the trailer authenticates them.
	Tags   []string
	Fusion *FusionParams
	// Codec overrides the trailer codec, e.g. to reject wide tip IDs.
	Codec *fusion.TrailerCodec
}

// Beacon is a built, framed beacon.
type Beacon struct {
	Raw     []byte
	Header  []byte
	Payload []byte
	Trailer *fusion.Trailer
}

// Build serializes the header, computes the trailer over header||payload
// and frames the result.
func (b *Builder) Build() (*Beacon, error) {
	h, err := b.header()
	if err != nil {
		return nil, err
	}
	header, err := EncodeHeader(h)
	if err != nil {
		return nil, err
	}

	f := frame.Frame{Header: header, Payload: b.Payload}

	if b.Fusion != nil {
		if len(b.Fusion.SessionKey) == 0 {
			return nil, ErrMissingSessionKey
		}
		codec := b.Codec
		if codec == nil {
			codec = fusion.NewTrailerCodec()
		}
		trailer, err := codec.Encode(fusion.Fields{
			Epoch:  b.Fusion.Epoch,
			RootID: b.Fusion.RootID,
			Tips:   b.Fusion.Tips,
		}, b.Fusion.SessionKey, f.Authenticated())
		if err != nil {
			return nil, fmt.Errorf("failed to encode trailer: %w", err)
		}
		f.Trailer = &trailer
	}

	raw, err := frame.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to frame beacon: %w", err)
	}

	return &Beacon{Raw: raw, Header: f.Header, Payload: f.Payload, Trailer: f.Trailer}, nil
}

func (b *Builder) header() (map[string]any, error) {
	if len(b.Tags) == 0 {
		return b.Header, nil
	}
	if _, ok := b.Header[TagsKey]; ok {
		return nil, fmt.Errorf("%w: header already has %q and Tags is set", ErrInvalidHeader, TagsKey)
	}
	h := make(map[string]any, len(b.Header)+1)
	for k, v := range b.Header {
		h[k] = v
	}
	h[TagsKey] = b.Tags
	return h, nil
}

// EncodeHeader returns the compact JSON form of h, or nil for an empty header.
func EncodeHeader(h map[string]any) ([]byte, error) {
	if len(h) == 0 {
		return nil, nil
	}
	out, err := headerJSON.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return out, nil
}

// DecodeHeader parses a header produced by EncodeHeader.
func DecodeHeader(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var h map[string]any
	if err := headerJSON.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return h, nil
}
