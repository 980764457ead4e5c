package beacon

import (
	"time"

	"github.com/ssargent/primefusion/pkg/frame"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// Opened is a verified beacon.
type Opened struct {
	Header    map[string]any `json:"header"`
	HeaderRaw []byte         `json:"-"`
	Payload   []byte         `json:"payload"`
	Fields    fusion.Fields  `json:"fields"`
}

// Open parses a framed beacon and verifies its trailer with key.
func Open(raw, key []byte) (*Opened, error) {
	f, err := decodeSigned(raw)
	if err != nil {
		return nil, err
	}
	return verify(f, key)
}

// OpenWith is Open with the key looked up in src by the trailer epoch.
func OpenWith(raw []byte, src sessionkey.Source, now time.Time) (*Opened, error) {
	f, err := decodeSigned(raw)
	if err != nil {
		return nil, err
	}
	// Unauthenticated peek; Decode below re-checks everything with the key.
	fields, err := fusion.Inspect(f.Trailer[:])
	if err != nil {
		return nil, err
	}
	key, err := src.DecodeKey(now, fields.Epoch)
	if err != nil {
		return nil, err
	}
	return verify(f, key)
}

func decodeSigned(raw []byte) (frame.Frame, error) {
	f, err := frame.Decode(raw)
	if err != nil {
		return frame.Frame{}, err
	}
	if f.Trailer == nil {
		return frame.Frame{}, frame.ErrMissingTrailer
	}
	return f, nil
}

func verify(f frame.Frame, key []byte) (*Opened, error) {
	fields, err := fusion.Decode(f.Trailer[:], key, f.Authenticated())
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeader(f.Header)
	if err != nil {
		return nil, err
	}
	return &Opened{
		Header:    header,
		HeaderRaw: f.Header,
		Payload:   f.Payload,
		Fields:    fields,
	}, nil
}
