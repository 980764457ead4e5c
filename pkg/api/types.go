package api

import (
	"github.com/segmentio/ksuid"

	"github.com/ssargent/primefusion/pkg/fusion"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	// StrictTips rejects tip IDs wider than 12 bits instead of masking them.
	StrictTips bool
	// MaxBodyBytes caps request bodies; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes bounds request bodies, base64 payloads included.
const DefaultMaxBodyBytes = 16 << 20

// BeaconStore is the journal surface the API needs.
type BeaconStore interface {
	Put(raw []byte) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) ([]byte, error)
	List(limit int) ([]ksuid.KSUID, error)
}

// EncodeTrailerRequest asks for a trailer over Data. Without Epoch the
// current epoch and session key are used.
type EncodeTrailerRequest struct {
	Epoch  *int   `json:"epoch,omitempty"`
	RootID int    `json:"root_id"`
	Tips   [2]int `json:"tips"`
	Data   []byte `json:"data"`
}

type EncodeTrailerResponse struct {
	Trailer string `json:"trailer"`
	Epoch   int    `json:"epoch"`
}

// VerifyTrailerRequest carries a hex trailer and the bytes it covers.
type VerifyTrailerRequest struct {
	Trailer string `json:"trailer"`
	Data    []byte `json:"data"`
}

// FieldsResponse is the JSON form of decoded trailer fields.
type FieldsResponse struct {
	Epoch  int    `json:"epoch"`
	RootID int    `json:"root_id"`
	Tips   [2]int `json:"tips"`
}

func newFieldsResponse(f fusion.Fields) FieldsResponse {
	return FieldsResponse{Epoch: f.Epoch, RootID: f.RootID, Tips: f.Tips}
}

// CreateBeaconRequest builds, signs and journals a beacon.
type CreateBeaconRequest struct {
	Payload []byte         `json:"payload"`
	Header  map[string]any `json:"header,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	RootID  int            `json:"root_id"`
	Tips    [2]int         `json:"tips"`
}

type CreateBeaconResponse struct {
	ID      string         `json:"id"`
	Raw     []byte         `json:"raw"`
	Trailer string         `json:"trailer"`
	Fields  FieldsResponse `json:"fields"`
}

type BeaconListResponse struct {
	IDs []string `json:"ids"`
}

// OpenedBeaconResponse is a journaled beacon after trailer verification.
type OpenedBeaconResponse struct {
	ID      string         `json:"id"`
	Header  map[string]any `json:"header"`
	Payload []byte         `json:"payload"`
	Fields  FieldsResponse `json:"fields"`
}
