package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ssargent/primefusion/pkg/beacon"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/logging"
	"github.com/ssargent/primefusion/pkg/sessionkey"
	"github.com/ssargent/primefusion/pkg/store"
)

var errNoKeySource = errors.New("no session key configured")

// Server holds the API server state
type Server struct {
	store   BeaconStore
	keys    sessionkey.Source
	codec   *fusion.TrailerCodec
	config  ServerConfig
	metrics *Metrics
	logger  *log.Logger
	now     func() time.Time
}

// NewServer creates a new API server. keys may be nil, in which case the
// signing and verifying endpoints answer 503.
func NewServer(store BeaconStore, keys sessionkey.Source, config ServerConfig, metrics *Metrics) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		store:   store,
		keys:    keys,
		codec:   &fusion.TrailerCodec{StrictTips: config.StrictTips},
		config:  config,
		metrics: metrics,
		logger:  log.StandardLogger(),
		now:     time.Now,
	}
}

// SetLogger replaces the logger used for request logging.
func (s *Server) SetLogger(logger *log.Logger) {
	s.logger = logger
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleEncodeTrailer(w http.ResponseWriter, r *http.Request) {
	var req EncodeTrailerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if s.keys == nil {
		sendError(w, errNoKeySource.Error(), http.StatusServiceUnavailable)
		return
	}

	now := s.now()
	var (
		epoch int
		key   []byte
		err   error
	)
	if req.Epoch != nil {
		epoch = *req.Epoch
		key, err = s.keys.DecodeKey(now, epoch)
	} else {
		epoch, key, err = s.keys.EncodeKey(now)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	trailer, err := s.codec.Encode(fusion.Fields{Epoch: epoch, RootID: req.RootID, Tips: req.Tips}, key, req.Data)
	s.metrics.RecordCodecOperation("encode", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sendSuccess(w, EncodeTrailerResponse{Trailer: trailer.String(), Epoch: epoch})
}

func (s *Server) handleVerifyTrailer(w http.ResponseWriter, r *http.Request) {
	var req VerifyTrailerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if s.keys == nil {
		sendError(w, errNoKeySource.Error(), http.StatusServiceUnavailable)
		return
	}

	raw, err := hex.DecodeString(req.Trailer)
	if err != nil {
		sendError(w, "trailer must be hex", http.StatusBadRequest)
		return
	}

	inspected, err := s.codec.Inspect(raw)
	if err != nil {
		s.metrics.RecordCodecOperation("decode", err)
		s.fail(w, r, err)
		return
	}
	key, err := s.keys.DecodeKey(s.now(), inspected.Epoch)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, err := s.codec.Decode(raw, key, req.Data)
	s.metrics.RecordCodecOperation("decode", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sendSuccess(w, newFieldsResponse(fields))
}

func (s *Server) handleCreateBeacon(w http.ResponseWriter, r *http.Request) {
	var req CreateBeaconRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if s.keys == nil {
		sendError(w, errNoKeySource.Error(), http.StatusServiceUnavailable)
		return
	}

	params, err := beacon.ParamsFromSource(s.keys, s.now(), req.RootID, req.Tips)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	built, err := (&beacon.Builder{
		Payload: req.Payload,
		Header:  req.Header,
		Tags:    req.Tags,
		Fusion:  params,
		Codec:   s.codec,
	}).Build()
	s.metrics.RecordCodecOperation("encode", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	start := time.Now()
	id, err := s.store.Put(built.Raw)
	s.metrics.RecordJournalOperation("put", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, _ := fusion.Inspect(built.Trailer[:])
	logging.GetLoggerFromContext(r.Context()).WithFields(log.Fields{
		"id":      id.String(),
		"root_id": fields.RootID,
		"epoch":   fields.Epoch,
	}).Debug("beacon stored")

	sendCreated(w, CreateBeaconResponse{
		ID:      id.String(),
		Raw:     built.Raw,
		Trailer: built.Trailer.String(),
		Fields:  newFieldsResponse(fields),
	})
}

func (s *Server) handleListBeacons(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	start := time.Now()
	ids, err := s.store.List(limit)
	s.metrics.RecordJournalOperation("list", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	sendSuccess(w, BeaconListResponse{IDs: out})
}

func (s *Server) handleGetBeacon(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.loadBeacon(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleVerifyBeacon(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		sendError(w, errNoKeySource.Error(), http.StatusServiceUnavailable)
		return
	}
	raw, ok := s.loadBeacon(w, r)
	if !ok {
		return
	}

	opened, err := beacon.OpenWith(raw, s.keys, s.now())
	s.metrics.RecordCodecOperation("decode", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sendSuccess(w, OpenedBeaconResponse{
		ID:      chi.URLParam(r, "id"),
		Header:  opened.Header,
		Payload: opened.Payload,
		Fields:  newFieldsResponse(opened.Fields),
	})
}

func (s *Server) loadBeacon(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	id, err := store.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	start := time.Now()
	raw, err := s.store.Get(id)
	s.metrics.RecordJournalOperation("get", err == nil, time.Since(start))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return raw, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	entry := logging.GetLoggerFromContext(r.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		sendError(w, "internal error", status)
		return
	}
	entry.Debug("request rejected")
	sendError(w, err.Error(), status)
}
