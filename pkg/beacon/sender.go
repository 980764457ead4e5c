package beacon

import (
	"context"
	"fmt"

	"github.com/ssargent/primefusion/pkg/logging"
)

// Sink accepts a batch of framed beacons and returns one ID per beacon.
type Sink interface {
	Submit(ctx context.Context, beacons [][]byte) ([]string, error)
}

// Sender submits batches to a Sink, optionally appending one freshly built
// beacon to each batch.
type Sender struct {
	sink Sink
}

func NewSender(sink Sink) *Sender {
	return &Sender{sink: sink}
}

// Send submits raws plus, when extra is non-nil, the beacon extra builds.
// The caller's slice is never modified.
func (s *Sender) Send(ctx context.Context, raws [][]byte, extra *Builder) ([]string, error) {
	batch := make([][]byte, len(raws), len(raws)+1)
	copy(batch, raws)

	if extra != nil {
		b, err := extra.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build beacon: %w", err)
		}
		batch = append(batch, b.Raw)
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.WithField("count", len(batch)).Debug("submitting beacons")

	ids, err := s.sink.Submit(ctx, batch)
	if err != nil {
		logger.WithError(err).Warn("beacon submit failed")
		return nil, fmt.Errorf("failed to submit beacons: %w", err)
	}
	return ids, nil
}
