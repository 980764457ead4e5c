// Package store keeps a local journal of framed beacons in pebble, keyed by
// time-ordered KSUIDs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/primefusion/pkg/frame"
)

var (
	ErrNotFound      = errors.New("store: beacon not found")
	ErrInvalidID     = errors.New("store: invalid beacon id")
	ErrInvalidBeacon = errors.New("store: invalid beacon frame")
	ErrClosed        = errors.New("store: journal closed")
)

var beaconPrefix = []byte("b/")

// Journal is safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	db     *pebble.DB
	lastID ksuid.KSUID
}

// Open opens or creates a journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// ParseID parses the string form of a beacon ID.
func ParseID(s string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(s)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// Put stores one framed beacon and returns its ID.
func (j *Journal) Put(raw []byte) (ksuid.KSUID, error) {
	ids, err := j.putBatch([][]byte{raw})
	if err != nil {
		return ksuid.Nil, err
	}
	return ids[0], nil
}

// Submit stores a batch atomically; it lets a Journal act as a beacon sink.
func (j *Journal) Submit(ctx context.Context, beacons [][]byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := j.putBatch(beacons)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out, nil
}

func (j *Journal) putBatch(beacons [][]byte) ([]ksuid.KSUID, error) {
	for i, raw := range beacons {
		if _, err := frame.Decode(raw); err != nil {
			return nil, fmt.Errorf("%w: beacon %d: %v", ErrInvalidBeacon, i, err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}

	batch := j.db.NewBatch()
	defer batch.Close()

	ids := make([]ksuid.KSUID, len(beacons))
	for i, raw := range beacons {
		ids[i] = j.nextID()
		if err := batch.Set(beaconKey(ids[i]), raw, nil); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return nil, fmt.Errorf("failed to commit beacons: %w", err)
	}
	return ids, nil
}

// nextID keeps IDs strictly increasing within the process. Callers hold mu.
func (j *Journal) nextID() ksuid.KSUID {
	id := ksuid.New()
	if ksuid.Compare(id, j.lastID) <= 0 {
		id = j.lastID.Next()
	}
	j.lastID = id
	return id
}

// Get returns a copy of the beacon stored under id.
func (j *Journal) Get(id ksuid.KSUID) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}

	data, closer, err := j.db.Get(beaconKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the beacon stored under id.
func (j *Journal) Delete(id ksuid.KSUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return ErrClosed
	}

	key := beaconKey(id)
	_, closer, err := j.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	closer.Close()

	return j.db.Delete(key, pebble.NoSync)
}

// List returns up to limit IDs, oldest first. A limit <= 0 lists everything.
func (j *Journal) List(limit int) ([]ksuid.KSUID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}

	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: beaconPrefix,
		UpperBound: prefixEnd(beaconPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []ksuid.KSUID
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(beaconPrefix):])
		if err != nil {
			return nil, fmt.Errorf("corrupt journal key %x: %w", iter.Key(), err)
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, iter.Error()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func beaconKey(id ksuid.KSUID) []byte {
	key := make([]byte, 0, len(beaconPrefix)+len(ksuid.Nil))
	key = append(key, beaconPrefix...)
	return append(key, id.Bytes()...)
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}
