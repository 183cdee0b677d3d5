package tracking

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/unklstewy/skytrail/pkg/adsb"
)

// DroppedRecord describes a raw sample excluded from a snapshot.
type DroppedRecord struct {
	ID  string
	Err error
}

// Snapshot is the complete, immutable entity set produced by one refresh.
// Consumers must not modify it after publication.
type Snapshot struct {
	// Generation increases by one per published snapshot (0 before Publish)
	Generation uint64

	// FetchedAt is when the raw samples were received
	FetchedAt time.Time

	// Period is the interpolation interval the predictions were built for
	Period time.Duration

	// Entities sorted by ID, one per ID
	Entities []TrackedEntity

	// Dropped lists malformed and duplicate records in input order
	Dropped []DroppedRecord
}

// Len returns the number of tracked entities.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entities)
}

// BuildSnapshot converts a raw sample set into tracked entities. Malformed
// records are dropped and reported; for duplicate IDs the first record wins.
func BuildSnapshot(records []adsb.Aircraft, period time.Duration, rot RotationConvention, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		FetchedAt: fetchedAt,
		Period:    period,
		Entities:  make([]TrackedEntity, 0, len(records)),
	}

	seen := make(map[string]struct{}, len(records))
	for _, ac := range records {
		entity, err := NewTrackedEntity(ac, period, rot)
		if err != nil {
			snap.Dropped = append(snap.Dropped, DroppedRecord{ID: ac.ID(), Err: err})
			continue
		}
		if _, dup := seen[entity.ID]; dup {
			snap.Dropped = append(snap.Dropped, DroppedRecord{ID: entity.ID, Err: ErrDuplicateRecord})
			continue
		}
		seen[entity.ID] = struct{}{}
		snap.Entities = append(snap.Entities, entity)
	}

	sort.Slice(snap.Entities, func(i, j int) bool {
		return snap.Entities[i].ID < snap.Entities[j].ID
	})

	return snap
}

// Store holds the most recently published snapshot and assigns generations.
// Publish replaces the whole set with a single pointer swap, so readers see
// either the old or the new snapshot and never a mix. The refresh
// coordinator is the only writer; it hands the loaded snapshot to the
// animation driver, which keeps it together with its epoch until the next
// publish.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish stamps snap with the next generation and makes it current.
// It returns the assigned generation.
func (s *Store) Publish(snap *Snapshot) uint64 {
	snap.Generation = s.generation.Add(1)
	s.current.Store(snap)
	return snap.Generation
}

// Load returns the current snapshot, or nil if nothing was published yet.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}
