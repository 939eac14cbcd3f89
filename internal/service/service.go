// Package service is the collaborator-facing core: it takes raw activity
// batches from the sync layer, and serves aggregates, comparisons,
// leaderboards and digests to the dashboard layer.
package service

import (
	"errors"
	"sync"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"fitdigest/internal/stats"
	"fitdigest/internal/store"
)

// ErrSyncInProgress is returned when an ingest for the same user is already
// running. The caller may retry; the in-flight ingest is unaffected.
var ErrSyncInProgress = errors.New("sync already in progress for this user")

const (
	cacheSizeBytes = 8 * 1024 * 1024
	cacheTTL       = 60 * time.Second

	// How long IngestBatch waits for the per-user lock before failing fast.
	lockWait = 100 * time.Millisecond
)

// Options tune a Service. Zero values fall back to sensible defaults.
type Options struct {
	GroupName string
	// Location for all period boundary math. Defaults to UTC.
	Location *time.Location
	// Trailing periods averaged by the rolling comparison. Defaults to 4.
	ComparisonWindow int
	// Activity types admitted by filtered views such as running distance.
	RunningTypes []string
}

// Service wires the store, extractor and stats layers together behind the
// operations the sync and dashboard collaborators call.
type Service struct {
	store *store.Store
	opts  Options
	cache *freecache.Cache

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New builds a Service over the given store.
func New(st *store.Store, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ComparisonWindow <= 0 {
		opts.ComparisonWindow = 4
	}
	if opts.GroupName == "" {
		opts.GroupName = "Fitness Group"
	}
	return &Service{
		store: st,
		opts:  opts,
		cache: freecache.NewCache(cacheSizeBytes),
		locks: make(map[string]chan struct{}),
	}
}

// RunningFilter returns the type filter for running-style views.
func (s *Service) RunningFilter() stats.TypeFilter {
	return stats.NewTypeFilter(s.opts.RunningTypes)
}

// acquireUser takes the per-user ingest lock, waiting at most lockWait.
// The returned release must be called exactly once.
func (s *Service) acquireUser(userID string) (release func(), err error) {
	s.mu.Lock()
	ch, ok := s.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[userID] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-time.After(lockWait):
		log.WithField("user", userID).Warn("concurrent ingest rejected")
		return nil, ErrSyncInProgress
	}
}
