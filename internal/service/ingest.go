package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"fitdigest/internal/extract"
	"fitdigest/internal/observability"
	"fitdigest/internal/store"
)

// IngestResult summarizes one ingest or re-extraction pass.
type IngestResult struct {
	Received  int
	Stored    int
	Malformed int
	Errors    []error
}

// IngestBatch stores a batch of raw activity payloads for one user. The
// whole batch runs under a per-user lock: a second ingest for the same user
// fails fast with ErrSyncInProgress while other users proceed in parallel.
//
// Payloads with missing metric fields are stored with zero defaults;
// only payloads that cannot be parsed or carry no external ID are skipped.
func (s *Service) IngestBatch(ctx context.Context, userID string, payloads [][]byte) (*IngestResult, error) {
	release, err := s.acquireUser(userID)
	if err != nil {
		observability.RecordSyncConflict()
		return nil, err
	}
	defer release()

	if err := s.ensureUser(userID); err != nil {
		return nil, err
	}

	result := &IngestResult{Received: len(payloads)}

	for _, payload := range payloads {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		metrics, err := extract.Resolve(payload)
		if err != nil {
			observability.RecordMalformedPayload()
			result.Malformed++
			result.Errors = append(result.Errors, fmt.Errorf("parsing payload: %w", err))
			continue
		}
		if metrics.ExternalID == "" {
			// Without an external ID the upsert cannot be idempotent.
			observability.RecordMalformedPayload()
			result.Malformed++
			result.Errors = append(result.Errors, errors.New("payload has no external id"))
			continue
		}

		if err := s.store.UpsertActivity(activityFrom(userID, metrics, payload)); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing activity %s: %w", metrics.ExternalID, err))
			continue
		}
		result.Stored++
	}

	now := time.Now().UTC()
	if err := s.store.RecordSync(userID, now); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("recording sync: %w", err))
	}

	// Aggregates are derived state; anything cached is now stale.
	s.cache.Clear()

	observability.RecordActivitiesIngested(userID, result.Stored)
	observability.RecordIngestCompleted(now)

	log.WithFields(log.Fields{
		"user":      userID,
		"received":  result.Received,
		"stored":    result.Stored,
		"malformed": result.Malformed,
	}).Info("ingested activity batch")

	return result, nil
}

// ReextractAll re-runs the extractor over every stored raw payload and
// rewrites the normalized columns. Run it after changing field resolution
// rules; the raw blobs are the source of truth.
func (s *Service) ReextractAll(ctx context.Context) (*IngestResult, error) {
	activities, err := s.store.ListAllActivities()
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	result := &IngestResult{Received: len(activities)}

	for _, a := range activities {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		metrics, err := extract.Resolve(a.RawJSON)
		if err != nil {
			result.Malformed++
			result.Errors = append(result.Errors, fmt.Errorf("re-parsing %s/%s: %w", a.UserID, a.ExternalID, err))
			continue
		}

		updated := activityFrom(a.UserID, metrics, a.RawJSON)
		// The stored key wins: resolution changes must not re-key rows.
		updated.ExternalID = a.ExternalID
		if err := s.store.ReplaceMetrics(updated); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("rewriting %s/%s: %w", a.UserID, a.ExternalID, err))
			continue
		}
		result.Stored++
	}

	s.cache.Clear()

	log.WithFields(log.Fields{
		"activities": result.Received,
		"rewritten":  result.Stored,
	}).Info("re-extracted stored payloads")

	return result, nil
}

// ensureUser creates a minimal user record on first ingest so the activity
// foreign key holds. The dashboard layer can fill in the display name later.
func (s *Service) ensureUser(userID string) error {
	_, err := s.store.GetUser(userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return err
	}
	log.WithField("user", userID).Info("creating user on first ingest")
	return s.store.UpsertUser(&store.User{ID: userID, DisplayName: userID})
}

func activityFrom(userID string, m extract.Metrics, raw []byte) *store.Activity {
	return &store.Activity{
		UserID:         userID,
		ExternalID:     m.ExternalID,
		ActivityType:   m.ActivityType,
		StartTime:      m.StartTime,
		DurationS:      m.DurationS,
		DistanceM:      m.DistanceM,
		Calories:       m.Calories,
		Steps:          m.Steps,
		ElevationGainM: m.ElevationGainM,
		AvgHeartRate:   m.AvgHeartRate,
		MaxHeartRate:   m.MaxHeartRate,
		RawJSON:        raw,
	}
}
