package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"fitdigest/internal/digest"
	"fitdigest/internal/observability"
	"fitdigest/internal/stats"
	"fitdigest/internal/store"
)

// ComparisonKind selects the baseline a comparison is made against.
type ComparisonKind string

const (
	// ComparePrevious compares against the immediately preceding period.
	ComparePrevious ComparisonKind = "previous"
	// CompareRolling compares against the trailing-window average.
	CompareRolling ComparisonKind = "rolling"
	// CompareYearToDate compares against the per-period average since Jan 1.
	CompareYearToDate ComparisonKind = "ytd"
)

// ParseComparisonKind converts a user-supplied string into a ComparisonKind.
// The empty string maps to the default, previous period.
func ParseComparisonKind(s string) (ComparisonKind, error) {
	switch ComparisonKind(s) {
	case "":
		return ComparePrevious, nil
	case ComparePrevious, CompareRolling, CompareYearToDate:
		return ComparisonKind(s), nil
	}
	return "", fmt.Errorf("unknown comparison kind %q (want previous, rolling or ytd)", s)
}

// PeriodStats computes each user's aggregate for the period containing
// instant. Users with no stored activities get all-zero totals, never an
// error, so dashboards and leaderboards keep stable membership.
func (s *Service) PeriodStats(ctx context.Context, userIDs []string, kind stats.PeriodKind, instant time.Time) (map[string]stats.AggregateStats, error) {
	period := stats.PeriodOf(kind, instant, s.opts.Location)

	out := make(map[string]stats.AggregateStats, len(userIDs))
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		agg, err := s.periodStats(userID, period)
		if err != nil {
			return nil, err
		}
		out[userID] = agg
	}
	return out, nil
}

// periodStats aggregates one user's period, going through the cache.
func (s *Service) periodStats(userID string, period stats.Period) (stats.AggregateStats, error) {
	key := cacheKey(userID, period)
	if raw, err := s.cache.Get(key); err == nil {
		var cached stats.AggregateStats
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// A stale or unreadable entry just falls through to recompute.
	}

	activities, err := s.store.ListActivities(userID, period.Start, period.End)
	if err != nil {
		return stats.AggregateStats{}, fmt.Errorf("listing activities for %s: %w", userID, err)
	}
	agg := stats.Aggregate(period, activities, nil)

	if raw, err := json.Marshal(agg); err == nil {
		if err := s.cache.Set(key, raw, int(cacheTTL.Seconds())); err != nil {
			log.WithError(err).Debug("caching period stats failed")
		}
	}
	return agg, nil
}

func cacheKey(userID string, period stats.Period) []byte {
	return []byte(fmt.Sprintf("stats:%s:%s:%d", userID, period.Kind, period.Start.Unix()))
}

// FilteredPeriodStats is PeriodStats restricted to a set of activity types,
// for views like running distance. Filtered aggregates bypass the cache.
func (s *Service) FilteredPeriodStats(ctx context.Context, userIDs []string, kind stats.PeriodKind, instant time.Time, filter stats.TypeFilter) (map[string]stats.AggregateStats, error) {
	period := stats.PeriodOf(kind, instant, s.opts.Location)

	out := make(map[string]stats.AggregateStats, len(userIDs))
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		activities, err := s.store.ListActivities(userID, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("listing activities for %s: %w", userID, err)
		}
		out[userID] = stats.Aggregate(period, activities, filter)
	}
	return out, nil
}

// Compare computes userID's target period against the chosen baseline.
// A missing baseline (no prior data) is reported via HasBaseline, not an
// error.
func (s *Service) Compare(ctx context.Context, userID string, kind stats.PeriodKind, instant time.Time, comparison ComparisonKind) (stats.ComparisonResult, error) {
	period := stats.PeriodOf(kind, instant, s.opts.Location)

	target, err := s.periodStats(userID, period)
	if err != nil {
		return stats.ComparisonResult{}, err
	}

	baseline, ok, err := s.baseline(ctx, userID, period, comparison)
	if err != nil {
		return stats.ComparisonResult{}, err
	}
	return stats.Compare(target.Totals, baseline, ok), nil
}

func (s *Service) baseline(ctx context.Context, userID string, period stats.Period, comparison ComparisonKind) (stats.Baseline, bool, error) {
	switch comparison {
	case ComparePrevious:
		history, err := s.trailingTotals(ctx, userID, period, 1)
		if err != nil {
			return stats.Baseline{}, false, err
		}
		b, ok := stats.RollingBaseline(history)
		return b, ok, nil

	case CompareRolling:
		history, err := s.trailingTotals(ctx, userID, period, s.opts.ComparisonWindow)
		if err != nil {
			return stats.Baseline{}, false, err
		}
		b, ok := stats.RollingBaseline(history)
		return b, ok, nil

	case CompareYearToDate:
		elapsed := stats.YTDElapsedPeriods(period)
		if elapsed == 0 {
			return stats.Baseline{}, false, nil
		}
		jan1 := time.Date(period.Start.Year(), 1, 1, 0, 0, 0, 0, s.opts.Location)
		activities, err := s.store.ListActivities(userID, jan1, period.Start)
		if err != nil {
			return stats.Baseline{}, false, fmt.Errorf("listing year-to-date activities: %w", err)
		}
		var ytd stats.Totals
		for _, a := range activities {
			ytd.Add(a)
		}
		b, ok := stats.YTDBaseline(ytd, elapsed)
		return b, ok, nil

	default:
		return stats.Baseline{}, false, fmt.Errorf("unknown comparison kind %q", comparison)
	}
}

// trailingTotals aggregates the n periods immediately before target, oldest
// first.
func (s *Service) trailingTotals(ctx context.Context, userID string, target stats.Period, n int) ([]stats.Totals, error) {
	history := make([]stats.Totals, 0, n)
	for i := n; i >= 1; i-- {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		agg, err := s.periodStats(userID, target.Previous(i))
		if err != nil {
			return nil, err
		}
		history = append(history, agg.Totals)
	}
	return history, nil
}

// Leaderboard ranks the given users for the period containing instant.
// Unknown users appear with zero totals and their ID as display name.
func (s *Service) Leaderboard(ctx context.Context, userIDs []string, kind stats.PeriodKind, instant time.Time, metric stats.Metric) ([]stats.LeaderboardEntry, error) {
	perUser, err := s.PeriodStats(ctx, userIDs, kind, instant)
	if err != nil {
		return nil, err
	}

	entries := make([]stats.LeaderboardEntry, 0, len(userIDs))
	for _, userID := range userIDs {
		entries = append(entries, stats.LeaderboardEntry{
			UserID:      userID,
			DisplayName: s.displayName(userID),
			Totals:      perUser[userID].Totals,
		})
	}
	return stats.RankBy(entries, metric), nil
}

// RenderDigest builds the weekly digest for the given group members around
// the week containing instant.
func (s *Service) RenderDigest(ctx context.Context, userIDs []string, instant time.Time) (digest.Digest, error) {
	period := stats.PeriodOf(stats.Week, instant, s.opts.Location)

	members := make([]digest.Member, 0, len(userIDs))
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return digest.Digest{}, ctx.Err()
		default:
		}

		agg, err := s.periodStats(userID, period)
		if err != nil {
			return digest.Digest{}, err
		}
		prev, err := s.periodStats(userID, period.Previous(1))
		if err != nil {
			return digest.Digest{}, err
		}

		comparison, err := s.Compare(ctx, userID, stats.Week, instant, ComparePrevious)
		if err != nil {
			return digest.Digest{}, err
		}

		members = append(members, digest.Member{
			UserID:             userID,
			DisplayName:        s.displayName(userID),
			Stats:              agg,
			PreviousActivities: prev.Totals.Activities,
			Comparison:         &comparison,
		})
	}

	d := digest.New(digest.Input{
		GroupName: s.opts.GroupName,
		Period:    period,
		Members:   members,
	})

	observability.RecordDigestRendered()
	log.WithFields(log.Fields{
		"digest":  d.ID,
		"members": len(members),
		"week":    period.Label(),
	}).Info("rendered digest")

	return d, nil
}

// Users lists all active users.
func (s *Service) Users() ([]store.User, error) {
	return s.store.ListUsers()
}

func (s *Service) displayName(userID string) string {
	u, err := s.store.GetUser(userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.WithError(err).WithField("user", userID).Warn("looking up display name")
		}
		return userID
	}
	return u.DisplayName
}
