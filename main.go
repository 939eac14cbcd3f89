package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"fitdigest/internal/config"
	"fitdigest/internal/service"
	"fitdigest/internal/stats"
	"fitdigest/internal/store"
)

const usage = `usage: fitdigest <command> [arguments]

Commands:
  ingest <user-id> <batch.json>   store a JSON array of raw activity payloads
  digest [RFC3339 instant]        render the weekly digest for all users
  stats <kind> [RFC3339 instant]  per-user totals for week, month or year
  board <kind> [metric]           leaderboard (activities, distance, steps, equivalent)
  users                           list known users
  reextract                       re-run metric extraction over stored payloads
`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	if level, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Open database
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	svc := service.New(st, service.Options{
		GroupName:        cfg.Group.Name,
		Location:         cfg.Location(),
		ComparisonWindow: cfg.Group.ComparisonWindow,
		RunningTypes:     cfg.Group.RunningTypes,
	})

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "ingest":
		return runIngest(ctx, svc, args[1:])
	case "digest":
		return runDigest(ctx, svc, st, args[1:])
	case "stats":
		return runStats(ctx, svc, st, args[1:])
	case "board":
		return runBoard(ctx, svc, st, args[1:])
	case "users":
		return runUsers(svc)
	case "reextract":
		return runReextract(ctx, svc)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics listener stopped")
	}
}

func runIngest(ctx context.Context, svc *service.Service, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: fitdigest ingest <user-id> <batch.json>")
	}
	userID, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return fmt.Errorf("batch file must hold a JSON array of payloads: %w", err)
	}

	batch := make([][]byte, len(payloads))
	for i, p := range payloads {
		batch[i] = []byte(p)
	}

	result, err := svc.IngestBatch(ctx, userID, batch)
	if errors.Is(err, service.ErrSyncInProgress) {
		fmt.Println("A sync for this user is already running; try again shortly.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Stored %d of %d activities (%d malformed).\n", result.Stored, result.Received, result.Malformed)
	for _, e := range result.Errors {
		fmt.Printf("  warning: %v\n", e)
	}
	return nil
}

func runDigest(ctx context.Context, svc *service.Service, st *store.Store, args []string) error {
	instant, err := parseInstant(args, 0)
	if err != nil {
		return err
	}

	userIDs, err := activeUserIDs(st)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		fmt.Println("No users yet. Ingest an activity batch first.")
		return nil
	}

	d, err := svc.RenderDigest(ctx, userIDs, instant)
	if err != nil {
		return err
	}
	fmt.Print(d.Text)
	return nil
}

func runStats(ctx context.Context, svc *service.Service, st *store.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: fitdigest stats <week|month|year> [RFC3339 instant]")
	}
	kind, err := stats.ParsePeriodKind(args[0])
	if err != nil {
		return err
	}
	instant, err := parseInstant(args, 1)
	if err != nil {
		return err
	}

	userIDs, err := activeUserIDs(st)
	if err != nil {
		return err
	}

	perUser, err := svc.PeriodStats(ctx, userIDs, kind, instant)
	if err != nil {
		return err
	}
	running, err := svc.FilteredPeriodStats(ctx, userIDs, kind, instant, svc.RunningFilter())
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		t := perUser[userID].Totals
		fmt.Printf("%s: %d activities, %.1f km (%.1f km equivalent), %.1f km running, %d steps\n",
			userID, t.Activities, t.DistanceM/1000, t.EquivalentKm,
			running[userID].Totals.DistanceM/1000, t.Steps)
	}
	return nil
}

func runBoard(ctx context.Context, svc *service.Service, st *store.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: fitdigest board <week|month|year> [metric]")
	}
	kind, err := stats.ParsePeriodKind(args[0])
	if err != nil {
		return err
	}
	metricArg := ""
	if len(args) > 1 {
		metricArg = args[1]
	}
	metric, err := stats.ParseMetric(metricArg)
	if err != nil {
		return err
	}

	userIDs, err := activeUserIDs(st)
	if err != nil {
		return err
	}

	entries, err := svc.Leaderboard(ctx, userIDs, kind, time.Now(), metric)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%2d. %s  %d activities, %.1f km, %d steps\n",
			e.Rank, e.DisplayName, e.Totals.Activities, e.Totals.DistanceM/1000, e.Totals.Steps)
	}
	return nil
}

func runUsers(svc *service.Service) error {
	users, err := svc.Users()
	if err != nil {
		return err
	}
	for _, u := range users {
		line := fmt.Sprintf("%s (%s)", u.DisplayName, u.ID)
		if u.LastSyncedAt != nil {
			line += fmt.Sprintf(", last sync %s", u.LastSyncedAt.Format(time.RFC3339))
		}
		fmt.Println(line)
	}
	return nil
}

func runReextract(ctx context.Context, svc *service.Service) error {
	result, err := svc.ReextractAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Rewrote %d of %d activities.\n", result.Stored, result.Received)
	return nil
}

func parseInstant(args []string, idx int) (time.Time, error) {
	if len(args) <= idx {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, args[idx])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing instant %q: %w", args[idx], err)
	}
	return t, nil
}

func activeUserIDs(st *store.Store) ([]string, error) {
	users, err := st.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
