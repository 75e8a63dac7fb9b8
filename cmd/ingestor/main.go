package main

import (
	"context"
	"errors"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"gymdir/internal/adapters/feed"
	"gymdir/internal/adapters/observability"
	redisad "gymdir/internal/adapters/redis"
	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "ingestor")
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	log.Info().
		Str("base", cfg.FeedBase).
		Int("workers", cfg.Workers).
		Int("page_size", cfg.FeedPage).
		Msg("ingestor starting")

	store, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer func() { _ = closeStore() }()

	client, err := feed.New(cfg.FeedBase, cfg.FeedKey, cfg.FeedRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feed client")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer func() { _ = rc.Close() }()
		cache = rc
	}
	eng := app.NewEngine(store, store, cache, cfg.Policy, cfg.CacheTTL)
	ing := app.NewIngestionService(client, store, cfg.FeedPage)

	created, err := ingestAll(ctx, ing, cfg.Workers)
	if err != nil {
		log.Error().Err(err).Int("created", len(created)).Msg("ingestion stopped early")
	}
	if len(created) == 0 {
		log.Info().Msg("no new candidates")
		return
	}

	// 2) triage what was just stored so reviewers see duplicates flagged.
	// Workers finish out of order; sorted ids and one classifier keep the
	// oldest candidate of a duplicate group new.
	slices.Sort(created)
	res, err := eng.Commands.ClassifyIDs(ctx, created, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("classification failed")
	}
	log.Info().
		Int("created", len(created)).
		Int("reviewing", len(res.Reviewing)).
		Int("duplicate", len(res.Duplicate)).
		Msg("ingestion completed")
}

// ingestAll walks the feed until it runs out of cursors, ingesting every
// page with up to workers items in flight.
func ingestAll(ctx context.Context, ing *app.IngestionService, workers int) ([]int64, error) {
	sem := semaphore.NewWeighted(int64(workers))
	var (
		mu      sync.Mutex
		created []int64
		cursor  string
	)
	for {
		page, err := ing.FetchPage(ctx, cursor)
		if err != nil {
			return created, err
		}

		var wg sync.WaitGroup
		for i, raw := range page.Items {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return created, err
			}
			wg.Add(1)
			go func(i int, raw map[string]any) {
				defer wg.Done()
				defer sem.Release(1)

				c, ok, err := ing.Ingest(ctx, raw)
				switch {
				case errors.Is(err, domain.ErrInvalidPayload):
					log.Warn().Err(err).Str("cursor", cursor).Int("item", i).Msg("feed item skipped")
				case err != nil:
					log.Warn().Err(err).Str("cursor", cursor).Int("item", i).Msg("ingest failed")
				case ok:
					mu.Lock()
					created = append(created, c.ID)
					mu.Unlock()
				}
			}(i, raw)
		}
		wg.Wait()

		if page.NextCursor == "" {
			return created, nil
		}
		cursor = page.NextCursor
	}
}
