package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"gymdir/internal/adapters/observability"
	redisad "gymdir/internal/adapters/redis"
	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/shared"
)

// opener builds the engine the commands run against and a closer for it.
type opener func(ctx context.Context) (*app.Engine, func(), error)

type commandContext struct {
	open opener

	once    sync.Once
	engine  *app.Engine
	closeFn func()
	err     error
}

func newCommandContext(open opener) *commandContext {
	return &commandContext{open: open}
}

func (c *commandContext) ensureEngine(ctx context.Context) (*app.Engine, error) {
	c.once.Do(func() {
		c.engine, c.closeFn, c.err = c.open(ctx)
	})
	return c.engine, c.err
}

func (c *commandContext) close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// openEngine wires the same stack the API runs, minus HTTP.
func openEngine(ctx context.Context) (*app.Engine, func(), error) {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "catalogctl")

	store, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{closeStore}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		closers = append(closers, rc.Close)
		cache = rc
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	return app.NewEngine(store, store, cache, cfg.Policy, cfg.CacheTTL), closeAll, nil
}
