package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/socialconnect/backend/internal/accounts"
	"github.com/socialconnect/backend/internal/archive"
	"github.com/socialconnect/backend/internal/auth"
	"github.com/socialconnect/backend/internal/chat"
	"github.com/socialconnect/backend/internal/config"
	"github.com/socialconnect/backend/internal/db"
	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/game"
	"github.com/socialconnect/backend/internal/handlers"
	"github.com/socialconnect/backend/internal/middleware"
	"github.com/socialconnect/backend/internal/pairing"
	"github.com/socialconnect/backend/internal/profiles"
	"github.com/socialconnect/backend/internal/repositories"
	"github.com/socialconnect/backend/internal/requests"
	"github.com/socialconnect/backend/internal/storage"
)

const limiterTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup stops background work and must be called once.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	logger := slog.Default()

	docs := docstore.NewPostgresStore(pool, docstore.PostgresOptions{Notify: cfg.DocstoreNotify, Logger: logger})
	closers := []func(context.Context) error{func(context.Context) error { return docs.Close() }}
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	users := repositories.NewDocUserRepository(docs)
	pairs := repositories.NewDocPairRepository(docs)
	games := repositories.NewDocGameRepository(docs)

	pairingOpts := []pairing.Option{pairing.WithGameSessions(games)}
	var sweeper *archive.Sweeper
	if cfg.Archive.Retention > 0 {
		objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure archive storage: %w", err)
		}

		archiver := archive.NewArchiver(objects, games, archive.WorkerConfig{
			QueueSize: cfg.Archive.QueueSize,
			Workers:   cfg.Archive.Workers,
		}, logger)
		closers = append(closers, archiver.Shutdown)
		pairingOpts = append(pairingOpts, pairing.WithArchive(archiver))
		sweeper = archive.NewSweeper(pairs, games, archiver, cfg.Archive.Retention, nil, logger)
	}

	profileCache := profiles.NewCache(users, cfg.ProfileCacheTTL, nil)
	accountService := accounts.NewService(users, accounts.WithChangeHook(profileCache.Invalidate))
	pairingService := pairing.NewService(users, pairs, nil, pairingOpts...)

	deps := handlers.Dependencies{
		Accounts: accountService,
		Sessions: auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewDocSessionStore(docs)),
		Pairing:  pairingService,
		Requests: requests.NewService(users, repositories.NewDocRequestRepository(docs), pairingService, profileCache, nil),
		Chat:     chat.NewService(repositories.NewDocMessageRepository(docs), pairingService, nil),
		Games: game.NewLobby(games, nil, game.LobbyOptions{
			ActiveWindow: cfg.Game.ActiveWindow,
			JoinTimeout:  cfg.Game.JoinTimeout,
		}),
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute, cfg.AuthRateLimit, limiterTTL),
		PushLimiter: middleware.NewKeyedRateLimiter(rate.Limit(cfg.Game.PushRate), int(math.Ceil(cfg.Game.PushRate)), limiterTTL, nil),
	}

	if sweeper == nil {
		return deps, cleanup, nil
	}
	if err := sweeper.Start(cfg.Archive.Interval); err != nil {
		_ = cleanup(ctx)
		return handlers.Dependencies{}, nil, err
	}
	closers = append(closers, func(context.Context) error { return sweeper.Stop() })

	return deps, cleanup, nil
}
