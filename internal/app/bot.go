package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/socialconnect/backend/internal/bot"
	"github.com/socialconnect/backend/internal/config"
	"github.com/socialconnect/backend/internal/db"
	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/game"
	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/repositories"
)

// runBot plays one side of a pair's game headlessly until interrupted or the
// game ends.
func runBot(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("bot", flag.ContinueOnError)
	userID := flags.String("user", "", "user id the bot plays as")
	pairID := flags.String("pair", "", "pair whose game the bot joins")
	every := flags.Int("log-every", 60, "log one frame out of this many")
	rounds := flags.Int("rounds", 1, "games to play before exiting")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" || strings.TrimSpace(*pairID) == "" {
		return errors.New("bot requires --user and --pair")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	if !cfg.DocstoreNotify {
		logger.Warn("docstore notifications are disabled; the bot will not see the partner's updates from other processes")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger.With("pair_id", *pairID))
	ctx = logging.WithUserID(ctx, *userID)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	docs := docstore.NewPostgresStore(pool, docstore.PostgresOptions{Notify: cfg.DocstoreNotify, Logger: logger})
	defer docs.Close()

	pair, err := repositories.NewDocPairRepository(docs).Get(ctx, *pairID)
	if err != nil {
		return fmt.Errorf("load pair %s: %w", *pairID, err)
	}
	if !pair.Has(*userID) {
		return fmt.Errorf("user %s is not a member of pair %s", *userID, *pairID)
	}

	lobby := game.NewLobby(repositories.NewDocGameRepository(docs), nil, game.LobbyOptions{
		ActiveWindow: cfg.Game.ActiveWindow,
		JoinTimeout:  cfg.Game.JoinTimeout,
	})
	session := game.NewSession(game.Config{
		PairID:    pair.ID,
		UserID:    *userID,
		PartnerID: pair.Partner(*userID),
		Lobby:     lobby,
		Renderer:  &game.LogRenderer{Logger: logger, Every: *every},
	})

	logger.Info("bot joining game", "partner", pair.Partner(*userID))
	return bot.New(session, nil, bot.DefaultInterval).Rounds(*rounds).Run(ctx)
}
