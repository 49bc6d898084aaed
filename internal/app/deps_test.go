package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialconnect/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ProfileCacheTTL: time.Minute,
		AuthRateLimit:   5,
		Game:            config.GameConfig{PushRate: 10},
		Archive:         config.ArchiveConfig{Retention: 24 * time.Hour, Interval: time.Hour, Workers: 1, QueueSize: 4},
		ObjectStore:     config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}()

	if deps.Accounts == nil || deps.Sessions == nil {
		t.Fatal("expected account and session services to be configured")
	}
	if deps.Pairing == nil || deps.Requests == nil || deps.Chat == nil {
		t.Fatal("expected social services to be configured")
	}
	if deps.Games == nil {
		t.Fatal("expected game lobby to be configured")
	}
	if deps.AuthLimiter == nil || deps.PushLimiter == nil {
		t.Fatal("expected rate limiters to be configured")
	}
}

func TestBuildDependenciesWithoutArchive(t *testing.T) {
	cfg := config.Config{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, Game: config.GameConfig{PushRate: 10}}

	_, cleanup, err := buildDependencies(context.Background(), fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
