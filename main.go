package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/razzie/razroom/internal/config"
	"github.com/razzie/razroom/pkg/authority"
	"github.com/razzie/razroom/pkg/history"
	"github.com/razzie/razroom/pkg/razroom"
	"github.com/razzie/razroom/pkg/store"
	"github.com/razzie/razroom/pkg/variants/cards"
	"github.com/razzie/razroom/pkg/variants/chess"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, cfg); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(log *zap.Logger, cfg config.Config) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store = store.NewMemory()
	opts := []razroom.Option{
		razroom.WithLogger(log.Named("engine")),
		razroom.WithKFactor(cfg.Rating.KFactor),
	}

	var auth *authority.Redis
	if len(cfg.Redis.URL) > 0 {
		rs, rerr := store.NewRedis(cfg.Redis.URL, cfg.Redis.Prefix)
		if rerr != nil {
			return fmt.Errorf("redis: %w", rerr)
		}
		defer func() {
			err = multierr.Append(err, rs.Close())
		}()
		st = rs
		auth = authority.NewRedis(rs.Client(), cfg.Redis.Prefix, log.Named("authority"))
		opts = append(opts, razroom.WithAuthority(auth))
	} else {
		log.Warn("REDIS_URL not set, rooms are kept in memory")
	}

	var recorder *history.Recorder
	if len(cfg.Postgres.DSN) > 0 {
		rec, herr := history.Open(cfg.Postgres.DSN)
		if herr != nil {
			return herr
		}
		defer func() {
			err = multierr.Append(err, rec.Close())
		}()
		opts = append(opts, razroom.WithRecorder(rec))
		recorder = rec
	}

	engine := razroom.New(st, opts...)
	engine.Register(chess.New())
	engine.Register(cards.New())

	hub := razroom.NewHub(engine,
		razroom.WithHubLogger(log.Named("hub")),
		razroom.WithKillTimeout(cfg.Server.KillTimeout),
		razroom.WithPingInterval(cfg.Server.PingInterval),
		razroom.WithDefaultRating(cfg.Rating.Default),
	)
	handler := razroom.NewServer(engine, hub, log.Named("http"))
	if recorder != nil {
		handler.Mount("/players", recorder.Routes(log.Named("history")))
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	if auth != nil {
		g.Go(func() error {
			return auth.Listen(ctx, engine.ApplyRatingUpdate)
		})
	}
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Strings("variants", engine.Variants()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
