package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guessr-client/internal/client"
	"guessr-client/internal/config"
	"guessr-client/internal/game"
	"guessr-client/internal/history"
	"guessr-client/internal/lobby"
	"guessr-client/internal/mockserver"
	"guessr-client/internal/protocol"
	"guessr-client/internal/session"
)

type options struct {
	list     bool
	create   bool
	public   bool
	join     string
	autoplay bool
	mock     bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.list, "list", false, "print public lobbies and exit")
	flag.BoolVar(&opts.create, "create", false, "create a new game")
	flag.BoolVar(&opts.public, "public", false, "make the created game public")
	flag.StringVar(&opts.join, "join", "", "join the game with this id")
	flag.BoolVar(&opts.autoplay, "autoplay", false, "ready up, guess and advance automatically")
	flag.BoolVar(&opts.mock, "mock", false, "run against an in-process mock server")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) (err error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.mock {
		addr, shutdown, err := startMockServer(cfg.RoundsPerMatch, log.Named("mock"))
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, shutdown()) }()
		cfg.Host = addr
		cfg.Dev = true
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.list {
		lobbies := lobby.NewClient(cfg.HTTPURL(), nil, log.Named("lobby")).List(ctx)
		for _, l := range lobbies {
			fmt.Printf("%s\t%d players\n", l.GameID, len(l.Players))
		}
		return nil
	}

	var store *history.Store
	if cfg.DatabaseURL != "" {
		store, err = history.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, cfg, session.Metadata{
		PlayerID:    cfg.PlayerID,
		AuthSession: cfg.AuthSession,
	}, client.WithLogger(log))
	cancel()
	if err != nil {
		return err
	}

	events, unsubscribe := c.Session().Subscribe(64)
	defer unsubscribe()

	switch {
	case opts.create || opts.mock && opts.join == "":
		visibility := protocol.VisibilityPrivate
		if opts.public {
			visibility = protocol.VisibilityPublic
		}
		err = c.CreateGame(ctx, demoPanoramas(cfg.RoundsPerMatch), visibility)
	case opts.join != "":
		err = c.JoinGame(ctx, opts.join)
	default:
		err = errors.New("nothing to do: pass -create, -join or -list")
	}
	if err != nil {
		return multierr.Append(err, c.Close())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return play(gctx, c, events, store, opts.autoplay, log)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-c.Done():
			return c.Err()
		}
	})

	err = g.Wait()
	if errors.Is(err, errGameOver) {
		err = nil
	}

	log.Info("Shutting down")
	leaveCtx, cancelLeave := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelLeave()
	if s := c.Session().State(); !s.Terminal() {
		// Best effort; the socket may already be gone.
		_ = c.LeaveGame(leaveCtx)
	}
	return multierr.Append(err, c.Close())
}

var errGameOver = errors.New("game over")

// play logs every session event and, with autoplay, drives the local player
// through the game.
func play(ctx context.Context, c *client.Client, events <-chan session.Event, store *history.Store, autoplay bool, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.Info("event",
				zap.Stringer("type", ev.Type),
				zap.String("state", string(ev.State)),
				zap.String("player_id", ev.PlayerID))

			switch ev.Type {
			case protocol.JoinedGame:
				log.Info("share this game id", zap.String("game_id", c.Session().Metadata().GameID))
				if autoplay {
					if err := c.ChangeReadyStatus(ctx, true); err != nil {
						return err
					}
				}
			case protocol.NextRound:
				if autoplay {
					guess := game.Point{X: rand.Float64() * 1000, Y: rand.Float64() * 1000}
					if err := c.GuessLocation(ctx, guess); err != nil {
						return err
					}
				}
			case protocol.RoundEnded:
				snap := c.Session().Snapshot()
				if me, ok := snap.Players[snap.Metadata.PlayerID]; ok {
					log.Info("round result", zap.Float64("score", me.Rounds[snap.RoundIndex].Score))
				}
				if autoplay {
					if err := c.NextRound(ctx); err != nil {
						return err
					}
				}
			case protocol.GameFinished:
				snap := c.Session().Snapshot()
				if store != nil {
					if err := store.SaveGame(ctx, snap.Metadata.GameID, snap.Final); err != nil {
						return err
					}
					totals, err := store.PlayerTotals(ctx, snap.Metadata.GameID)
					if err != nil {
						return err
					}
					for i, t := range totals {
						log.Info("standing", zap.Int("place", i+1), zap.String("player_id", t.PlayerID), zap.Float64("score", t.Score))
					}
				}
				return errGameOver
			case protocol.Aborted, protocol.Error:
				return fmt.Errorf("session ended (%s): %s", ev.State, ev.Reason)
			}
		}
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Dev {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func startMockServer(matchSize int, log *zap.Logger) (string, func() error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:     mockserver.New(matchSize, log).RegisterRoutes(),
		IdleTimeout: time.Minute,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("mock server stopped", zap.Error(err))
		}
	}()

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return ln.Addr().String(), shutdown, nil
}

func demoPanoramas(n int) []game.Location {
	panoramas := make([]game.Location, n)
	for i := range panoramas {
		panoramas[i] = game.Location{ID: i + 1, X: rand.Float64() * 1000, Y: 64, Z: rand.Float64() * 1000}
	}
	return panoramas
}
