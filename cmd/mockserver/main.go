package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"guessr-client/internal/config"
	"guessr-client/internal/mockserver"
)

const (
	idleTimeout   = 5 * time.Minute
	sweepInterval = 30 * time.Second
)

func gracefulShutdown(httpServer *http.Server, log *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("Shutdown signal received, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	done <- true
}

func sweepInactive(s *mockserver.Server, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		if n := s.CloseInactive(idleTimeout); n > 0 {
			log.Info("Closed inactive connections", zap.Int("count", n))
		}
	}
}

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port <= 0 {
		port = 8080
	}
	rounds := config.DefaultRoundsPerMatch
	if v, err := strconv.Atoi(os.Getenv("MP_ROUNDS_PER_MATCH")); err == nil && v > 0 {
		rounds = v
	}

	s := mockserver.New(rounds, log)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.RegisterRoutes(),
		IdleTimeout: time.Minute,
	}

	done := make(chan bool, 1)
	go gracefulShutdown(httpServer, log, done)
	go sweepInactive(s, log)

	log.Info("Mock server listening", zap.Int("port", port), zap.Int("rounds_per_match", rounds))
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Info("Graceful shutdown complete.")
}
