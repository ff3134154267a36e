package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/receiver"
)

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	configPath := flag.String("config", "", "path to a JSON configuration file")
	flag.Parse()

	log, err := logger.NewLogger(logger.LogConfig{Output: "stderr"})
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := receiver.NewHandler(receiver.PageCountExtractor{}, log)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           receiver.NewRouter(handler, cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Receiver listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed: %v", err)
	}
	log.Info("Receiver stopped")
}
