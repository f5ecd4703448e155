package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facefx/snapfilter"
	"github.com/facefx/snapfilter/config"
	"github.com/facefx/snapfilter/logger"
	"github.com/facefx/snapfilter/server"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading the configuration: %v", err)
	}

	log, err := logger.New(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		logrus.Fatalf("Error creating the logger: %v", err)
	}

	reg, err := cfg.Registry()
	if err != nil {
		log.WithError(err).Fatal("Error loading the assets")
	}
	det, err := snapfilter.NewPigoDetector(cfg.Cascade())
	if err != nil {
		log.WithError(err).Fatal("Error loading the face detector")
	}

	srv := server.New(
		&snapfilter.Processor{Detector: det, Assets: reg},
		log,
		server.WithBodyLimit(cfg.BodyLimit),
		server.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)

	go func() {
		if err := srv.Listen(cfg.Addr); err != nil {
			log.WithError(err).Fatal("Error starting the server")
		}
	}()
	log.WithFields(logger.Fields{
		"addr":   cfg.Addr,
		"env":    cfg.Environment,
		"assets": reg.Names(),
	}).Info("Server started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server...")
	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.WithError(err).Error("Error shutting down the server")
	}
}
