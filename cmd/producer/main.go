package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salespipe/internal/api"
	"salespipe/internal/config"
	"salespipe/internal/metrics"
	"salespipe/internal/publish"
)

func main() {
	cfg := config.FromEnv()
	var httpAddr string
	flag.StringVar(&httpAddr, "http", ":8080", "http listen address")
	flag.StringVar(&cfg.Bootstrap, "bootstrap", cfg.Bootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.Topic, "topic", cfg.Topic, "sales events topic")
	flag.Parse()

	mreg := metrics.NewRegistry()

	pub, err := publish.NewKafkaPublisher(cfg.Bootstrap, cfg.Topic)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	server := &http.Server{
		Addr:    httpAddr,
		Handler: api.NewServer(pub, mreg).Routes(),
		// Write timeout must outlast the blocking publish wait.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Sales Producer API listening on %s topic=%s bootstrap=%s", httpAddr, cfg.Topic, cfg.Bootstrap)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Printf("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Printf("shutdown complete")
}
