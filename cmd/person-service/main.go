package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"personsync/internal/person/consumer"
	"personsync/internal/person/handler"
	"personsync/internal/person/metrics"
	"personsync/internal/person/service"
	"personsync/internal/person/store"
	"personsync/internal/platform/bootstrap"
	"personsync/internal/platform/config"
	"personsync/internal/platform/logger"
)

// main wires the Person service: the system of record for persons. Every API
// mutation is published on the person topics; facts raised by the Address
// service are applied back onto the same projection.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "person-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv(config.ServicePerson)
	log := logger.New(cfg.Service, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	var persons *store.Store
	switch cfg.ReplicaBackend() {
	case config.StoragePostgres:
		persons = store.NewPostgres(deps.DB)
	case config.StorageRedis:
		persons = store.NewRedis(deps.RedisClient())
	default:
		persons = store.NewMemory()
	}

	m := metrics.New(deps.Registry)
	svc := service.New(persons, deps.Runner,
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithPublisher(deps.Publisher()),
		service.WithApplyAttempts(cfg.Replica.MaxApplyAttempts),
	)
	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is empty, admin routes reject every request")
	}

	router := chi.NewRouter()
	deps.MountOps(router)
	handler.New(svc, m, log, cfg.Server.AdminToken).Register(router)

	facts := consumer.New(svc, deps.PeerTopics(), cfg.Service, deps.Metrics, log)

	log.Info("starting person service",
		"addr", cfg.Server.Addr,
		"broker", cfg.Broker.Kind,
		"environment", cfg.Server.Environment,
	)
	return deps.Run(ctx, router, facts)
}
