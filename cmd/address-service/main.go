package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"personsync/internal/address/consumer"
	"personsync/internal/address/handler"
	"personsync/internal/address/metrics"
	"personsync/internal/address/service"
	addressstore "personsync/internal/address/store/address"
	"personsync/internal/address/store/replica"
	"personsync/internal/platform/bootstrap"
	"personsync/internal/platform/config"
	"personsync/internal/platform/logger"
	"personsync/internal/replication"
)

// main wires the Address service. Addresses are owned here; persons are a
// replica fed by the Person service's facts and used to check that every
// address references a live person.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "address-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv(config.ServiceAddress)
	log := logger.New(cfg.Service, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	var persons *replica.Store
	switch cfg.ReplicaBackend() {
	case config.StoragePostgres:
		persons = replica.NewPostgres(deps.DB)
	case config.StorageRedis:
		persons = replica.NewRedis(deps.RedisClient())
	default:
		persons = replica.NewMemory()
	}

	var addresses service.Store
	if deps.DB != nil {
		addresses = addressstore.NewPostgresStore(deps.DB)
	} else {
		addresses = addressstore.NewInMemoryStore()
	}

	m := metrics.New(deps.Registry)
	personCommands := service.NewPersonCommandHandler(persons, deps.Runner,
		replication.WithPublisher(deps.Publisher()),
		replication.WithObserver(m),
		replication.WithCommandsLogger(log.With("component", "person-commands")),
		replication.WithApplyAttempts(cfg.Replica.MaxApplyAttempts),
	)
	svc := service.New(addresses, persons, deps.Runner,
		service.WithMetrics(m),
		service.WithLogger(log),
	)

	router := chi.NewRouter()
	deps.MountOps(router)
	handler.New(svc, personCommands, m, log).Register(router)

	facts := consumer.New(personCommands, deps.PeerTopics(), cfg.Service, deps.Metrics, log)

	log.Info("starting address service",
		"addr", cfg.Server.Addr,
		"broker", cfg.Broker.Kind,
		"replica", cfg.ReplicaBackend(),
		"environment", cfg.Server.Environment,
	)
	return deps.Run(ctx, router, facts)
}
