// Package bootstrap opens the infrastructure a service binary depends on and
// runs its long-lived loops under one errgroup.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/config"
	"personsync/internal/platform/httpserver"
	"personsync/internal/platform/kafka"
	"personsync/internal/platform/metrics"
	"personsync/internal/platform/outbox"
	"personsync/internal/platform/postgres"
	"personsync/internal/platform/rabbitmq"
	redisclient "personsync/internal/platform/redis"
	"personsync/internal/replication"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/circuit"
	"personsync/pkg/platform/httputil"
	txcontext "personsync/pkg/platform/tx"
)

const (
	txTimeout         = 5 * time.Second
	topicPartitions   = 3
	topicReplicas     = 1
	breakerThreshold  = 5
	startupTimeout    = 30 * time.Second
	healthCheckBudget = 2 * time.Second
)

// Deps are the clients one service owns for its lifetime.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	DB       *sql.DB
	Redis    *redisclient.Client
	Broker   broker.Broker
	Outbox   outbox.Store
	Runner   txcontext.Runner
	Breaker  *circuit.Breaker

	notifier outbox.Notifier
	closers  []func() error
}

// Open connects everything cfg asks for. On error the clients opened so far
// are closed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (deps *Deps, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	d := &Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg, cfg.Service),
		Breaker:  circuit.New(cfg.Service+"-publisher", circuit.WithFailureThreshold(breakerThreshold)),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if err := d.openStorage(ctx); err != nil {
		return nil, err
	}
	if err := d.openBroker(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deps) openStorage(ctx context.Context) error {
	cfg := d.Config
	if cfg.StorageBackend() == config.StoragePostgres {
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		d.DB = db
		d.closers = append(d.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		d.Runner = txcontext.NewPostgresRunner(db, txTimeout)
		d.Outbox = outbox.NewPostgresStore(db)

		listener, err := outbox.Listen(cfg.Database.URL, d.Logger.With("component", "outbox-listener"))
		if err != nil {
			d.Logger.Warn("outbox listener unavailable, relay falls back to polling", "error", err)
		} else {
			d.notifier = listener
			d.closers = append(d.closers, listener.Close)
		}
	} else {
		mem := outbox.NewMemoryStore()
		d.Runner = txcontext.NewShardedRunner(txTimeout)
		d.Outbox = mem
		d.notifier = mem
	}

	if cfg.ReplicaBackend() == config.StorageRedis {
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		d.Redis = client
		d.closers = append(d.closers, client.Close)
	}
	d.Logger.Info("storage ready",
		"storage", cfg.StorageBackend(),
		"projection", cfg.ReplicaBackend(),
	)
	return nil
}

func (d *Deps) openBroker(ctx context.Context) error {
	cfg := d.Config
	logger := d.Logger.With("component", "broker", "broker", cfg.Broker.Kind)

	switch cfg.Broker.Kind {
	case config.BrokerKafka:
		b, err := kafka.New(kafka.Config{
			Brokers:       cfg.Broker.KafkaBrokers,
			ConsumerGroup: cfg.Broker.ConsumerGroup,
			ClientID:      cfg.Service + "-service",
			Concurrency:   cfg.Broker.ConsumerConcurrency,
		}, kafka.WithLogger(logger))
		if err != nil {
			return err
		}
		d.Broker = b
		d.closers = append(d.closers, b.Close)
		topics := append(d.OwnTopics().All(), d.PeerTopics().All()...)
		if err := b.EnsureTopics(ctx, topicPartitions, topicReplicas, topics...); err != nil {
			return err
		}
	case config.BrokerRabbitMQ:
		b, err := rabbitmq.Dial(ctx, rabbitmq.Config{
			URL:           cfg.Broker.RabbitMQURL,
			ConsumerGroup: cfg.Broker.ConsumerGroup,
			Concurrency:   cfg.Broker.ConsumerConcurrency,
		}, rabbitmq.WithLogger(logger))
		if err != nil {
			return err
		}
		d.Broker = b
		d.closers = append(d.closers, b.Close)
	default:
		b := broker.NewMemory(
			broker.WithConcurrency(cfg.Broker.ConsumerConcurrency),
			broker.WithMemoryLogger(logger),
		)
		d.Broker = b
		d.closers = append(d.closers, b.Close)
	}
	logger.Info("broker connected")
	return nil
}

// OwnTopics are the topics this service publishes on.
func (d *Deps) OwnTopics() personfact.Topics {
	return personfact.DefaultTopics(d.Config.Broker.TopicPrefix)
}

// PeerTopics are the topics this service consumes.
func (d *Deps) PeerTopics() personfact.Topics {
	return personfact.DefaultTopics(d.Config.Broker.PeerTopicPrefix)
}

// RedisClient returns the projection client or nil when redis is not in use.
func (d *Deps) RedisClient() redis.UniversalClient {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Client
}

// Publisher writes facts to the outbox. In staging it has no broker, so
// entries accumulate without being sent.
func (d *Deps) Publisher() *replication.Publisher {
	opts := []replication.Option{
		replication.WithMetrics(d.Metrics),
		replication.WithLogger(d.Logger.With("component", "publisher")),
	}
	if !d.Config.IsStaging() {
		opts = append(opts, replication.WithBroker(d.Broker), replication.WithBreaker(d.Breaker))
	}
	return replication.NewPublisher(d.Config.Service, d.OwnTopics(), d.Outbox, opts...)
}

// Relay returns the outbox relay, or nil in staging.
func (d *Deps) Relay() *outbox.Relay {
	if d.Config.IsStaging() {
		return nil
	}
	opts := []outbox.RelayOption{
		outbox.WithBreaker(d.Breaker),
		outbox.WithMetrics(d.Metrics),
		outbox.WithLogger(d.Logger.With("component", "outbox-relay")),
		outbox.WithInterval(d.Config.Outbox.PollInterval),
		outbox.WithBatchSize(d.Config.Outbox.BatchSize),
		outbox.WithRetention(d.Config.Outbox.Retention, d.Config.Outbox.CleanupInterval),
	}
	if d.notifier != nil {
		opts = append(opts, outbox.WithNotifier(d.notifier))
	}
	return outbox.NewRelay(d.Outbox, d.Broker, opts...)
}

// MountOps adds /metrics and /healthz to r.
func (d *Deps) MountOps(r chi.Router) {
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Health pings the database and redis when they are configured.
func (d *Deps) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckBudget)
	defer cancel()
	var errs []error
	if d.DB != nil {
		if err := d.DB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run serves handler and, when set, consumes the peer topics with consumer
// and runs the outbox relay. It returns when ctx ends or any loop fails.
func (d *Deps) Run(ctx context.Context, handler http.Handler, consumer *broker.Router) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.New(d.Config.Server.Addr, handler)
	g.Go(func() error {
		d.Logger.Info("http server listening", "addr", d.Config.Server.Addr)
		return httpserver.Run(ctx, srv, d.Config.Server.ShutdownTimeout)
	})

	if consumer != nil {
		g.Go(func() error {
			topics := consumer.Topics()
			d.Logger.Info("consuming person facts", "topics", topics)
			if err := d.Broker.Subscribe(ctx, topics, consumer); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume: %w", err)
			}
			return nil
		})
	}

	if relay := d.Relay(); relay != nil {
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	} else {
		d.Logger.Warn("fact publication disabled", "environment", d.Config.Server.Environment)
	}

	return g.Wait()
}

// Close releases clients in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Warn("close failed", "error", err)
		}
	}
	d.closers = nil
}
