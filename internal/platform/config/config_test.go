package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Run("person service publishes unprefixed and consumes address topics", func(t *testing.T) {
		cfg := FromEnv(ServicePerson)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "", cfg.Broker.TopicPrefix)
		assert.Equal(t, "address.", cfg.Broker.PeerTopicPrefix)
		assert.Equal(t, BrokerMemory, cfg.Broker.Kind)
		assert.Equal(t, StorageMemory, cfg.ReplicaBackend())
		require.NoError(t, cfg.Validate())
	})

	t.Run("address service swaps the prefixes", func(t *testing.T) {
		cfg := FromEnv(ServiceAddress)
		assert.Equal(t, ":8081", cfg.Server.Addr)
		assert.Equal(t, "address.", cfg.Broker.TopicPrefix)
		assert.Equal(t, "", cfg.Broker.PeerTopicPrefix)
		assert.Equal(t, "address-service", cfg.Broker.ConsumerGroup)
	})
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Staging")
	t.Setenv("BROKER", BrokerKafka)
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,a:9092 ,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("CONSUMER_CONCURRENCY", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/personsync")
	t.Setenv("REPLICA_BACKEND", StorageRedis)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ADMIN_TOKEN", "letmein")

	cfg := FromEnv(ServiceAddress)
	assert.True(t, cfg.IsStaging())
	assert.Equal(t, "letmein", cfg.Server.AdminToken)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Broker.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 4, cfg.Broker.ConsumerConcurrency)
	assert.Equal(t, StoragePostgres, cfg.StorageBackend())
	assert.Equal(t, StorageRedis, cfg.ReplicaBackend())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown broker", func(c *Config) { c.Broker.Kind = "nats" }},
		{"postgres replica without database", func(c *Config) { c.Replica.Backend = StoragePostgres }},
		{"redis replica without redis", func(c *Config) { c.Replica.Backend = StorageRedis }},
		{"unknown replica backend", func(c *Config) { c.Replica.Backend = "sqlite" }},
		{"same topic prefixes", func(c *Config) { c.Broker.PeerTopicPrefix = c.Broker.TopicPrefix }},
		{"zero concurrency", func(c *Config) { c.Broker.ConsumerConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv(ServicePerson)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
