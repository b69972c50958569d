package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ACL"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Ledger    LedgerSettings    `mapstructure:"ledger"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Console   ConsoleSettings   `mapstructure:"console"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Event sources for ledger notifications.
const (
	EventSourceEthereum = "ethereum"
	EventSourceKafka    = "kafka"
)

// LedgerSettings configures the access-control contract connection.
type LedgerSettings struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	ChainID         int64         `mapstructure:"chain_id"`
	SignerKey       string        `mapstructure:"signer_key"`
	EventSource     string        `mapstructure:"event_source"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

type PostgresSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis session store.
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the outcome producer and the mirrored event consumer.
type KafkaSettings struct {
	Brokers           []string `mapstructure:"brokers"`
	TopicPrefix       string   `mapstructure:"topic_prefix"`
	LedgerEventsTopic string   `mapstructure:"ledger_events_topic"`
	ConsumerGroup     string   `mapstructure:"consumer_group"`
	PublishOutcomes   bool     `mapstructure:"publish_outcomes"`
	MirrorLedger      bool     `mapstructure:"mirror_ledger"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// ConsoleSettings tunes presentation-facing signals.
type ConsoleSettings struct {
	AlertTTL    time.Duration `mapstructure:"alert_ttl"`
	OutcomeTTL  time.Duration `mapstructure:"outcome_ttl"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"grpc.host",
		"grpc.port",
		"ledger.rpc_url",
		"ledger.contract_address",
		"ledger.chain_id",
		"ledger.signer_key",
		"ledger.event_source",
		"ledger.call_timeout",
		"postgres.enabled",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.ledger_events_topic",
		"kafka.consumer_group",
		"kafka.publish_outcomes",
		"kafka.mirror_ledger",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"console.alert_ttl",
		"console.outcome_ttl",
		"console.cors_origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the console cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Ledger.EventSource {
	case EventSourceEthereum, EventSourceKafka:
	default:
		return fmt.Errorf("ledger.event_source must be %q or %q, got %q", EventSourceEthereum, EventSourceKafka, c.Ledger.EventSource)
	}
	if c.Ledger.EventSource == EventSourceKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when ledger.event_source is %q", EventSourceKafka)
	}
	if c.Ledger.CallTimeout <= 0 {
		return fmt.Errorf("ledger.call_timeout must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ebsi-access-control")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("ledger.rpc_url", "ws://localhost:7545")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.chain_id", 1337)
	v.SetDefault("ledger.signer_key", "")
	v.SetDefault("ledger.event_source", EventSourceEthereum)
	v.SetDefault("ledger.call_timeout", "30s")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "acl")
	v.SetDefault("postgres.password", "acl_password")
	v.SetDefault("postgres.database", "acl")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "acl:session")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "ebsi")
	v.SetDefault("kafka.ledger_events_topic", "ebsi.acl.ledger-events")
	v.SetDefault("kafka.consumer_group", "acl-console")
	v.SetDefault("kafka.publish_outcomes", false)
	v.SetDefault("kafka.mirror_ledger", false)

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "ebsi-access-control")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("console.alert_ttl", "5s")
	v.SetDefault("console.outcome_ttl", "6s")
	v.SetDefault("console.cors_origins", []string{"http://localhost:5173"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
