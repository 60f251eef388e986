package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"webshop/internal/order"
	"webshop/internal/state"
)

// Config holds the settings shared by the webshop binaries. Every flag
// defaults to an environment variable so containers can configure it either way.
type Config struct {
	HTTPAddr     string
	StateBackend string // memory|pebble|badger|postgres
	DataDir      string
	DatabaseURL  string
	RedisAddr    string
	CacheTTL     time.Duration

	KafkaBootstrap string
	EventSink      string // none|file|kafka|confluent|both
	EventTopic     string
	ChangelogDir   string

	SnapshotDir      string
	SnapshotInterval time.Duration
	ManifestSink     string // file|kafka|both
	ManifestTopic    string

	StockPolicy order.StockPolicy
}

// ChangelogFile is the name of the JSON-lines changelog inside ChangelogDir.
const ChangelogFile = "orders.jsonl"

// LoadEnv reads .env.local when APP_ENV=local. Variables already set win.
func LoadEnv() {
	if os.Getenv("APP_ENV") != "local" {
		return
	}
	if err := godotenv.Load(".env.local"); err != nil {
		log.Printf("config: .env.local not loaded: %v", err)
	}
}

// Register binds every setting to fs, using the environment for defaults.
// The returned Config is filled in once fs is parsed; call Validate after.
func Register(fs *flag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", env("HTTP_ADDR", ":8080"), "http listen address")
	fs.StringVar(&cfg.StateBackend, "state-backend", env("STATE_BACKEND", state.BackendMemory), "state backend: memory|pebble|badger|postgres")
	fs.StringVar(&cfg.DataDir, "data-dir", env("DATA_DIR", "./data/webshop"), "data directory for pebble/badger")
	fs.StringVar(&cfg.DatabaseURL, "database-url", env("DATABASE_URL", ""), "postgres connection string")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", env("REDIS_ADDR", ""), "redis address for the product cache (empty disables it)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", envDuration("CACHE_TTL", 10*time.Minute), "product cache ttl")
	fs.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", env("KAFKA_BOOTSTRAP", ""), "kafka bootstrap servers, e.g. localhost:9092")
	fs.StringVar(&cfg.EventSink, "event-sink", env("EVENT_SINK", "file"), "order changelog sink: none|file|kafka|confluent|both")
	fs.StringVar(&cfg.EventTopic, "event-topic", env("EVENT_TOPIC", "webshop.orders-changelog"), "kafka topic for the order changelog")
	fs.StringVar(&cfg.ChangelogDir, "changelog-dir", env("CHANGELOG_DIR", "./changelog"), "directory of the file changelog")
	fs.StringVar(&cfg.SnapshotDir, "snapshot-dir", env("SNAPSHOT_DIR", "./snapshots"), "snapshot directory")
	fs.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", envDuration("SNAPSHOT_INTERVAL", time.Minute), "snapshot interval (0 disables periodic snapshots)")
	fs.StringVar(&cfg.ManifestSink, "manifest-sink", env("MANIFEST_SINK", "file"), "manifest sink: file|kafka|both")
	fs.StringVar(&cfg.ManifestTopic, "manifest-topic", env("MANIFEST_TOPIC", "webshop.snapshots"), "kafka topic for the manifest (compacted)")
	fs.StringVar((*string)(&cfg.StockPolicy), "stock-policy", env("STOCK_POLICY", string(order.PolicySequential)), "stock policy: sequential|two-phase")
	return cfg
}

// Parse registers the settings on the default flag set and parses os.Args.
func Parse() (Config, error) {
	cfg := Register(flag.CommandLine)
	flag.Parse()
	return *cfg, cfg.Validate()
}

// Validate rejects unknown enum values and missing dependencies between settings.
func (c Config) Validate() error {
	switch c.StateBackend {
	case state.BackendMemory, state.BackendPebble, state.BackendBadger:
	case state.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("state backend postgres needs DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}
	if _, err := order.ParseStockPolicy(string(c.StockPolicy)); err != nil {
		return err
	}
	switch c.EventSink {
	case "none", "file":
	case "kafka", "confluent", "both":
		if c.KafkaBootstrap == "" {
			return fmt.Errorf("event sink %s needs KAFKA_BOOTSTRAP", c.EventSink)
		}
	default:
		return fmt.Errorf("unknown event sink %q", c.EventSink)
	}
	switch c.ManifestSink {
	case "file":
	case "kafka", "both":
		if c.KafkaBootstrap == "" {
			return fmt.Errorf("manifest sink %s needs KAFKA_BOOTSTRAP", c.ManifestSink)
		}
	default:
		return fmt.Errorf("unknown manifest sink %q", c.ManifestSink)
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot interval cannot be negative")
	}
	return nil
}

// FileChangelog reports whether orders are appended to the changelog file.
func (c Config) FileChangelog() bool { return c.EventSink == "file" || c.EventSink == "both" }

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// envDuration accepts a Go duration ("30s") or a plain number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := env(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config: ignoring bad %s=%q", key, v)
	return def
}
