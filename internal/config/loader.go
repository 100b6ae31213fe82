package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MERCHANTLENS_SERVER_HTTP_PORT
const EnvPrefix = "MERCHANTLENS"

// Load loads configuration from file, environment and defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/merchantlens")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; defaults and environment only
	}

	return parseConfig(v)
}

// setDefaults mirrors DefaultConfig so that partial files and bare
// environment overrides resolve to the same values.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)

	v.SetDefault("database.type", d.Database.Type)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)
	v.SetDefault("database.metrics_table", d.Database.MetricsTable)
	v.SetDefault("database.merchants_table", d.Database.MerchantsTable)

	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.subject_prefix", d.Queue.SubjectPrefix)
	v.SetDefault("queue.redis_db", d.Queue.RedisDB)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.kafka_brokers", d.Queue.KafkaBrokers)

	v.SetDefault("analytics.metrics", d.Analytics.Metrics)
	v.SetDefault("analytics.timezone", d.Analytics.Timezone)
	v.SetDefault("analytics.concurrency", d.Analytics.Concurrency)
	v.SetDefault("analytics.anomaly.lookback_days", d.Analytics.Anomaly.LookbackDays)
	v.SetDefault("analytics.anomaly.recent_window", d.Analytics.Anomaly.RecentWindow)
	v.SetDefault("analytics.anomaly.baseline_window", d.Analytics.Anomaly.BaselineWindow)
	v.SetDefault("analytics.anomaly.z_threshold", d.Analytics.Anomaly.ZThreshold)
	v.SetDefault("analytics.anomaly.high_severity_z", d.Analytics.Anomaly.HighSeverityZ)
	v.SetDefault("analytics.anomaly.calibrate_small_samples", d.Analytics.Anomaly.CalibrateSmallSamples)
	v.SetDefault("analytics.forecast.history_days", d.Analytics.Forecast.HistoryDays)
	v.SetDefault("analytics.forecast.default_days", d.Analytics.Forecast.DefaultDays)
	v.SetDefault("analytics.forecast.min_history", d.Analytics.Forecast.MinHistory)
	v.SetDefault("analytics.forecast.max_horizon", d.Analytics.Forecast.MaxHorizon)
	v.SetDefault("analytics.forecast.confidence", d.Analytics.Forecast.Confidence)
	v.SetDefault("analytics.forecast.holdout_fraction", d.Analytics.Forecast.HoldoutFraction)
	v.SetDefault("analytics.forecast.method", d.Analytics.Forecast.Method)
	v.SetDefault("analytics.forecast.alpha", d.Analytics.Forecast.Alpha)
	v.SetDefault("analytics.forecast.beta", d.Analytics.Forecast.Beta)
	v.SetDefault("analytics.insights.window", d.Analytics.Insights.Window)
	v.SetDefault("analytics.insights.growth_threshold", d.Analytics.Insights.GrowthThreshold)
	v.SetDefault("analytics.insights.divergence_threshold", d.Analytics.Insights.DivergenceThreshold)
	v.SetDefault("analytics.insights.max_peers", d.Analytics.Insights.MaxPeers)

	v.SetDefault("scanner.enabled", d.Scanner.Enabled)
	v.SetDefault("scanner.interval", d.Scanner.Interval)
	v.SetDefault("scanner.run_on_start", d.Scanner.RunOnStart)
	v.SetDefault("scanner.merchants", d.Scanner.Merchants)
	v.SetDefault("scanner.concurrency", d.Scanner.Concurrency)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			TimeFormat: "RFC3339",
		},
		Database: DatabaseConfig{
			Type:            "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    10 * time.Second,
			MetricsTable:    "merchant_daily_metrics",
			MerchantsTable:  "merchants",
		},
		Queue: QueueConfig{
			Type:          "memory",
			URL:           "nats://localhost:4222",
			SubjectPrefix: "analytics.anomalies",
			RedisStream:   "merchantlens",
			KafkaBrokers:  []string{"localhost:9092"},
		},
		Analytics: AnalyticsConfig{
			Metrics:     []string{"transactions", "revenue", "customers", "cashback"},
			Timezone:    "UTC",
			Concurrency: 4,
			Anomaly: AnomalySettings{
				LookbackDays:          90,
				RecentWindow:          7,
				BaselineWindow:        90,
				ZThreshold:            2.0,
				HighSeverityZ:         3.0,
				CalibrateSmallSamples: true,
			},
			Forecast: ForecastSettings{
				HistoryDays:     60,
				DefaultDays:     7,
				MinHistory:      14,
				MaxHorizon:      30,
				Confidence:      0.95,
				HoldoutFraction: 0.2,
				Method:          "auto",
				Alpha:           0.3,
				Beta:            0.1,
			},
			Insights: InsightsSettings{
				Window:              7,
				GrowthThreshold:     10,
				DivergenceThreshold: 10,
				MaxPeers:            5,
			},
		},
		Scanner: ScannerConfig{
			Enabled:     false,
			Interval:    time.Hour,
			RunOnStart:  true,
			Concurrency: 4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
