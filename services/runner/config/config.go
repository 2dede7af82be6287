package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the scrape runner.
type Config struct {
	LogLevel string

	AddressFile  string
	AddressLimit int
	CurlFile     string
	Chain        string

	GMGNURL        string
	DexscreenerURL string

	Workers      int
	InitialLimit int
	MaxLimit     int
	RatePerSec   float64
	EvalInterval time.Duration
	StatsWindow  time.Duration

	MaxRetries  int
	HTTPTimeout time.Duration

	OutputFile   string
	PostgresDSN  string
	KafkaBrokers string
	KafkaTopic   string
	RedisAddr    string
	SeenTTL      time.Duration

	MetricsAddr  string
	OTelEndpoint string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel: v.GetString("log_level"),

		AddressFile:  v.GetString("address_file"),
		AddressLimit: v.GetInt("address_limit"),
		CurlFile:     v.GetString("curl_file"),
		Chain:        v.GetString("chain"),

		GMGNURL:        v.GetString("gmgn_url"),
		DexscreenerURL: v.GetString("dexscreener_url"),

		Workers:      v.GetInt("workers"),
		InitialLimit: v.GetInt("initial_limit"),
		MaxLimit:     v.GetInt("max_limit"),
		RatePerSec:   v.GetFloat64("rate_per_sec"),
		EvalInterval: v.GetDuration("eval_interval"),
		StatsWindow:  v.GetDuration("stats_window"),

		MaxRetries:  v.GetInt("max_retries"),
		HTTPTimeout: v.GetDuration("http_timeout"),

		OutputFile:   v.GetString("output_file"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		KafkaTopic:   v.GetString("kafka_topic"),
		RedisAddr:    v.GetString("redis_addr"),
		SeenTTL:      v.GetDuration("seen_ttl"),

		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),
	}
}
