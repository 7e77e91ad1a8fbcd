package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// Port the HTTP API listens on
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Comma-separated list of allowed CORS origins ("*" allows all)
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	// Database configuration
	Database struct {
		// Path to the sqlite database file
		Path string `env:"DATABASE_PATH" envDefault:"database/terrascope.db"`
	}

	// Listings configuration
	Listings struct {
		// Default page size for the listing endpoint
		DefaultLimit int `env:"LISTINGS_DEFAULT_LIMIT" envDefault:"24"`

		// Default page size for the map endpoint
		MapLimit int `env:"LISTINGS_MAP_LIMIT" envDefault:"200"`

		// Guaranies per US dollar, used to normalize mixed-currency price sorting
		GsPerUSD float64 `env:"CURRENCY_GS_PER_USD" envDefault:"8000"`
	}

	// Ingest configuration
	Ingest struct {
		// Directory the upstream scraper drops JSON feed files into
		FeedDir string `env:"INGEST_FEED_DIR" envDefault:"feeds"`

		// Maximum number of listings per batch pushed to the queue
		MaxBatchSize int `env:"INGEST_MAX_BATCH_SIZE" envDefault:"100"`

		// Queue buffer size in batches
		QueueSize int `env:"INGEST_QUEUE_SIZE" envDefault:"50"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"INGEST_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"INGEST_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"INGEST_RETRY_DELAY" envDefault:"5"`
	}

	// Scheduler configuration
	Scheduler struct {
		// Interval between background runs in minutes (0 disables the scheduler)
		IntervalMinutes int `env:"SCHEDULER_INTERVAL_MINUTES" envDefault:"360"`

		// Whether the scheduler runs its jobs once at startup
		RunOnStartup bool `env:"SCHEDULER_RUN_ON_STARTUP" envDefault:"false"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
