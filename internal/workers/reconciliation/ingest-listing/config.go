// internal/workers/reconciliation/ingest-listing/config.go
package ingestlisting

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
