// internal/workers/enforcement/prioritize-enforcement/config.go
package prioritizeenforcement

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
