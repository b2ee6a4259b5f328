// internal/workers/reconciliation/match-listing/config.go
package matchlisting

import "time"

type Config struct {
	Timeout time.Duration
	// ReviewTiers are the match types routed to a human reviewer.
	ReviewTiers []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		ReviewTiers: []string{"exact", "probable", "possible"},
	}
}
