package detector

import (
	"fmt"
	"time"
)

// Config holds the pipeline, batch pacing and credential settings
type Config struct {
	// HybridMinWords is the word count at which enhanced mode adds embedding scoring
	HybridMinWords int
	// GroupSize is the number of batch items analyzed concurrently
	GroupSize int
	// GroupDelay is the pause between consecutive batch groups
	GroupDelay time.Duration
	// CredentialPrefix is the prefix every credential must carry
	CredentialPrefix string
}

// DefaultConfig returns groups of 3 paced 1s apart and a 100-word hybrid threshold
func DefaultConfig() Config {
	return Config{
		HybridMinWords:   100,
		GroupSize:        3,
		GroupDelay:       time.Second,
		CredentialPrefix: "sk-",
	}
}

// Validate checks the configuration for nonsensical values
func (c Config) Validate() error {
	if c.HybridMinWords < 0 {
		return fmt.Errorf("hybrid min words must be >= 0, got %d", c.HybridMinWords)
	}
	if c.GroupSize < 1 {
		return fmt.Errorf("batch group size must be >= 1, got %d", c.GroupSize)
	}
	if c.GroupDelay < 0 {
		return fmt.Errorf("batch group delay must be >= 0, got %s", c.GroupDelay)
	}
	if c.CredentialPrefix == "" {
		return fmt.Errorf("credential prefix is required")
	}
	return nil
}
