package storyforge

import "time"

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	inbox        string
	outbox       string
	pollInterval time.Duration
}

// WithInbox sets the daemon inbox directory jobs are submitted to.
func WithInbox(path string) Option {
	return func(c *clientConfig) {
		c.inbox = path
	}
}

// WithOutbox sets the daemon outbox directory results are read from.
func WithOutbox(path string) Option {
	return func(c *clientConfig) {
		c.outbox = path
	}
}

// WithPollInterval sets how often Wait checks the outbox for a result.
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.pollInterval = d
	}
}
