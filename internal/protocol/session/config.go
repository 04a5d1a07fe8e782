package session

import "time"

const (
	DefaultTimeout      = 5 * time.Second
	DefaultResponseSize = 1024
)

// Config defines per-exchange transport limits. One timeout value from the terminal
// config usually feeds all three deadlines.
type Config struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	// ResponseSize bounds the single receive of each exchange.
	ResponseSize int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultTimeout,
		WriteTimeout:   DefaultTimeout,
		ReadTimeout:    DefaultTimeout,
		ResponseSize:   DefaultResponseSize,
	}
}

// ConfigWithTimeout applies timeout to every deadline.
func ConfigWithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	if timeout > 0 {
		cfg.ConnectTimeout = timeout
		cfg.WriteTimeout = timeout
		cfg.ReadTimeout = timeout
	}
	return cfg
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.ResponseSize <= 0 {
		c.ResponseSize = def.ResponseSize
	}
	return c
}
