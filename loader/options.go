package loader

import "time"

// Config holds the loader configuration.
type Config struct {
	// ControlRoot is the firmware upload interface directory
	ControlRoot string

	// PollTimeout bounds the wait for the status node to report idle,
	// measured from entry into polling
	PollTimeout time.Duration

	// PollInterval is the sleep between status reads
	PollInterval time.Duration

	// AllowDebug permits loading debug-build modules
	AllowDebug bool

	// PhaseCallback is called on each state transition (optional)
	PhaseCallback PhaseCallback

	now   func() time.Time
	sleep func(time.Duration)
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ControlRoot:  DefaultControlRoot,
		PollTimeout:  DefaultPollTimeout,
		PollInterval: DefaultPollInterval,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Option is a functional option for configuring the Loader.
type Option func(*Config)

// WithControlRoot overrides the firmware upload interface directory.
//
// Example:
//
//	l := loader.New(fs, reader, loader.WithControlRoot("/sys/class/firmware/other"))
func WithControlRoot(path string) Option {
	return func(c *Config) {
		c.ControlRoot = path
	}
}

// WithPollTimeout overrides the idle-wait timeout.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.PollTimeout = timeout
		}
	}
}

// WithPollInterval overrides the sleep between status reads.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithAllowDebug permits loading debug-build modules. Off by default.
func WithAllowDebug(allow bool) Option {
	return func(c *Config) {
		c.AllowDebug = allow
	}
}

// WithPhaseCallback sets a callback invoked on each state transition.
//
// Example:
//
//	l := loader.New(fs, reader,
//	    loader.WithPhaseCallback(func(p loader.Phase) {
//	        fmt.Println("phase:", p)
//	    }),
//	)
func WithPhaseCallback(callback PhaseCallback) Option {
	return func(c *Config) {
		c.PhaseCallback = callback
	}
}

// WithClock overrides the time source and sleep function used by the polling
// loop. Intended for tests that simulate the timeout.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *Config) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}
