package repository

// Option applies a configuration option to a store.
type Option func(*storeConfig)

type storeConfig struct {
	watchBuffer int
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{watchBuffer: defaultWatchBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithWatchBuffer sets the per-watcher channel buffer size.
func WithWatchBuffer(size int) Option {
	return func(c *storeConfig) {
		if size > 0 {
			c.watchBuffer = size
		}
	}
}
