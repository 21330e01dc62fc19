package v1

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	library    string
	configPath string
	model      string
}

// WithLibrary sets the library root directory.
func WithLibrary(dir string) Option {
	return func(c *clientConfig) {
		c.library = dir
	}
}

// WithConfigPath reads the client configuration from the given file instead
// of the default location.
func WithConfigPath(path string) Option {
	return func(c *clientConfig) {
		c.configPath = path
	}
}

// WithModel demands a specific embedding model for queries. Searching a
// collection built with a different model fails with a CorruptError rather
// than silently falling back to the collection's model.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}
