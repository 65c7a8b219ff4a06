// Package config provides file-backed configuration with validation and
// hot reload for the messaging core. Configurations are YAML files loaded
// through viper and watched with fsnotify; registered listeners are
// notified when a watched file changes and revalidates cleanly.
package config

// Config is the contract every loadable configuration implements.
type Config interface {
	// GetName returns the configuration name, which is also the file
	// base name (<name>.yaml under the base path).
	GetName() string
	// Validate checks the loaded values for consistency.
	Validate() error
}

// ValidatorFunc is an additional validation hook registered per config.
type ValidatorFunc func(Config) error

// ConfigChangeListener is notified after a watched configuration has been
// reloaded and validated.
type ConfigChangeListener interface {
	// OnConfigChanged receives the new and previous configuration.
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
	// GetConfigName returns the configuration name the listener follows.
	GetConfigName() string
}
