package log

// LogCfg configures the messaging logger. Loaded through the config
// manager under the name "logger"; all fields support hot reload.
type LogCfg struct {
	// LogPath is the target file for file-based output.
	LogPath string `mapstructure:"path"`

	// LogLevelName is the minimum level that will be emitted.
	// Valid values: trace, debug, info, warn, error, fatal.
	LogLevelName string `mapstructure:"level"`

	// FileSplitMB rotates the log file when it exceeds this size.
	// Zero disables size-based rotation.
	FileSplitMB int `mapstructure:"splitmb"`

	// FileAppender enables file output to LogPath.
	FileAppender bool `mapstructure:"fileAppender"`

	// ConsoleAppender enables stdout output.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo adds a caller field (file:line) to every event.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName implements config.Config.
func (c *LogCfg) GetName() string {
	return "logger"
}

// Validate implements config.Config.
func (c *LogCfg) Validate() error {
	return nil
}

func getDefaultCfg() *LogCfg {
	return &LogCfg{
		LogLevelName:    "info",
		ConsoleAppender: true,
	}
}

// Level returns the parsed minimum level.
func (c *LogCfg) Level() Level {
	return ParseLevel(c.LogLevelName)
}
