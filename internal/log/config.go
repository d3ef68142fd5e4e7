package log

// Config controls the process logger. Pattern tokens are substituted per
// record: %time, %level, %field, %msg, %caller, %func and %goroutine.
type Config struct {
	Level   string           `mapstructure:"level"`
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	File    *FileAppenderOpt `mapstructure:"file"`
}

// FileAppenderOpt enables rotated file output next to stdout.
type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxAge     int    `mapstructure:"max_age"`  // days
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Pattern: "%time [%level] %caller: %msg",
		Time:    "2006-01-02 15:04:05",
	}
}
