package log

// Logger is the leveled logging contract shared by every component.
// Implementations are immutable; WithField and friends return derived
// loggers carrying the extra context.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

// LevelSetter is implemented by loggers whose level can be changed at
// runtime. The daemon asserts for it on config reload.
type LevelSetter interface {
	SetLevel(level string) error
}

// Config selects the level, line layout and outputs of a Logger.
type Config struct {
	Level   string           `mapstructure:"level"`
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	File    *FileAppenderOpt `mapstructure:"file"`
}

// New builds a Logger writing to stdout, plus a rotated file when
// cfg.File is set. There is no package level logger; the caller owns the
// instance and hands it to each component it constructs.
func New(cfg *Config) (Logger, error) {
	return newLogrus(cfg, nil)
}

// VerbosityLevel maps the numeric -v scale of the CLI onto a level name.
// 0 keeps warnings and errors only, so per-datagram output is silenced
// without hiding anomalies.
func VerbosityLevel(v int) string {
	switch {
	case v <= 0:
		return "warn"
	case v == 1:
		return "info"
	case v == 2:
		return "debug"
	default:
		return "trace"
	}
}
