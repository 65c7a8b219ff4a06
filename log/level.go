package log

// Level is the severity of a log event.
type Level uint32

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the lowercase level name used in the output stream.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel maps a configuration string to a Level. Unrecognized values
// fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "trace", "Trace":
		return TraceLevel
	case "debug", "Debug":
		return DebugLevel
	case "info", "Info":
		return InfoLevel
	case "warn", "Warn":
		return WarnLevel
	case "error", "Error":
		return ErrorLevel
	case "fatal", "Fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
