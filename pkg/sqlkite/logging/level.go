package logging

import (
	"strings"
)

// Level is the severity of a log entry.
type Level int

const (
	DEBUG Level = iota + 1
	INFO
	NOTICE
	WARN
	ERROR
	FATAL
)

const (
	colorBlue      = 34
	colorYellow    = 220
	colorRed       = 202
	colorNormal    = 0
	colorDebugGrey = 8
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case NOTICE:
		return "NOTICE"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return ""
	}
}

//nolint:gomnd // colors are ANSI 256 codes
func (l Level) color() uint {
	switch l {
	case ERROR, FATAL:
		return colorRed
	case WARN, NOTICE:
		return colorYellow
	case INFO:
		return colorBlue
	case DEBUG:
		return colorDebugGrey
	default:
		return colorNormal
	}
}

// MarshalJSON writes the level name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// GetLevelFromString parses a level name, defaulting to INFO.
func GetLevelFromString(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "NOTICE":
		return NOTICE
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}
