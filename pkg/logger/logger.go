package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// LogLevel defines the logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	ERROR
	SILENT
)

// ParseLevel maps a level name to a LogLevel, falling back to INFO
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "ERROR":
		return ERROR
	case "SILENT", "OFF", "NONE":
		return SILENT
	default:
		return INFO
	}
}

// Fields are key/value pairs appended to a log line as key=value
type Fields map[string]interface{}

// Logger writes leveled, prefixed lines to a single output
type Logger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	level       LogLevel
	fields      string
	mutex       *sync.Mutex
}

// New creates a logger writing to output at the given level name
func New(output io.Writer, level string) *Logger {
	if output == nil {
		output = os.Stdout
	}
	flags := log.Ldate | log.Ltime | log.Lmsgprefix
	return &Logger{
		infoLogger:  log.New(output, color.GreenString("INFO: "), flags),
		errorLogger: log.New(output, color.RedString("ERROR: "), flags),
		debugLogger: log.New(output, color.BlueString("DEBUG: "), flags),
		level:       ParseLevel(level),
		mutex:       &sync.Mutex{},
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return New(io.Discard, "SILENT")
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the process logger. It writes to stderr at the level named by LOG_LEVEL.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr, os.Getenv("LOG_LEVEL"))
	})
	return defaultLogger
}

// Level reports the minimum level this logger emits
func (l *Logger) Level() LogLevel {
	return l.level
}

// WithFields returns a logger that appends the given fields to every line.
// The returned logger shares output and lock with its parent.
func (l *Logger) WithFields(fields Fields) *Logger {
	child := *l
	child.fields = l.fields + formatFields(fields)
	return &child
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) output(target *log.Logger, msg string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	target.Print(msg + l.fields)
}

// Printf logs a formatted message at the INFO level
func (l *Logger) Printf(format string, v ...interface{}) {
	if l.level <= INFO {
		l.output(l.infoLogger, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted message at the ERROR level
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.output(l.errorLogger, fmt.Sprintf(format, v...))
	}
}

// Debugf logs a formatted message at the DEBUG level
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.output(l.debugLogger, fmt.Sprintf(format, v...))
	}
}
