package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is a simple console logger with level prefixes and key=value
// rendering of trailing arguments.
type Logger struct {
	*log.Logger
}

// NewLogger creates a new Logger.
func NewLogger() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.write("INFO", msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.write("WARN", msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.write("ERROR", msg, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.write("DEBUG", msg, args...)
}

func (l *Logger) write(level, msg string, args ...interface{}) {
	if len(args) == 0 {
		l.Printf("%s: %s", level, msg)
		return
	}
	pairs := make([]string, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			pairs = append(pairs, fmt.Sprintf("%v=%v", args[i], args[i+1]))
		} else {
			pairs = append(pairs, fmt.Sprintf("%v", args[i]))
		}
	}
	l.Printf("%s: %s %s", level, msg, strings.Join(pairs, " "))
}
