// Package logging is the daemon's one leveled logger. Every other
// package logs through here instead of calling fmt.Println or the
// standard log package directly.
package logging

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// Init sets the active level from a --log-level flag value, falling
// back to the LOG_LEVEL environment variable, then info.
func Init(flagValue string) {
	levelStr := strings.ToLower(flagValue)
	if levelStr == "" {
		levelStr = strings.ToLower(os.Getenv("LOG_LEVEL"))
	}
	switch levelStr {
	case "debug":
		current.Store(int32(LevelDebug))
	case "error":
		current.Store(int32(LevelError))
	default:
		current.Store(int32(LevelInfo))
	}
}

func enabled(l Level) bool {
	return Level(current.Load()) >= l
}

func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func Error(format string, v ...interface{}) {
	log.Printf("[ERROR] "+format, v...)
}

// Fatal logs err (with its wrapped chain, if any) and terminates the
// process with a non-zero exit code. Reserved for the startup and
// actor-invariant failures the daemon cannot recover from.
func Fatal(msg string, err error) {
	log.Printf("[FATAL] %s: %+v", msg, err)
	os.Exit(1)
}
