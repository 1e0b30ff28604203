package logging

import (
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	min  Level
	base *log.Logger
}

func New(level string) *Logger {
	return &Logger{min: ParseLevel(level), base: log.New(os.Stdout, "", log.LstdFlags)}
}

func (l *Logger) logf(lv Level, tag, format string, args ...any) {
	if lv < l.min {
		return
	}
	l.base.Printf(tag+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, "[DEBUG]", format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, "[INFO]", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, "[WARN]", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, "[ERROR]", format, args...)
}
