// Package log is a small leveled wrapper around the standard logger.
package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level selects which messages are written.
type Level int

const (
	Prefix        = "[bridgelog] "
	ErrorPrefix   = "[error] "
	WarningPrefix = "[warn] "
	InfoPrefix    = "[info] "
	DebugPrefix   = "[debug] "
	HelpLevels    = "Must be one of: error, warning, info, debug."
)

const (
	ErrorLevel Level = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

var levelNames = map[string]Level{
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"warn":    WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

type logger struct {
	level Level
	*log.Logger
}

var std = &logger{
	level:  InfoLevel,
	Logger: log.New(os.Stderr, Prefix, log.LstdFlags|log.Lmicroseconds),
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return InfoLevel, errors.New("wrong log level " + s + ". " + HelpLevels)
	}
	return level, nil
}

// SetLevel sets the active level by name.
func SetLevel(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	std.level = level
	return nil
}

// Init redirects output and sets the level. An empty level keeps the current one.
func Init(out io.Writer, level string) error {
	std.SetOutput(out)
	if level == "" {
		return nil
	}
	return SetLevel(level)
}

// Enabled reports whether messages at level are written.
func Enabled(level Level) bool {
	return std.level >= level
}

func Error(format string, v ...interface{}) {
	if std.level >= ErrorLevel {
		std.Println(fmt.Sprintf(ErrorPrefix+format, v...))
	}
}

func Warning(format string, v ...interface{}) {
	if std.level >= WarningLevel {
		std.Println(fmt.Sprintf(WarningPrefix+format, v...))
	}
}

func Info(format string, v ...interface{}) {
	if std.level >= InfoLevel {
		std.Println(fmt.Sprintf(InfoPrefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if std.level >= DebugLevel {
		std.Println(fmt.Sprintf(DebugPrefix+format, v...))
	}
}

// Writer returns the underlying writer, for libraries that take an io.Writer access log.
func Writer() io.Writer {
	return std.Writer()
}
