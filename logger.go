package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation settings
const (
	LogFileMaxSizeMB  = 10
	LogFileMaxBackups = 3
	LogFileMaxAgeDays = 28
)

// newLogger builds the application logger. The console only shows warnings
// unless verbose is set, so it does not drown the status output; the
// optional log file records everything from info level up.
func newLogger(verbose bool, logFile string) (zerolog.Logger, io.Closer) {
	consoleLevel := zerolog.WarnLevel
	fileLevel := zerolog.InfoLevel
	if verbose {
		consoleLevel = zerolog.DebugLevel
		fileLevel = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  consoleLevel,
		},
	}

	var closer io.Closer = cleanupFunc(func() error { return nil })
	if logFile != "" {
		file := &lumberjack.Logger{
			Filename:   expandHome(logFile),
			MaxSize:    LogFileMaxSizeMB,
			MaxBackups: LogFileMaxBackups,
			MaxAge:     LogFileMaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: file},
			Level:  fileLevel,
		})
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(min(consoleLevel, fileLevel)).
		With().
		Timestamp().
		Logger()
	return logger, closer
}
