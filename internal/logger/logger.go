package logger

import (
	"io"
	"log/slog"
	"os"
)

// Log defaults to a plain stdout text logger so packages that log during
// tests or library use (no cmd/ entrypoint ever calling Init) never dereference
// a nil logger; Init replaces it with the configured multi-writer handler.
var Log = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init initializes the global logger
func Init(level string, logFile string) error {
	// Parse log level
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelDebug
	}

	// Set up multi-writer (stdout + file)
	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	multiWriter := io.MultiWriter(writers...)

	// Create handler with custom options
	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Shorten time format
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})

	Log = slog.New(handler)
	slog.SetDefault(Log)

	return nil
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// ForPID returns a logger scoped to one process, so supervisor and broker
// log lines carry "pid" without repeating it at each call site.
func ForPID(pid int64) *slog.Logger {
	return Log.With("pid", pid)
}

// ForCommit returns a logger scoped to one commit-log index. Nothing in
// the repository calls it; audit.Replay reports the divergent commit index
// in its returned error instead.
func ForCommit(index int) *slog.Logger {
	return Log.With("commit", index)
}
