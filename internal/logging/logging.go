// Package logging builds the structured slog logger shared by the looplib
// binaries: JSON lines on stdout plus a rotating file, with credentials
// redacted and email addresses masked before anything is written.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Service     string
	Environment string
	Level       string
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

var sensitiveFields = map[string]bool{
	"password":      true,
	"new_password":  true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"secret":        true,
	"authorization": true,
	"cookie":        true,
	"jwt":           true,
	"app_key":       true,
	"api_key":       true,
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Setup builds the logger and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// New writes to stdout and, when FilePath is set and its directory is
// writable, to a lumberjack-rotated file.
func New(opts Options) *slog.Logger {
	writers := []io.Writer{os.Stdout}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: Cannot create log directory for %s: %v, using stdout only\n", opts.FilePath, err)
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    withDefault(opts.MaxSizeMB, 100),
				MaxBackups: withDefault(opts.MaxBackups, 5),
				MaxAge:     withDefault(opts.MaxAgeDays, 30),
				Compress:   true,
			})
		}
	}

	return NewWithWriter(io.MultiWriter(writers...), opts)
}

func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: redact,
	})

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	if opts.Environment != "" {
		l = l.With("env", opts.Environment)
	}
	return l
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveFields[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if strings.Contains(s, "@") {
			return slog.String(a.Key, emailRegex.ReplaceAllStringFunc(s, MaskEmail))
		}
	}
	return a
}

// MaskEmail keeps the first two characters of the local part.
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[REDACTED_EMAIL]"
	}
	local := parts[0]
	if len(local) <= 2 {
		return "**@" + parts[1]
	}
	return local[:2] + "***@" + parts[1]
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
