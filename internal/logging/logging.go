package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values to a slog level. Unknown values keep the
// production default.
func ParseLevel(l string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	}
	return slog.LevelError
}

// Init installs the default logger. LOG_LEVEL picks the level (errors only by
// default) and LOG_FILE, when set, receives the output instead of stderr so
// the room screen is not drawn over. The returned func closes the file.
func Init() func() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	var out io.Writer = os.Stderr
	closeFn := func() {}

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open LOG_FILE %s: %v\n", path, err)
		} else {
			out = f
			closeFn = func() { f.Close() }
		}
	}

	logger := slog.New(
		slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return closeFn
}
