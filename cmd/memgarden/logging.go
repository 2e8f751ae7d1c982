package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dae9999nam/Memory-Garden/internal/config"
)

const logLevelEnvKey = "MEMGARDEN_LOG_LEVEL"

// levelSource records where the effective log level came from.
type levelSource string

const (
	fromFlag    levelSource = "flag"
	fromEnv     levelSource = "env"
	fromConfig  levelSource = "config"
	fromDefault levelSource = "default"
)

// setupLogging installs the process logger on stderr. An invalid flag is an
// error; an invalid env or config value falls back to the default level and
// returns a warning for the user.
func setupLogging(flagLevel, configLevel string) (string, error) {
	return setupLoggingTo(os.Stderr, flagLevel, configLevel)
}

func setupLoggingTo(w io.Writer, flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := chooseLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(raw)
	if err == nil {
		slog.SetDefault(newLogger(w, level))
		return "", nil
	}

	var warning string
	switch source {
	case fromFlag:
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	case fromEnv:
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel)
	case fromConfig:
		warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel)
	}
	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(w, fallback))
	return warning, nil
}

// chooseLogLevel applies flag > env > config precedence.
func chooseLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	switch {
	case strings.TrimSpace(flagLevel) != "":
		return flagLevel, fromFlag
	case strings.TrimSpace(envLevel) != "":
		return envLevel, fromEnv
	case strings.TrimSpace(configLevel) != "":
		return configLevel, fromConfig
	default:
		return config.DefaultLogLevel, fromDefault
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "warning" {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
