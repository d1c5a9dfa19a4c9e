package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configureLogger builds the logger for one command run. Level
// precedence: the --log-level flag, then --verbose, then the config
// file's log_level, and silent when none of them is set. configLevel is
// empty for commands that do not read the config file.
func configureLogger(cmd *cobra.Command, verboseFlagName, configLevel string) (*logrus.Logger, error) {
	level := logrus.PanicLevel

	flagLevel, _ := cmd.Flags().GetString("log-level")
	verbose := false
	if verboseFlagName != "" {
		verbose, _ = cmd.Flags().GetBool(verboseFlagName)
	}

	switch {
	case flagLevel != "":
		parsed, err := parseLogLevel(flagLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	case verbose:
		level = logrus.DebugLevel
	case configLevel != "":
		parsed, err := parseLogLevel(configLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}

// parseLogLevel maps the level names shared by the --log-level flag and
// the config file's log_level key.
func parseLogLevel(s string) (logrus.Level, error) {
	switch s {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", s)
	}
}
