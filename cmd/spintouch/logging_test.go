package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	return cmd
}

// GOAL: Verify level precedence: the --log-level flag beats --verbose,
// --verbose beats the config file level, and with none set the logger
// is silent.
func TestConfigureLoggerPrecedence(t *testing.T) {
	t.Run("silent by default", func(t *testing.T) {
		logger, err := configureLogger(newLoggingCmd(), "verbose", "")
		require.NoError(t, err)
		assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	})

	t.Run("config level applies when no flags set", func(t *testing.T) {
		logger, err := configureLogger(newLoggingCmd(), "verbose", "info")
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})

	t.Run("verbose overrides config level", func(t *testing.T) {
		cmd := newLoggingCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		logger, err := configureLogger(cmd, "verbose", "error")
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("flag overrides verbose and config", func(t *testing.T) {
		cmd := newLoggingCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		require.NoError(t, cmd.Flags().Set("log-level", "warn"))
		logger, err := configureLogger(cmd, "verbose", "info")
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})
}

func TestConfigureLoggerLevels(t *testing.T) {
	levels := map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
	}
	for name, want := range levels {
		cmd := newLoggingCmd()
		require.NoError(t, cmd.Flags().Set("log-level", name))
		logger, err := configureLogger(cmd, "verbose", "")
		require.NoError(t, err, "level %q MUST be accepted", name)
		assert.Equal(t, want, logger.GetLevel())
	}

	cmd := newLoggingCmd()
	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err := configureLogger(cmd, "verbose", "")
	require.Error(t, err, "an unknown level MUST be rejected")

	_, err = configureLogger(newLoggingCmd(), "verbose", "loud")
	require.Error(t, err, "an unknown config level MUST be rejected")
}
