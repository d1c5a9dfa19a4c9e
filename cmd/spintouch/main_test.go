package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "v0.5.0-rc1", formatVersion("0.5.0-rc1"))
	assert.Equal(t, "", formatVersion(""))
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scan", "monitor", "read", "decode"} {
		assert.True(t, names[want], "root command MUST expose the %q subcommand", want)
	}
	assert.True(t, rootCmd.SilenceErrors, "errors MUST be printed by main, not cobra")
}
