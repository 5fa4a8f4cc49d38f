package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	assert.Equal(t, "extractormerc", rootCmd.Use)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "extract", "load", "migrate", "control", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestControlSubcommands(t *testing.T) {
	sub := map[string]bool{}
	for _, c := range controlCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"pause", "resume", "stop", "status", "clean-signals"} {
		assert.True(t, sub[want], "missing control subcommand %s", want)
	}
}

func TestRunCommandFlags(t *testing.T) {
	f := runCmd.Flags().Lookup("company")
	require.NotNil(t, f)
	assert.Equal(t, "", f.DefValue)
}
