package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
	for _, name := range []string{"port", "store-backend", "auth-strategy", "redis-addr", "auto-migrate"} {
		assert.NotNil(t, serve.Flags().Lookup(name), "serve flag %s", name)
	}

	for _, sub := range []string{"up", "down", "version"} {
		cmd, _, err := root.Find([]string{"migrate", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, cmd.Name())
	}
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve"})

	assert.Error(t, root.Execute())
}
