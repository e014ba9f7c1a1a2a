package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpeechFlags(t *testing.T) {
	// Every session option the library exposes has a CLI counterpart.
	for _, name := range []string{
		"to", "from", "source-mode", "content-type", "chunk-size",
		"chunk-interval", "no-reconnect", "max-reconnects", "formality",
		"glossary",
	} {
		require.NotNil(t, speechCmd.Flags().Lookup(name), "missing flag --%s", name)
	}
}
