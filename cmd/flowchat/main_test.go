package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	flags, err := parseFlags([]string{"--email", "a@b.co", "--plan=pro", "--password"}, "password")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "a@b.co", "plan": "pro", "password": "true"}, flags)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags([]string{"--email"})
	assert.EqualError(t, err, "--email requires a value")

	_, err = parseFlags([]string{"stray"})
	assert.Error(t, err)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  one\n  two", indent("one\ntwo", "  "))
	assert.Equal(t, "  (none)", indent("", "  "))
}
