package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	l, err := New("info", "json", "falldetectd")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewConsole(t *testing.T) {
	l, err := New("debug", "console", "falldetectd")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("not-a-level", "json", "")
	assert.Error(t, err)
}

func TestNewInvalidFormat(t *testing.T) {
	_, err := New("info", "xml", "")
	assert.Error(t, err)
}
