package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(8)
	require.NoError(t, err)
	assert.Len(t, a, 16)

	b, err := RandomHex(0)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.NotEqual(t, a, b)
}
