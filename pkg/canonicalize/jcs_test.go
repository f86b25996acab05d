package canonicalize_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/canonicalize"
)

func TestJCSSortsKeys(t *testing.T) {
	out, err := canonicalize.JCS(map[string]any{"b": 2, "a": 1, "c": []int{3, 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":[3,1]}`, string(out))
}

func TestJCSRejectsUnmarshalable(t *testing.T) {
	_, err := canonicalize.JCS(make(chan int))
	assert.Error(t, err)
}

func TestCanonicalHashIsOrderIndependent(t *testing.T) {
	h1, err := canonicalize.CanonicalHash(map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	h2, err := canonicalize.CanonicalHash(map[string]any{"y": "z", "x": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.True(t, strings.HasPrefix(h1, "sha256:"))
	assert.Len(t, strings.TrimPrefix(h1, "sha256:"), 64)
}

func TestHashBytesDeterministic(t *testing.T) {
	assert.Equal(t, canonicalize.HashBytes([]byte("abc")), canonicalize.HashBytes([]byte("abc")))
	assert.NotEqual(t, canonicalize.HashBytes([]byte("abc")), canonicalize.HashBytes([]byte("abd")))
}
