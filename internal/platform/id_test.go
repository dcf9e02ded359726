package platform

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestNewSuffix(t *testing.T) {
	s := NewSuffix()
	assert.Len(t, s, suffixLength)
	for _, c := range s {
		assert.Contains(t, suffixAlphabet, string(c))
	}
	assert.NotEqual(t, s, NewSuffix())
}
