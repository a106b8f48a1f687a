package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	tests := map[string]string{
		"jordan@x.com": "jo***@x.com",
		"j@x.com":      "j***@x.com",
		"":             "",
		"not-an-email": "***",
	}
	for in, want := range tests {
		assert.Equal(t, want, RedactEmail(in), in)
	}
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hashed, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword("correct horse", hashed))
	assert.False(t, CheckPassword("wrong horse", hashed))
}
