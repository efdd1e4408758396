package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := MissingCredential("PAT authentication requires a personal access token")

	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.False(t, errors.Is(err, ErrUnsupportedAuthMode))

	wrapped := fmt.Errorf("connect: %w", err)
	assert.True(t, errors.Is(wrapped, ErrMissingCredential))
	assert.Equal(t, KindMissingCredential, KindOf(wrapped))
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := QueryExecution("wiql query failed", io.ErrUnexpectedEOF)

	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrQueryExecution))
	assert.Equal(t, "wiql query failed: unexpected EOF", err.Error())
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: KindInvalidSetting}
	assert.Equal(t, "invalid_setting", err.Error())
}

func TestIsConfiguration(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{MissingCredential("x"), true},
		{UnsupportedAuthMode("x"), true},
		{UnsupportedCombination("x"), true},
		{InvalidSetting("x"), true},
		{CredentialAcquisition(io.EOF), false},
		{QueryExecution("x", io.EOF), false},
		{io.EOF, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsConfiguration(tt.err), "%v", tt.err)
	}
}
