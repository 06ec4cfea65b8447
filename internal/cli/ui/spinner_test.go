package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSpinner(t *testing.T) {
	t.Helper()
	previous := spinInterval
	spinInterval = 5 * time.Millisecond
	t.Cleanup(func() { spinInterval = previous })
}

func TestWithSpinnerQuiet(t *testing.T) {
	var buf bytes.Buffer
	called := false
	err := WithSpinner(&buf, "Generating templates", true, true, func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, buf.String())
}

func TestWithSpinnerSuccess(t *testing.T) {
	fastSpinner(t)

	var buf bytes.Buffer
	err := WithSpinner(&buf, "Generating templates", true, false, func() error {
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "⠋ Generating templates")
	assert.Contains(t, out, "\r\033[K✓ Generating templates\n")
}

func TestWithSpinnerFailure(t *testing.T) {
	fastSpinner(t)

	var buf bytes.Buffer
	unreadable := errors.New("subset unreadable")
	err := WithSpinner(&buf, "Generating templates", true, false, func() error {
		return unreadable
	})

	assert.ErrorIs(t, err, unreadable)
	assert.Contains(t, buf.String(), "✗ Generating templates failed\n")
	assert.NotContains(t, buf.String(), "✓")
}

func TestWithSpinnerNoColor(t *testing.T) {
	fastSpinner(t)

	var buf bytes.Buffer
	require.NoError(t, WithSpinner(&buf, "Generating templates", true, false, func() error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}))

	// only the line clear sequence, no color codes
	assert.NotContains(t, buf.String(), "\033[0")
	assert.NotContains(t, buf.String(), "\033[3")
}
