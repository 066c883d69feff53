package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithSpinner_Hidden(t *testing.T) {
	var out bytes.Buffer
	want := errors.New("server unreachable")

	err := WithSpinner(&out, false, "Loading board...", func() error { return want })
	assert.ErrorIs(t, err, want)
	assert.Empty(t, out.String())
}

func TestWithSpinner_ClearsLine(t *testing.T) {
	var out bytes.Buffer
	calls := 0

	err := WithSpinner(&out, true, "Loading board...", func() error {
		calls++
		time.Sleep(250 * time.Millisecond)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, out.String(), "Loading board...")
	assert.True(t, bytes.HasSuffix(out.Bytes(), []byte("\r\033[K")))
}

func TestSpinner_StopIdempotent(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinner(&out, "Syncing")
	s.Stop()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\r\033[K")))
}

func TestSpinner_LineShowsElapsedWhenSlow(t *testing.T) {
	s := NewSpinner(&bytes.Buffer{}, "Loading board...")
	assert.NotContains(t, s.line("⣾", time.Second), "(")
	assert.Contains(t, s.line("⣾", 4*time.Second), "(4s)")
}
