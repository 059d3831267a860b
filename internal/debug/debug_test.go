package debug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/untoldecay/treehouse/internal/debug"
)

func TestSetEnabledOverridesAndIsObservedByEnabled(t *testing.T) {
	original := debug.Enabled()
	t.Cleanup(func() { debug.SetEnabled(original) })

	debug.SetEnabled(true)
	assert.True(t, debug.Enabled())

	debug.SetEnabled(false)
	assert.False(t, debug.Enabled())
}

func TestLogfNoopWhenDisabledDoesNotPanic(t *testing.T) {
	original := debug.Enabled()
	t.Cleanup(func() { debug.SetEnabled(original) })

	debug.SetEnabled(false)
	assert.NotPanics(t, func() { debug.Logf("some %s line", "debug") })
}

func TestLogfWritesWhenEnabledDoesNotPanic(t *testing.T) {
	original := debug.Enabled()
	t.Cleanup(func() { debug.SetEnabled(original) })

	debug.SetEnabled(true)
	assert.NotPanics(t, func() { debug.Logf("enabled line %d", 1) })
}
