package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() {
		Logf = original
		SetVerbose(false)
	})
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("phase %s", "explore")
	assert.Equal(t, []string{"phase explore"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, *lines, 1)
}

func TestDebugfRespectsVerbose(t *testing.T) {
	lines := captureLogs(t)

	Debugf("hidden %d", 1)
	assert.Empty(t, *lines)

	SetVerbose(true)
	assert.True(t, Verbose())
	Debugf("shown %d", 2)
	assert.Equal(t, []string{"shown 2"}, *lines)
}
