package logging

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketFormatterIncludesComponentAndMessage(t *testing.T) {
	f := &BracketFormatter{}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Data:    logrus.Fields{"component": "sim.Driver", "step": 42},
		Level:   logrus.InfoLevel,
		Message: "tick complete",
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	line := string(out)
	assert.True(t, strings.Contains(line, "[sim.Driver]"))
	assert.True(t, strings.Contains(line, "tick complete"))
	assert.True(t, strings.Contains(line, "step=42"))
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	entry := New("test", "not-a-level")
	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
}

func TestNewAppliesKnownLevel(t *testing.T) {
	entry := New("test", "warn")
	assert.Equal(t, logrus.WarnLevel, entry.Logger.GetLevel())
}
