package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewLevel(t *testing.T) {
	assert.False(t, New(false).Core().Enabled(zap.DebugLevel))
	assert.True(t, New(true).Core().Enabled(zap.DebugLevel))
}
