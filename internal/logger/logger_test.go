package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInit(t *testing.T) {
	require.NotNil(t, Logger)
	assert.Equal(t, os.Stdout, Logger.Out)
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent("admission")
	require.NotNil(t, entry)
	assert.Equal(t, "admission", entry.Data["component"])
}

func TestWithComponentMultiple(t *testing.T) {
	a := WithComponent("scheduling")
	b := WithComponent("cache")
	assert.NotEqual(t, a.Data["component"], b.Data["component"])
}
