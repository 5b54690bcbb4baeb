package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "indexsync version test-version-1.0.0")
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	out, err := execute(t, "version", "--config", "/does/not/matter.toml")

	assert.NoError(t, err)
	assert.Contains(t, out, "indexsync version")
}
