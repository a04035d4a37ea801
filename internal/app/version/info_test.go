package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullVersionIncludesBuildInfo(t *testing.T) {
	full := GetFullVersion()
	assert.Contains(t, full, Version)
	assert.Contains(t, full, GetBuildInfo().Platform)
}
