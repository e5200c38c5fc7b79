package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultThemeSetsSampledSlots(t *testing.T) {
	th := DefaultTheme()
	assert.NotEmpty(t, th.AuthTitle)
	assert.NotEmpty(t, th.AuthAddress)
	assert.NotEmpty(t, th.MiscError)
	assert.NotEmpty(t, th.ProgBarFull)
}
