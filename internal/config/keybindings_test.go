package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeyBindingCanonicalizesModifierOrder(t *testing.T) {
	b := NewKeyBinding("h", ModShift, ModCtrl, ModAlt)
	assert.Equal(t, []Modifier{ModAlt, ModCtrl, ModShift}, b.Modifiers)
}

func TestNewKeyBindingOmitsEmptyModifiers(t *testing.T) {
	b := NewKeyBinding("Esc")
	assert.Empty(t, b.Modifiers)
}

func TestDefaultKeyBindingsCtrlH(t *testing.T) {
	b := DefaultKeyBindings().Auth.Help
	assert.Equal(t, "h", b.Key)
	assert.Equal(t, []Modifier{ModCtrl}, b.Modifiers)
}
